package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/graphgate/graphgate/internal/domain/model"
	"github.com/graphgate/graphgate/internal/domain/port/driven"
)

// sessionTokenBytes is the entropy of a generated session token.
const sessionTokenBytes = 32

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo is the SQLite implementation of the SessionStore port.
type SessionRepo struct {
	db *DB
	// now is swappable in tests to exercise expiry boundaries.
	now func() time.Time
}

// NewSessionRepo creates a new SessionRepo backed by the given DB.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db, now: time.Now}
}

// Create generates a random opaque token for the user with expiry now+ttl.
// The insert and the active-credential check run in one transaction on the
// single writer connection.
func (r *SessionRepo) Create(ctx context.Context, userID string, ttl time.Duration) (model.SessionToken, error) {
	token, err := randomToken(sessionTokenBytes)
	if err != nil {
		return model.SessionToken{}, err
	}

	now := r.now().UTC()
	expiresAt := now.Add(ttl)

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return model.SessionToken{}, fmt.Errorf("create session for %q: %w", userID, err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM user_credentials WHERE user_id = ? AND is_active = 1`, userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionToken{}, driven.ErrNotFound
	}
	if err != nil {
		return model.SessionToken{}, fmt.Errorf("create session for %q: %w", userID, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO user_sessions (session_token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		token, userID, now, expiresAt,
	)
	if err != nil {
		return model.SessionToken{}, fmt.Errorf("create session for %q: %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.SessionToken{}, fmt.Errorf("create session for %q: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return model.SessionToken{}, fmt.Errorf("create session for %q: %w", userID, err)
	}

	return model.SessionToken{
		ID:        id,
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		IsActive:  true,
	}, nil
}

// Get retrieves a session by token. Expired sessions are lazily marked
// inactive and reported as ErrNotFound, indistinguishable from tokens that
// never existed.
func (r *SessionRepo) Get(ctx context.Context, token string) (*model.SessionToken, error) {
	const query = `
		SELECT id, session_token, user_id, created_at, expires_at, is_active
		FROM user_sessions
		WHERE session_token = ? AND is_active = 1
	`

	var session model.SessionToken
	var createdAt, expiresAt string
	var isActive int
	err := r.db.Reader.QueryRowContext(ctx, query, token).Scan(
		&session.ID, &session.Token, &session.UserID, &createdAt, &expiresAt, &isActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	session.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	session.ExpiresAt, err = parseTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	session.IsActive = isActive != 0

	if session.Expired(r.now().UTC()) {
		// Best effort; the session is unusable either way.
		_ = r.Revoke(ctx, token)
		return nil, driven.ErrNotFound
	}

	return &session, nil
}

// Revoke marks the session inactive. Revoking an unknown token is a no-op.
func (r *SessionRepo) Revoke(ctx context.Context, token string) error {
	_, err := r.db.Writer.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = 0 WHERE session_token = ?`, token,
	)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
