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

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// OAuth token columns are sealed with AES-256-GCM before write when a secret
// key is configured.
type CredentialRepo struct {
	db     *DB
	cipher *tokenCipher
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to store tokens unsealed.
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	cipher, err := newTokenCipher(key)
	if err != nil {
		return nil, err
	}
	return &CredentialRepo{db: db, cipher: cipher}, nil
}

// Save upserts the credential keyed by user_id. A previously revoked record
// is re-activated; re-running the OAuth flow is the recovery path after a
// revoke.
func (r *CredentialRepo) Save(ctx context.Context, cred model.UserCredential) (model.UserCredential, error) {
	accessToken, err := r.cipher.seal(cred.AccessToken)
	if err != nil {
		return model.UserCredential{}, fmt.Errorf("seal access token: %w", err)
	}
	refreshToken, err := r.cipher.seal(cred.RefreshToken)
	if err != nil {
		return model.UserCredential{}, fmt.Errorf("seal refresh token: %w", err)
	}

	const query = `
		INSERT INTO user_credentials (
			user_id, email, display_name, access_token, refresh_token, token_expires_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expires_at = excluded.token_expires_at,
			updated_at = CURRENT_TIMESTAMP,
			is_active = 1
	`

	_, err = r.db.Writer.ExecContext(ctx, query,
		cred.UserID, cred.Email, cred.DisplayName,
		accessToken, refreshToken, cred.TokenExpiresAt.UTC(),
	)
	if err != nil {
		return model.UserCredential{}, fmt.Errorf("save credential for %q: %w", cred.UserID, err)
	}

	stored, err := r.Get(ctx, cred.UserID)
	if err != nil {
		return model.UserCredential{}, err
	}
	return *stored, nil
}

// Get retrieves the active credential for the given user.
func (r *CredentialRepo) Get(ctx context.Context, userID string) (*model.UserCredential, error) {
	const query = `
		SELECT id, user_id, email, display_name, access_token, refresh_token,
		       token_expires_at, created_at, updated_at, is_active
		FROM user_credentials
		WHERE user_id = ? AND is_active = 1
	`

	cred, err := r.scanCredential(r.db.Reader.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential for %q: %w", userID, err)
	}
	return cred, nil
}

// UpdateTokens replaces the token columns after a refresh. Concurrent
// refreshers for the same user both write a token obtained from the same
// refresh token, so the second write is an idempotent overwrite.
func (r *CredentialRepo) UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	sealed, err := r.cipher.seal(accessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}

	var res sql.Result
	if refreshToken != "" {
		sealedRefresh, err := r.cipher.seal(refreshToken)
		if err != nil {
			return fmt.Errorf("seal refresh token: %w", err)
		}
		const query = `
			UPDATE user_credentials
			SET access_token = ?, refresh_token = ?, token_expires_at = ?, updated_at = CURRENT_TIMESTAMP
			WHERE user_id = ? AND is_active = 1
		`
		res, err = r.db.Writer.ExecContext(ctx, query, sealed, sealedRefresh, expiresAt.UTC(), userID)
		if err != nil {
			return fmt.Errorf("update tokens for %q: %w", userID, err)
		}
	} else {
		const query = `
			UPDATE user_credentials
			SET access_token = ?, token_expires_at = ?, updated_at = CURRENT_TIMESTAMP
			WHERE user_id = ? AND is_active = 1
		`
		res, err = r.db.Writer.ExecContext(ctx, query, sealed, expiresAt.UTC(), userID)
		if err != nil {
			return fmt.Errorf("update tokens for %q: %w", userID, err)
		}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tokens for %q: %w", userID, err)
	}
	if affected == 0 {
		return driven.ErrNotFound
	}
	return nil
}

// Revoke marks the credential inactive, clears its token columns, and
// revokes the user's sessions and API keys in the same transaction.
func (r *CredentialRepo) Revoke(ctx context.Context, userID string) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("revoke credential for %q: %w", userID, err)
	}
	defer tx.Rollback()

	const revokeCredential = `
		UPDATE user_credentials
		SET is_active = 0, access_token = '', refresh_token = '', updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND is_active = 1
	`
	res, err := tx.ExecContext(ctx, revokeCredential, userID)
	if err != nil {
		return fmt.Errorf("revoke credential for %q: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke credential for %q: %w", userID, err)
	}
	if affected == 0 {
		return driven.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE user_sessions SET is_active = 0 WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("revoke sessions for %q: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE api_keys SET is_active = 0 WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("revoke api keys for %q: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("revoke credential for %q: %w", userID, err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func (r *CredentialRepo) scanCredential(row scanner) (*model.UserCredential, error) {
	var cred model.UserCredential
	var accessToken, refreshToken string
	var expiresAt, createdAt, updatedAt string
	var isActive int

	err := row.Scan(
		&cred.ID, &cred.UserID, &cred.Email, &cred.DisplayName,
		&accessToken, &refreshToken, &expiresAt, &createdAt, &updatedAt, &isActive,
	)
	if err != nil {
		return nil, err
	}

	cred.AccessToken, err = r.cipher.open(accessToken)
	if err != nil {
		return nil, fmt.Errorf("open access token: %w", err)
	}
	cred.RefreshToken, err = r.cipher.open(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("open refresh token: %w", err)
	}

	cred.TokenExpiresAt, err = parseTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse token_expires_at: %w", err)
	}
	cred.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	cred.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	cred.IsActive = isActive != 0

	return &cred, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
