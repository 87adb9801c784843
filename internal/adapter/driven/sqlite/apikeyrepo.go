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

// apiKeyBytes is the entropy of a generated API key, excluding the prefix.
const apiKeyBytes = 30

// Compile-time interface satisfaction check.
var _ driven.APIKeyStore = (*APIKeyRepo)(nil)

// APIKeyRepo is the SQLite implementation of the APIKeyStore port.
type APIKeyRepo struct {
	db  *DB
	now func() time.Time
}

// NewAPIKeyRepo creates a new APIKeyRepo backed by the given DB.
func NewAPIKeyRepo(db *DB) *APIKeyRepo {
	return &APIKeyRepo{db: db, now: time.Now}
}

// Create generates a prefixed opaque key for the user. The full key is
// returned exactly once, from this call.
func (r *APIKeyRepo) Create(ctx context.Context, userID, name string) (model.APIKey, error) {
	secret, err := randomToken(apiKeyBytes)
	if err != nil {
		return model.APIKey{}, err
	}
	key := model.APIKeyPrefix + secret
	now := r.now().UTC()

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return model.APIKey{}, fmt.Errorf("create api key for %q: %w", userID, err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM user_credentials WHERE user_id = ? AND is_active = 1`, userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return model.APIKey{}, driven.ErrNotFound
	}
	if err != nil {
		return model.APIKey{}, fmt.Errorf("create api key for %q: %w", userID, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO api_keys (api_key, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		key, userID, name, now,
	)
	if err != nil {
		return model.APIKey{}, fmt.Errorf("create api key for %q: %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.APIKey{}, fmt.Errorf("create api key for %q: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return model.APIKey{}, fmt.Errorf("create api key for %q: %w", userID, err)
	}

	return model.APIKey{
		ID:        id,
		Key:       key,
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		IsActive:  true,
	}, nil
}

// List returns the user's keys in creation order with key material masked.
// The full key never appears in listings; only MaskedKey is populated.
func (r *APIKeyRepo) List(ctx context.Context, userID string) ([]model.APIKey, error) {
	const query = `
		SELECT id, api_key, user_id, name, created_at, last_used_at, is_active
		FROM api_keys
		WHERE user_id = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys for %q: %w", userID, err)
	}
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		key.MaskedKey = key.Masked()
		key.Key = ""
		keys = append(keys, *key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}

	return keys, nil
}

// Lookup retrieves an active key without side effects.
func (r *APIKeyRepo) Lookup(ctx context.Context, key string) (*model.APIKey, error) {
	const query = `
		SELECT id, api_key, user_id, name, created_at, last_used_at, is_active
		FROM api_keys
		WHERE api_key = ? AND is_active = 1
	`

	apiKey, err := scanAPIKey(r.db.Reader.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}

	return apiKey, nil
}

// Get retrieves an active key and touches its last_used_at as a side effect.
func (r *APIKeyRepo) Get(ctx context.Context, key string) (*model.APIKey, error) {
	apiKey, err := r.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	_, err = r.db.Writer.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE api_key = ?`, now, key,
	)
	if err != nil {
		return nil, fmt.Errorf("touch api key: %w", err)
	}
	apiKey.LastUsedAt = now

	return apiKey, nil
}

// Revoke marks the key inactive. A revoked key never validates again.
func (r *APIKeyRepo) Revoke(ctx context.Context, key string) error {
	_, err := r.db.Writer.ExecContext(ctx,
		`UPDATE api_keys SET is_active = 0 WHERE api_key = ?`, key,
	)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	return nil
}

func scanAPIKey(row scanner) (*model.APIKey, error) {
	var key model.APIKey
	var createdAt string
	var lastUsedAt sql.NullString
	var isActive int

	err := row.Scan(&key.ID, &key.Key, &key.UserID, &key.Name, &createdAt, &lastUsedAt, &isActive)
	if err != nil {
		return nil, err
	}

	key.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if lastUsedAt.Valid {
		key.LastUsedAt, err = parseTime(lastUsedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_used_at: %w", err)
		}
	}
	key.IsActive = isActive != 0

	return &key, nil
}
