package auth

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists API keys in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed key store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, key *APIKey) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, address, created_at)
		VALUES ($1, $2, $3)`,
		key.Hash, key.Address, key.CreatedAt)
	return err
}

func (p *PostgresStore) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT key_hash, address, created_at, last_used
		FROM api_keys WHERE key_hash = $1`, hash)

	var key APIKey
	var lastUsed sql.NullTime
	err := row.Scan(&key.Hash, &key.Address, &key.CreatedAt, &lastUsed)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		key.LastUsed = &t
	}
	return &key, nil
}

func (p *PostgresStore) Touch(ctx context.Context, hash string, at time.Time) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used = $2 WHERE key_hash = $1`, hash, at)
	return err
}
