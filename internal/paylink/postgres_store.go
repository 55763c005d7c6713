package paylink

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PostgresStore persists payment links and settings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed payment link store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) GetLink(ctx context.Context, id string) (*PaymentLink, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT payment_id, payments, status, creator, created_at, updated_at
		FROM payment_links WHERE payment_id = $1`, id)

	var link PaymentLink
	var paymentsJSON []byte
	var status string
	err := row.Scan(&link.PaymentID, &paymentsJSON, &status, &link.Creator, &link.CreatedAt, &link.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	link.Status = Status(status)
	if err := json.Unmarshal(paymentsJSON, &link.Payments); err != nil {
		return nil, err
	}
	return &link, nil
}

func (p *PostgresStore) PutLink(ctx context.Context, link *PaymentLink) error {
	paymentsJSON, err := json.Marshal(link.Payments)
	if err != nil {
		return err
	}
	if link.Payments == nil {
		paymentsJSON = []byte("[]")
	}

	// Upsert: a second create with the same ID overwrites the prior record.
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO payment_links (payment_id, payments, status, creator, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (payment_id) DO UPDATE SET
			payments = EXCLUDED.payments,
			status = EXCLUDED.status,
			creator = EXCLUDED.creator,
			updated_at = EXCLUDED.updated_at`,
		link.PaymentID, paymentsJSON, string(link.Status), link.Creator, link.CreatedAt, link.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) ContainsLink(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_links WHERE payment_id = $1)`, id).Scan(&exists)
	return exists, err
}

func (p *PostgresStore) GetSettings(ctx context.Context) (*Settings, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT enabled, owner, commission_rate, updated_at
		FROM contract_settings WHERE id = 1`)

	var s Settings
	err := row.Scan(&s.Enabled, &s.Owner, &s.CommissionRate, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *PostgresStore) PutSettings(ctx context.Context, settings *Settings) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO contract_settings (id, enabled, owner, commission_rate, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			owner = EXCLUDED.owner,
			commission_rate = EXCLUDED.commission_rate,
			updated_at = EXCLUDED.updated_at`,
		settings.Enabled, settings.Owner, settings.CommissionRate, settings.UpdatedAt,
	)
	return err
}
