package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists ledger data in PostgreSQL.
// Amounts are NUMERIC(78,0): wide enough for any 256-bit value.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) GetBalance(ctx context.Context, address string) (*Balance, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT address, balance::TEXT, updated_at FROM accounts WHERE address = $1`, address)

	var b Balance
	err := row.Scan(&b.Address, &b.Balance, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return &Balance{Address: address, Balance: "0"}, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *PostgresStore) Deposit(ctx context.Context, address, amt, reference string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := creditTx(ctx, tx, address, amt); err != nil {
		return err
	}
	if err := appendTx(ctx, tx, address, EntryDeposit, amt, "", reference); err != nil {
		return err
	}

	return tx.Commit()
}

func (p *PostgresStore) ApplySettlement(ctx context.Context, payer, debit string, credits []Credit, reference string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Ensure the payer row exists so the conditional debit also covers
	// zero-value settlements against untouched accounts.
	if err := creditTx(ctx, tx, payer, "0"); err != nil {
		return err
	}

	// Conditional debit: fails closed when the balance is short, so the
	// rollback leaves no partial movement.
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance - $2::NUMERIC(78,0), updated_at = NOW()
		WHERE address = $1 AND balance >= $2::NUMERIC(78,0)`,
		payer, debit)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInsufficientBalance
	}
	if err := appendTx(ctx, tx, payer, EntrySettlementOut, debit, "", reference); err != nil {
		return err
	}

	for _, c := range credits {
		if err := creditTx(ctx, tx, c.Address, c.Amount); err != nil {
			return fmt.Errorf("credit %s: %w", c.Address, err)
		}
		if err := appendTx(ctx, tx, c.Address, c.Type, c.Amount, payer, reference); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (p *PostgresStore) History(ctx context.Context, address string, limit int) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, address, type, amount::TEXT, counterparty, reference, created_at
		FROM ledger_entries
		WHERE address = $1
		ORDER BY id DESC
		LIMIT $2`, address, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var counterparty, reference sql.NullString
		if err := rows.Scan(&e.ID, &e.Address, &e.Type, &e.Amount, &counterparty, &reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Counterparty = counterparty.String
		e.Reference = reference.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func creditTx(ctx context.Context, tx *sql.Tx, address, amt string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (address, balance, updated_at)
		VALUES ($1, $2::NUMERIC(78,0), NOW())
		ON CONFLICT (address) DO UPDATE SET
			balance = accounts.balance + EXCLUDED.balance,
			updated_at = NOW()`,
		address, amt)
	return err
}

func appendTx(ctx context.Context, tx *sql.Tx, address, entryType, amt, counterparty, reference string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (address, type, amount, counterparty, reference, created_at)
		VALUES ($1, $2, $3::NUMERIC(78,0), NULLIF($4, ''), NULLIF($5, ''), NOW())`,
		address, entryType, amt, counterparty, reference)
	return err
}
