package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"alpine/internal/ledger/models"
	"alpine/internal/platform/postgres"
	"alpine/pkg/platform/sentinel"
	txcontext "alpine/pkg/platform/tx"
)

// PostgresStore persists donations in PostgreSQL. The sender and recipient
// indexes are B-tree indexes on (address, id) maintained by the database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const donationColumns = `id, sender_address, sender_username, recipient_address, recipient_username, amount, message, donated_at`

// IncrementCount advances the counter row. Concurrent transactions serialize
// on the row lock until the holder commits or rolls back.
func (s *PostgresStore) IncrementCount(ctx context.Context) (uint64, error) {
	var next uint64
	err := txcontext.Use(ctx, s.db).QueryRowContext(ctx,
		`UPDATE donation_count SET count = count + 1 WHERE singleton RETURNING count`,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("increment donation count: %w", err)
	}
	return next, nil
}

func (s *PostgresStore) Count(ctx context.Context) (uint64, error) {
	var count uint64
	err := txcontext.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT count FROM donation_count WHERE singleton`,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("load donation count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Insert(ctx context.Context, donation *models.Donation) error {
	amount, err := json.Marshal(donation.Amount)
	if err != nil {
		return fmt.Errorf("marshal amount: %w", err)
	}
	var donatedAt sql.NullTime
	if donation.Timestamp != nil {
		donatedAt = sql.NullTime{Time: *donation.Timestamp, Valid: true}
	}
	query := `
		INSERT INTO donations (` + donationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = txcontext.Use(ctx, s.db).ExecContext(ctx, query,
		donation.ID,
		donation.Sender.Address,
		donation.Sender.Username,
		donation.Recipient.Address,
		donation.Recipient.Username,
		amount,
		donation.Message,
		donatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

// FindByID ids above the BIGINT range are never issued and cannot be bound by lib/pq.
func (s *PostgresStore) FindByID(ctx context.Context, id uint64) (*models.Donation, error) {
	if id > math.MaxInt64 {
		return nil, sentinel.ErrNotFound
	}
	row := txcontext.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+donationColumns+` FROM donations WHERE id = $1`, id)
	donation, err := scanDonation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find donation: %w", err)
	}
	return donation, nil
}

func (s *PostgresStore) ListBySender(ctx context.Context, addr string) ([]*models.Donation, error) {
	return s.list(ctx, `SELECT `+donationColumns+` FROM donations WHERE sender_address = $1 ORDER BY id ASC`, addr)
}

func (s *PostgresStore) ListByRecipient(ctx context.Context, addr string) ([]*models.Donation, error) {
	return s.list(ctx, `SELECT `+donationColumns+` FROM donations WHERE recipient_address = $1 ORDER BY id ASC`, addr)
}

func (s *PostgresStore) list(ctx context.Context, query string, addr string) ([]*models.Donation, error) {
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, query, addr)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	out := []*models.Donation{}
	for rows.Next() {
		donation, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		out = append(out, donation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(row rowScanner) (*models.Donation, error) {
	var (
		d         models.Donation
		amount    []byte
		donatedAt sql.NullTime
	)
	if err := row.Scan(
		&d.ID,
		&d.Sender.Address,
		&d.Sender.Username,
		&d.Recipient.Address,
		&d.Recipient.Username,
		&amount,
		&d.Message,
		&donatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(amount, &d.Amount); err != nil {
		return nil, fmt.Errorf("decode amount: %w", err)
	}
	if donatedAt.Valid {
		t := donatedAt.Time.UTC()
		d.Timestamp = &t
	}
	return &d, nil
}
