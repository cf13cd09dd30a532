package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"alpine/internal/platform/postgres"
	"alpine/internal/registry/models"
	"alpine/pkg/platform/sentinel"
	txcontext "alpine/pkg/platform/tx"
)

const identitiesPrimaryKey = "identities_pkey"

// PostgresStore persists identities in PostgreSQL. One row serves both mappings:
// the primary key is the address and username carries a unique constraint.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindByUsernameFold keeps the descending tie-break of the in-memory scan.
// COLLATE "C" makes the order byte-wise like the other backends.
func (s *PostgresStore) FindByUsernameFold(ctx context.Context, username string) (*models.Identity, error) {
	query := `
		SELECT address, username FROM identities
		WHERE lower(username) = lower($1)
		ORDER BY username COLLATE "C" DESC
		LIMIT 1
	`
	var identity models.Identity
	err := txcontext.Use(ctx, s.db).QueryRowContext(ctx, query, username).Scan(&identity.Address, &identity.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity by username: %w", err)
	}
	return &identity, nil
}

func (s *PostgresStore) FindByAddress(ctx context.Context, addr string) (*models.Identity, error) {
	var identity models.Identity
	err := txcontext.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT address, username FROM identities WHERE address = $1`, addr,
	).Scan(&identity.Address, &identity.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity by address: %w", err)
	}
	return &identity, nil
}

func (s *PostgresStore) Save(ctx context.Context, identity *models.Identity) error {
	_, err := txcontext.Use(ctx, s.db).ExecContext(ctx,
		`INSERT INTO identities (address, username) VALUES ($1, $2)`,
		identity.Address, identity.Username,
	)
	if err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok {
			if constraint == identitiesPrimaryKey {
				return models.ErrAddressInUse
			}
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUsername(ctx context.Context) ([]*models.Identity, error) {
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx,
		`SELECT address, username FROM identities ORDER BY username COLLATE "C" ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []*models.Identity
	for rows.Next() {
		var identity models.Identity
		if err := rows.Scan(&identity.Address, &identity.Username); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, &identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}
