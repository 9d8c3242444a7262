// Package sqlitestore keeps the treasury ledger in a local sqlite file, for
// single node deployments and tests.
package sqlitestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS treasury_transactions (
		hash        TEXT PRIMARY KEY,
		type        TEXT NOT NULL CHECK (type IN ('KRC20', 'Kaspa')),
		ticker      TEXT NOT NULL,
		amount      TEXT NOT NULL,
		description TEXT NOT NULL,
		created     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_treasury_created ON treasury_transactions(created)`,
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed opening sqlite db %s", path)
	}
	// a single connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "failed migrating sqlite db")
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) TreasuryRowExists(ctx context.Context, hash string) (bool, error) {
	exists := false
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM treasury_transactions WHERE hash = ?)`, hash).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "failed checking treasury row %s", hash)
	}
	return exists, nil
}

func (s *Store) PutTreasuryRow(ctx context.Context, row *model.TreasuryRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO treasury_transactions(hash, type, ticker, amount, description, created)
			VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		row.Hash, string(row.Type), row.Ticker, row.DecimalAmount(), row.Description,
		row.Created.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrapf(err, "failed to insert treasury row %s", row.Hash)
	}
	return nil
}

// ListTreasuryRows returns the newest rows first.
func (s *Store) ListTreasuryRows(ctx context.Context, limit int) ([]*model.TreasuryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, type, ticker, amount, description, created
			FROM treasury_transactions ORDER BY created DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying treasury rows")
	}
	defer rows.Close()
	var out []*model.TreasuryRow
	for rows.Next() {
		var (
			row             model.TreasuryRow
			rowType, amount string
			created         string
		)
		if err := rows.Scan(&row.Hash, &rowType, &row.Ticker, &amount, &row.Description, &created); err != nil {
			return nil, errors.Wrap(err, "failed scanning treasury row")
		}
		units, ok := model.ParseUnits(amount)
		if !ok {
			return nil, errors.Errorf("treasury row %s has unparseable amount %s", row.Hash, amount)
		}
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, errors.Wrapf(err, "treasury row %s has bad timestamp", row.Hash)
		}
		row.Type = model.TreasuryRowType(rowType)
		row.Amount = units
		row.Created = ts
		out = append(out, &row)
	}
	return out, rows.Err()
}
