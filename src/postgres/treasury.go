package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
)

const treasurySchema = `CREATE TABLE IF NOT EXISTS treasury_transactions (
	hash        TEXT PRIMARY KEY,
	type        TEXT NOT NULL CHECK (type IN ('KRC20', 'Kaspa')),
	ticker      TEXT NOT NULL,
	amount      NUMERIC(38, 8) NOT NULL,
	description TEXT NOT NULL,
	created     TIMESTAMPTZ NOT NULL
)`

func Migrate(ctx context.Context) error {
	return errors.Wrap(DoExec(ctx, treasurySchema), "failed creating treasury_transactions")
}

// TreasuryStore is the postgres backed treasury ledger.
type TreasuryStore struct{}

func (TreasuryStore) TreasuryRowExists(ctx context.Context, hash string) (bool, error) {
	exists := false
	err := DoQuery(ctx, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM treasury_transactions WHERE hash = $1)`, hash).Scan(&exists)
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed checking treasury row %s", hash)
	}
	return exists, nil
}

func (TreasuryStore) PutTreasuryRow(ctx context.Context, row *model.TreasuryRow) error {
	return DoQuery(ctx, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx,
			`INSERT into treasury_transactions(hash, type, ticker, amount, description, created)
					VALUES ($1, $2, $3, $4::numeric, $5, $6) ON CONFLICT DO NOTHING`,
			row.Hash, string(row.Type), row.Ticker, row.DecimalAmount(), row.Description, row.Created.UTC())
		if err != nil {
			return errors.Wrapf(err, "failed to insert treasury row %s", row.Hash)
		}
		return nil
	})
}

// ListTreasuryRows returns the newest rows first.
func (TreasuryStore) ListTreasuryRows(ctx context.Context, limit int) ([]*model.TreasuryRow, error) {
	var out []*model.TreasuryRow
	err := DoQuery(ctx, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT hash, type, ticker, amount::text, description, created
				FROM treasury_transactions ORDER BY created DESC LIMIT $1`, limit)
		if err != nil {
			return errors.Wrap(err, "failed querying treasury rows")
		}
		defer rows.Close()
		for rows.Next() {
			var (
				row     model.TreasuryRow
				rowType string
				amount  string
				created time.Time
			)
			if err := rows.Scan(&row.Hash, &rowType, &row.Ticker, &amount, &row.Description, &created); err != nil {
				return errors.Wrap(err, "failed scanning treasury row")
			}
			units, ok := model.ParseUnits(amount)
			if !ok {
				return errors.Errorf("treasury row %s has unparseable amount %s", row.Hash, amount)
			}
			row.Type = model.TreasuryRowType(rowType)
			row.Amount = units
			row.Created = created
			out = append(out, &row)
		}
		return rows.Err()
	})
	return out, err
}

func Ping(ctx context.Context) error {
	return DoQuery(ctx, func(conn *pgx.Conn) error {
		return errors.Wrap(conn.Ping(ctx), "failed pinging postgres")
	})
}

func (TreasuryStore) Ping(ctx context.Context) error {
	return Ping(ctx)
}
