package postgres

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/onemorebsmith/kaspa-governance/src/model"
)

var available bool

func TestMain(m *testing.M) {
	ConfigureDockerConnection()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	available = Ping(ctx) == nil && Migrate(ctx) == nil
	cancel()
	os.Exit(m.Run())
}

func requirePostgres(t *testing.T) {
	if !available {
		t.Skip("postgres not reachable at localhost:5432")
	}
	DoExecOrDie(context.Background(), "DELETE from treasury_transactions")
}

func TestTreasuryRoundTrip(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()
	store := TreasuryStore{}

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	row := &model.TreasuryRow{
		Hash:        "abc123",
		Type:        model.TreasuryRowKRC20,
		Ticker:      "NACHO",
		Amount:      big.NewInt(-500000000),
		Description: "Sent 5.00000000 NACHO to kaspa:qz",
		Created:     created,
	}
	if err := store.PutTreasuryRow(ctx, row); err != nil {
		t.Fatalf("put: %s", err)
	}
	// second insert of the same hash is a no-op
	dup := *row
	dup.Description = "changed"
	if err := store.PutTreasuryRow(ctx, &dup); err != nil {
		t.Fatalf("duplicate put: %s", err)
	}

	exists, err := store.TreasuryRowExists(ctx, "abc123")
	if err != nil || !exists {
		t.Fatalf("expected row to exist, got %t %v", exists, err)
	}
	if exists, _ := store.TreasuryRowExists(ctx, "nope"); exists {
		t.Fatal("unexpected row")
	}

	rows, err := store.ListTreasuryRows(ctx, 10)
	if err != nil {
		t.Fatalf("list: %s", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if d := cmp.Diff(row.DecimalAmount(), got.DecimalAmount()); d != "" {
		t.Errorf("amount mismatch: %s", d)
	}
	if got.Description != row.Description || !got.Created.Equal(created) {
		t.Errorf("unexpected row %+v", got)
	}
}

func TestTreasuryRejectsUnknownType(t *testing.T) {
	requirePostgres(t)
	err := TreasuryStore{}.PutTreasuryRow(context.Background(), &model.TreasuryRow{
		Hash:    "bad",
		Type:    "Bitcoin",
		Ticker:  "BTC",
		Amount:  big.NewInt(1),
		Created: time.Now(),
	})
	if err == nil {
		t.Fatal("expected check constraint violation")
	}
}
