package channel

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestStoreGet(t *testing.T) {
	dsn := os.Getenv("FULFILLMENTS_TEST_DSN")
	if dsn == "" {
		t.Skip("FULFILLMENTS_TEST_DSN not set; skipping DB-backed tests")
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := db.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS channels (
            id TEXT PRIMARY KEY, code TEXT NOT NULL, google_place_id TEXT, address TEXT,
            phone TEXT, hours TEXT, latitude TEXT, longitude TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(ctx, `
        INSERT INTO channels (id, code, google_place_id, phone)
        VALUES ('chan-test', 'shop', 'ChIJ123', '0123')
        ON CONFLICT (id) DO UPDATE SET google_place_id = EXCLUDED.google_place_id`); err != nil {
		t.Fatalf("insert channel: %v", err)
	}
	t.Cleanup(func() { _, _ = db.Exec(ctx, `DELETE FROM channels WHERE id = 'chan-test'`) })

	store := NewStore(db)
	c, err := store.Get(ctx, "chan-test")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Code != "shop" || c.GooglePlaceID != "ChIJ123" || c.Address != "" {
		t.Fatalf("unexpected channel: %+v", c)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
