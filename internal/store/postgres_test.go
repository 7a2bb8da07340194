package store

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPostgresDSN skips unless VOXFORM_TEST_POSTGRES_DSN points at a
// disposable database.
func testPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("VOXFORM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOXFORM_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := testPostgresDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "DROP TABLE IF EXISTS invoices")
	require.NoError(t, err)
	pool.Close()

	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgresStore(t)

	first, err := s.Create(ctx, ClientDocument{Kind: DocumentClient, Data: map[string]string{"name": "Ana"}})
	require.NoError(t, err)
	assert.False(t, first.CreatedAt.IsZero())

	items := []LineItem{{Name: "Widget", Quantity: 3, Price: 2.5, Tax: 21}}
	second, err := s.Create(ctx, InvoiceDocument{Kind: DocumentQuote, Data: map[string]string{"number": "Q-7"}, Items: items})
	require.NoError(t, err)

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, items, records[0].LineItems)
	assert.Equal(t, "Ana", records[1].Fields["name"])

	removed, err := s.Delete(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, s.Ping(ctx))
}
