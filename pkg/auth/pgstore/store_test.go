package pgstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/accountkit/pkg/auth"
	"github.com/dmitrymomot/accountkit/pkg/auth/pgstore"
	"github.com/dmitrymomot/accountkit/pkg/auth/storetest"
	"github.com/dmitrymomot/accountkit/pkg/logger"
	"github.com/dmitrymomot/accountkit/pkg/pg"
)

// Requires a disposable database in PG_CONN_URL.
func TestStore_Conformance(t *testing.T) {
	url := os.Getenv("PG_CONN_URL")
	if url == "" {
		t.Skip("PG_CONN_URL not set")
	}
	ctx := context.Background()

	cfg := pg.Config{ConnectionString: url, RetryAttempts: 1}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pgstore.Migrate(ctx, pool, cfg, logger.Discard()))
	require.NoError(t, pg.Healthcheck(pool)(ctx))

	storetest.Run(t, func(t *testing.T) auth.Store {
		_, err := pool.Exec(ctx, `TRUNCATE accounts CASCADE`)
		require.NoError(t, err)
		return pgstore.New(pool)
	})
}
