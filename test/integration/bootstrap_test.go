//go:build integration

package integration

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/Vishesh-Tomer/school-erp/internal/app"
	"github.com/Vishesh-Tomer/school-erp/internal/service"
	"github.com/Vishesh-Tomer/school-erp/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBootstrap_ConcurrentColdStartsSeedOnce races several replicas through
// startup seeding against an empty database. The unique index on
// lower(schools.name) must arbitrate: one seed school row, one superadmin,
// and no replica reports an error.
func TestBootstrap_ConcurrentColdStartsSeedOnce(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.CleanAll()

	cfg := env.Config
	cfg.SeedSchoolName = "Seed School"
	cfg.SeedSuperadminEmail = "root@seed.test"
	cfg.SeedSuperadminPassword = "Bootstrap#1"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	const replicas = 6
	errs := make([]error, replicas)
	var wg sync.WaitGroup
	for i := 0; i < replicas; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svcs := app.Build(app.RouterDeps{
				Pool:     env.Pool,
				TokenMgr: env.TokenMgr,
				Notifier: service.NopNotifier{},
				Logger:   logger,
				Config:   cfg,
			})
			errs[i] = app.Bootstrap(t.Context(), env.Pool, svcs, cfg, logger)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "replica %d", i)
	}

	var schools int
	require.NoError(t, env.Pool.QueryRow(t.Context(),
		`SELECT COUNT(*) FROM schools WHERE lower(name) = lower($1)`,
		cfg.SeedSchoolName).Scan(&schools))
	assert.Equal(t, 1, schools, "seed school must exist exactly once")

	var superadmins int
	require.NoError(t, env.Pool.QueryRow(t.Context(),
		`SELECT COUNT(*) FROM admins WHERE role = 'superadmin' AND NOT is_deleted`).Scan(&superadmins))
	assert.Equal(t, 1, superadmins, "superadmin must be seeded exactly once")
}
