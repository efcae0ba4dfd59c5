//go:build integration

package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Vishesh-Tomer/school-erp/internal/app"
	"github.com/Vishesh-Tomer/school-erp/internal/auth"
	"github.com/Vishesh-Tomer/school-erp/internal/infra"
	"github.com/Vishesh-Tomer/school-erp/internal/service"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	TestJWTSecret = "integration-test-secret"
	TestDBHost    = "localhost"
	TestDBPort    = 5432
	TestDBUser    = "schoolerp"
	TestDBPass    = "schoolerp"
	TestDBName    = "schoolerp_test"
)

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	Server   *httptest.Server
	Pool     *pgxpool.Pool
	TokenMgr *auth.TokenManager
	Redis    *miniredis.Miniredis
	Config   *infra.Config
	SchoolID uuid.UUID
	t        *testing.T
}

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error
)

func testDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, TestDBName)
}

func bootstrapDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, "schoolerp")
}

func ensureTestDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bPool, err := pgxpool.New(ctx, bootstrapDSN())
	if err != nil {
		return fmt.Errorf("connect bootstrap db: %w", err)
	}
	defer bPool.Close()

	var exists bool
	err = bPool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", TestDBName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check db exists: %w", err)
	}

	if !exists {
		_, err = bPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", TestDBName))
		if err != nil {
			return fmt.Errorf("create test db: %w", err)
		}
	}

	return nil
}

func runMigrations() error {
	projectRoot := findProjectRoot()
	migratePath := fmt.Sprintf("file://%s/db/migrations", projectRoot)
	return applyMigrations(migratePath, testDSN())
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}

func getSharedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	poolOnce.Do(func() {
		if err := ensureTestDB(); err != nil {
			poolErr = err
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		poolCfg, err := pgxpool.ParseConfig(testDSN())
		if err != nil {
			poolErr = fmt.Errorf("parse pool config: %w", err)
			return
		}
		poolCfg.MaxConns = 10
		poolCfg.MinConns = 1

		sharedPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			poolErr = fmt.Errorf("create pool: %w", err)
			return
		}

		if err := runMigrations(); err != nil {
			poolErr = fmt.Errorf("run migrations: %w", err)
			sharedPool.Close()
			sharedPool = nil
			return
		}
	})

	if poolErr != nil {
		t.Fatalf("failed to initialize test pool: %v", poolErr)
	}
	return sharedPool
}

func testConfig() *infra.Config {
	return &infra.Config{
		JWTSecret:          TestJWTSecret,
		JWTAccessExpiry:    30 * time.Minute,
		JWTRefreshExpiry:   720 * time.Hour,
		JWTResetExpiry:     10 * time.Minute,
		BcryptCost:         4, // MinCost keeps the suite fast
		RateLimitEnabled:   false,
		RateLimitFailOpen:  false,
		AuthRatePoints:     20,
		AuthRateWindow:     15 * time.Minute,
		LoginRatePoints:    5,
		LoginRateWindow:    5 * time.Minute,
		TOTPIssuer:         "SchoolERP-Test",
		CORSAllowedOrigins: "*",
	}
}

// NewTestEnv creates a test environment with an httptest.Server backed by
// the real router and test DB. Rate limiting is off by default; use
// NewTestEnvWithConfig to turn it on.
func NewTestEnv(t *testing.T) *TestEnv {
	return NewTestEnvWithConfig(t, nil)
}

// NewTestEnvWithConfig creates a test environment, letting the caller adjust
// the config before the router is built.
func NewTestEnvWithConfig(t *testing.T, mutate func(*infra.Config)) *TestEnv {
	t.Helper()

	pool := getSharedPool(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	tokenMgr := auth.NewTokenManager(cfg.JWTSecret,
		cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry, cfg.JWTResetExpiry)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps := app.RouterDeps{
		Pool:     pool,
		Redis:    rdb,
		TokenMgr: tokenMgr,
		Notifier: service.NopNotifier{},
		Logger:   logger,
		Config:   cfg,
	}

	svcs := app.Build(deps)
	server := httptest.NewServer(app.NewRouter(deps, svcs))

	env := &TestEnv{
		Server:   server,
		Pool:     pool,
		TokenMgr: tokenMgr,
		Redis:    mr,
		Config:   cfg,
		t:        t,
	}

	t.Cleanup(func() {
		server.Close()
		env.CleanAll()
	})

	// Clean before seeding to isolate from earlier tests.
	env.CleanAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svcs.Roles.SeedDefaults(ctx); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	svcs.Roles.Invalidate()
	env.SchoolID = env.SeedSchool("Test School")

	return env
}
