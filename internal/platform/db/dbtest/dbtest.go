// Package dbtest gives repository tests a throwaway, migrated PostgreSQL
// schema. The server comes from OT_TEST_DATABASE_URL or, failing that, a
// postgres:16-alpine container started through the Docker CLI. Tests are
// skipped when neither is available or -short is set.
package dbtest

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/otsched/internal/platform/db"
)

// EnvURL names the variable pointing at an existing server.
const EnvURL = "OT_TEST_DATABASE_URL"

var (
	once     sync.Once
	baseURL  string
	startErr error
	stop     func()
)

// Run wraps m.Run for TestMain and removes any container started on the way.
func Run(m *testing.M) int {
	code := m.Run()
	if stop != nil {
		stop()
	}
	return code
}

// Pool returns a pool whose search_path is a fresh schema with every
// migration applied. The schema is dropped when the test ends.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres tests skipped in -short mode")
	}
	once.Do(func() { baseURL, stop, startErr = locate(context.Background()) })
	if startErr != nil {
		t.Skipf("postgres unavailable: %v", startErr)
	}

	ctx := context.Background()
	admin, err := pgxpool.New(ctx, baseURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	schema := "ot_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(baseURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.ConnConfig.RuntimeParams["timezone"] = "Asia/Kolkata"
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect to schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if _, err := admin.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
		admin.Close()
	})

	if _, err := db.NewMigrator(pool).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func locate(ctx context.Context) (string, func(), error) {
	if url := os.Getenv(EnvURL); url != "" {
		return url, nil, waitForPostgres(ctx, url, 10*time.Second)
	}
	if _, err := exec.LookPath("docker"); err != nil {
		return "", nil, fmt.Errorf("%s is unset and docker is not installed", EnvURL)
	}
	return startContainer(ctx)
}

// startContainer runs postgres:16-alpine on a free port and waits until it
// answers queries.
func startContainer(ctx context.Context) (string, func(), error) {
	port, err := freePort()
	if err != nil {
		return "", nil, fmt.Errorf("find free port: %w", err)
	}
	name := fmt.Sprintf("ot-repo-test-%d", port)
	exec.CommandContext(ctx, "docker", "rm", "-f", name).Run()

	out, err := exec.CommandContext(ctx, "docker", "run",
		"--name", name,
		"-d",
		"-p", fmt.Sprintf("%d:5432", port),
		"-e", "POSTGRES_USER=ot",
		"-e", "POSTGRES_PASSWORD=ot",
		"-e", "POSTGRES_DB=ottest",
		"postgres:16-alpine",
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run: %w\noutput: %s", err, out)
	}
	id := strings.TrimSpace(string(out))
	cleanup := func() { exec.Command("docker", "rm", "-f", id).Run() }

	url := fmt.Sprintf("postgres://ot:ot@localhost:%d/ottest?sslmode=disable", port)
	if err := waitForPostgres(ctx, url, 30*time.Second); err != nil {
		cleanup()
		return "", nil, err
	}
	return url, cleanup, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitForPostgres(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		pool, err := pgxpool.New(connCtx, url)
		if err == nil {
			err = pool.Ping(connCtx)
			pool.Close()
		}
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("postgres not ready after %v", timeout)
}
