package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the subset of pgxpool statistics worth watching when
// bookings start to queue on room locks.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireDuration string `json:"acquire_duration"`
}

// Health is the /health/db body. The database is ready when it answers a
// ping and every embedded migration has been applied.
type Health struct {
	Status            string    `json:"status"`
	Error             string    `json:"error,omitempty"`
	SchemaVersion     int       `json:"schema_version"`
	PendingMigrations []int     `json:"pending_migrations,omitempty"`
	Pool              PoolStats `json:"pool"`
}

func (h Health) Ready() bool { return h.Status == "ready" }

func poolStats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// schemaState folds migration statuses into the highest applied version and
// the versions still pending.
func schemaState(statuses []MigrationStatus) (int, []int) {
	current := 0
	var pending []int
	for _, s := range statuses {
		if !s.Applied {
			pending = append(pending, s.Version)
			continue
		}
		if s.Version > current {
			current = s.Version
		}
	}
	return current, pending
}

// CheckHealth pings the database and compares its schema with the embedded
// migrations.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) Health {
	h := Health{Status: "ready", Pool: poolStats(pool)}
	if err := pool.Ping(ctx); err != nil {
		h.Status, h.Error = "unreachable", err.Error()
		return h
	}
	statuses, err := NewMigrator(pool).Status(ctx)
	if err != nil {
		h.Status, h.Error = "unknown_schema", err.Error()
		return h
	}
	h.SchemaVersion, h.PendingMigrations = schemaState(statuses)
	if len(h.PendingMigrations) > 0 {
		h.Status = "migrations_pending"
	}
	return h
}

// HealthHandler serves CheckHealth, answering 503 unless the database is
// ready.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		h := CheckHealth(ctx, pool)
		if !h.Ready() {
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		return c.JSON(http.StatusOK, h)
	}
}
