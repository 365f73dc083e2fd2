package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/otsched/internal/config"
	"github.com/ehr/otsched/internal/domain/allocation"
	"github.com/ehr/otsched/internal/domain/directory"
	"github.com/ehr/otsched/internal/domain/theatre"
	"github.com/ehr/otsched/internal/platform/auth"
	"github.com/ehr/otsched/internal/platform/blobstore"
	"github.com/ehr/otsched/internal/platform/clock"
	"github.com/ehr/otsched/internal/platform/db"
	"github.com/ehr/otsched/internal/platform/events"
	"github.com/ehr/otsched/internal/platform/lock"
	"github.com/ehr/otsched/internal/platform/middleware"
)

const version = "0.1.0"

// app is the wired server plus whatever needs closing on shutdown.
type app struct {
	echo    *echo.Echo
	theatre *theatre.Service
	alloc   *allocation.Service
	memDir  *directory.Memory
	logger  zerolog.Logger
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type repos struct {
	rooms  theatre.RoomRepository
	slots  theatre.SlotRepository
	allocs allocation.Repository
	dir    directory.Directory
	tx     db.TxRunner
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)
	e.JSONSerializer = middleware.JSONSerializer{}
	e.Validator = middleware.NewRequestValidator()
	a.echo = e

	// Storage
	var r repos
	if cfg.UsePostgres() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		logger.Info().Msg("connected to database")

		r = repos{
			rooms:  theatre.NewRoomRepoPG(pool),
			slots:  theatre.NewSlotRepoPG(pool),
			allocs: allocation.NewRepoPG(pool),
			dir:    directory.NewDirectoryPG(pool),
			tx:     db.NewTransactor(pool),
		}
		e.GET("/health/db", db.HealthHandler(pool))
	} else {
		store := theatre.NewMemoryStore()
		a.memDir = directory.NewMemory()
		r = repos{
			rooms:  store.Rooms(),
			slots:  store.Slots(),
			allocs: allocation.NewMemoryRepo(),
			dir:    a.memDir,
			tx:     db.NoTx{},
		}
		logger.Warn().Msg("using in-memory store; data is lost on restart")
	}

	// Room locks
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { client.Close() })
		locker = lock.NewRedisLocker(client, cfg.LockTTL, cfg.LockWait, logger)
		logger.Info().Msg("using redis room locks")
	}

	// Allocation events
	var publisher events.Publisher = events.NewLogPublisher(logger)
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, "ot-server")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { p.Close() })
		publisher = p
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing allocation events to amqp")
	}

	// Documents
	var blobs blobstore.BlobStore = blobstore.NewMemoryStore()
	if cfg.MinioEndpoint != "" {
		s, err := blobstore.NewMinioStore(ctx, blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		blobs = s
		logger.Info().Str("bucket", cfg.MinioBucket).Msg("storing documents in minio")
	}

	policy, err := allocation.ParseWindowPolicy(cfg.StatusWindow)
	if err != nil {
		return nil, err
	}

	a.theatre = theatre.NewService(r.rooms, r.slots, r.tx, logger)
	a.alloc = allocation.NewService(allocation.Deps{
		Repo:      r.allocs,
		Rooms:     r.rooms,
		Slots:     r.slots,
		Directory: r.dir,
		Clock:     clock.System{},
		Policy:    policy,
		Locker:    locker,
		Tx:        r.tx,
		Publisher: publisher,
		Blobs:     blobs,
		Logger:    logger,
	})

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(echomw.BodyLimit("30M"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"store":   cfg.Store,
		})
	})

	// API group
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware([]byte(cfg.AuthSigningKey)))
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	if cfg.RequestTimeout > 0 {
		apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	theatre.NewHandler(a.theatre).RegisterRoutes(apiV1, nil)
	allocation.NewHandler(a.alloc).RegisterRoutes(apiV1, nil)

	ok = true
	return a, nil
}

// seedFile is the --seed fixture format.
type seedFile struct {
	Directory directory.Fixtures    `json:"directory"`
	Rooms     []theatre.RoomFixture `json:"rooms"`
}

func loadSeed(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s seedFile
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &s, nil
}

// Seed loads directory records (memory store only) and creates or extends
// the listed rooms.
func (a *app) Seed(ctx context.Context, s *seedFile) error {
	if a.memDir != nil {
		a.memDir.Load(s.Directory)
	} else if len(s.Directory.Patients)+len(s.Directory.Staff) > 0 {
		a.logger.Warn().Msg("directory fixtures are ignored with the postgres store")
	}
	for _, f := range s.Rooms {
		room, err := a.theatre.SeedRoom(ctx, f)
		if err != nil {
			return fmt.Errorf("seed room %s: %w", f.RoomNumber, err)
		}
		a.logger.Info().Str("room_number", room.RoomNumber).Str("room_id", room.ID.String()).Msg("seeded ot room")
	}
	return nil
}
