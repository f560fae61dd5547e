package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sonali2314/MediCardPlus/internal/config"
	"github.com/Sonali2314/MediCardPlus/internal/domain/account"
	"github.com/Sonali2314/MediCardPlus/internal/domain/admin"
	"github.com/Sonali2314/MediCardPlus/internal/domain/clinical"
	"github.com/Sonali2314/MediCardPlus/internal/domain/identity"
	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
	"github.com/Sonali2314/MediCardPlus/internal/platform/blobstore"
	"github.com/Sonali2314/MediCardPlus/internal/platform/db"
	"github.com/Sonali2314/MediCardPlus/internal/platform/healthcard"
	"github.com/Sonali2314/MediCardPlus/internal/platform/middleware"
	"github.com/Sonali2314/MediCardPlus/internal/seed"
	"github.com/Sonali2314/MediCardPlus/migrations"
)

const (
	version = "1.0.0"

	jsonBodyLimit = 1 << 20
	// maxFilesPerRequest bounds the multipart body: a visit may carry
	// several report files of up to MAX_FILE_UPLOAD each.
	maxFilesPerRequest = 5
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "medicard-server",
		Short:        "MediCardPlus health records API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format(time.DateTime)
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo accounts from a YAML fixture file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			blobs, err := newBlobStore(ctx, cfg)
			if err != nil {
				return err
			}

			svc := newServices(cfg, pool, blobs, logger)
			res, err := seed.NewSeeder(svc.accounts, svc.admin, cfg.AdminSecretKey, logger).LoadFile(ctx, file)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d account(s), skipped %d, approved %d doctor(s).\n", res.Created, res.Skipped, res.Approved)
			return nil
		},
	}
	cmd.Flags().String("file", "fixtures.yaml", "Path to the YAML fixture file")
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.NewPool(ctx, poolConfig(cfg))
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Hour,
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	if cfg.BlobBackend == config.BlobBackendS3 {
		return blobstore.NewS3BlobStore(ctx, blobstore.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			MaxSize:   cfg.MaxFileUpload,
		})
	}
	return blobstore.NewInMemoryBlobStore(cfg.MaxFileUpload), nil
}

// newLoginCounter shares login attempt counts through Redis when REDIS_URL
// is set. An unreachable Redis falls back to per-process counting.
func newLoginCounter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (middleware.WindowCounter, func()) {
	if cfg.RedisURL == "" {
		return middleware.NewMemoryCounter(), func() {}
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid REDIS_URL, using in-memory login limiter")
		return middleware.NewMemoryCounter(), func() {}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, using in-memory login limiter")
		_ = client.Close()
		return middleware.NewMemoryCounter(), func() {}
	}
	logger.Info().Msg("connected to redis")
	return middleware.NewRedisCounter(client), func() { _ = client.Close() }
}

func newSession(cfg *config.Config) (*auth.Session, error) {
	issuer, err := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTExpire)
	if err != nil {
		return nil, err
	}
	return &auth.Session{
		Issuer:       issuer,
		Header:       cfg.IssueHeaderToken(),
		Cookie:       cfg.IssueCookieToken(),
		CookieTTL:    cfg.CookieTTL(),
		CookieSecure: cfg.CookieSecure,
	}, nil
}

type services struct {
	identity *identity.Service
	accounts *account.Service
	clinical *clinical.Service
	admin    *admin.Service
}

func newServices(cfg *config.Config, pool *pgxpool.Pool, blobs blobstore.BlobStore, logger zerolog.Logger) *services {
	accountRepo := account.NewRepo(pool)
	identitySvc := identity.NewService(
		identity.NewPatientRepo(pool),
		identity.NewDoctorRepo(pool),
		blobs,
		healthcard.NewGenerator(cfg.ClientURL),
		logger,
	)
	return &services{
		identity: identitySvc,
		accounts: account.NewService(accountRepo, identitySvc, blobs, cfg.AdminSecretKey, logger),
		clinical: clinical.NewService(
			clinical.NewRecordRepo(pool),
			clinical.NewVisitRepo(pool),
			clinical.NewPrescriptionRepo(pool),
			clinical.NewReportRepo(pool),
			clinical.NewAllergyRepo(pool),
			identitySvc,
			blobs,
			db.NewTxRunner(pool),
			logger,
		),
		admin: admin.NewService(accountRepo, admin.NewDoctorDirectory(pool), logger),
	}
}

// newEcho builds the HTTP server with global middleware and the public
// health routes. Domain routes are mounted by registerRoutes.
func newEcho(cfg *config.Config, pinger db.Pinger, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.SecurityHeaders(middleware.SecurityConfig{
		HSTS:           cfg.IsProduction(),
		FrameAncestors: []string{cfg.ClientURL},
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(jsonBodyLimit, cfg.MaxFileUpload*maxFilesPerRequest))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	e.Use(middleware.RateLimit(rateLimitCfg))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, isFileDownload))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pinger))
	return e
}

// isFileDownload exempts blob streaming from the request deadline.
func isFileDownload(c echo.Context) bool {
	return c.Request().Method == http.MethodGet && strings.HasPrefix(c.Request().URL.Path, "/api/files/")
}

func registerRoutes(e *echo.Echo, cfg *config.Config, session *auth.Session, svc *services, blobs blobstore.BlobStore, loginLimit echo.MiddlewareFunc, logger zerolog.Logger) {
	api := e.Group("/api")
	api.Use(auth.AccessGuard(session.Guard(auth.AuthSkipper)))
	api.Use(middleware.Audit(logger))

	account.NewHandler(svc.accounts, session, cfg.MaxFileUpload).RegisterRoutes(api, loginLimit)
	identity.NewHandler(svc.identity).RegisterRoutes(api)
	clinical.NewHandler(svc.clinical, cfg.MaxFileUpload).RegisterRoutes(api)
	admin.NewHandler(svc.admin).RegisterRoutes(api)
	blobstore.NewBlobHandler(blobs).RegisterRoutes(api)
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise blob store")
	}
	logger.Info().Str("backend", cfg.BlobBackend).Msg("blob store ready")

	session, err := newSession(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure sessions")
	}

	counter, closeCounter := newLoginCounter(ctx, cfg, logger)
	defer closeCounter()
	loginLimit := middleware.LoginRateLimit(counter, cfg.LoginRatePerMinute, time.Minute, logger)

	e := newEcho(cfg, pool, logger)
	registerRoutes(e, cfg, session, newServices(cfg, pool, blobs, logger), blobs, loginLimit, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
