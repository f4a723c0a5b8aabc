package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/healthportal/portal/internal/config"
	"github.com/healthportal/portal/internal/dashboard"
	"github.com/healthportal/portal/internal/domain/appointment"
	"github.com/healthportal/portal/internal/domain/auditlog"
	"github.com/healthportal/portal/internal/domain/medicalrecord"
	"github.com/healthportal/portal/internal/domain/message"
	"github.com/healthportal/portal/internal/domain/nurserequest"
	"github.com/healthportal/portal/internal/domain/payment"
	"github.com/healthportal/portal/internal/domain/profile"
	"github.com/healthportal/portal/internal/domain/room"
	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/backend"
	"github.com/healthportal/portal/internal/platform/db"
	"github.com/healthportal/portal/internal/platform/middleware"
	"github.com/healthportal/portal/internal/platform/telemetry"
	"github.com/healthportal/portal/internal/portal"
	"github.com/healthportal/portal/internal/session"
	"github.com/healthportal/portal/migrations"
)

const (
	version = "0.1.0"

	// standaloneIssuer is the iss claim of tokens minted by the built-in
	// provider.
	standaloneIssuer = "healthportal"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "Healthcare portal server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				fmt.Printf("Running migrations on schema: %s\n", schema)
				count, err := db.NewMigrator(pool, migrations.FS).Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("schema", "public", "Schema holding the migrations table")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}

				fmt.Printf("Migration status for schema: %s\n", schema)
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("schema", "public", "Schema holding the migrations table")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo accounts and sample rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				provider, _, err := buildProvider(cfg, pool, logger)
				if err != nil {
					return err
				}
				svcs := newServices(pool, logger)
				report, err := seed(ctx, provider, svcs.profiles, svcs.rooms, logger)
				if err != nil {
					return err
				}
				fmt.Printf("Seeded %d account(s) and %d room(s); %d already present.\n", report.Accounts, report.Rooms, report.Skipped)
				return nil
			})
		},
	}
}

// withPool runs fn with a pool opened from the environment configuration.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

// buildProvider selects the auth provider for the configured mode and
// returns it with the issuer of the tokens it mints.
func buildProvider(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (backend.Provider, string, error) {
	switch cfg.AuthMode {
	case config.AuthModeHosted:
		p := backend.NewGoTrueProvider(backend.GoTrueConfig{
			BaseURL:    cfg.BackendURL,
			APIKey:     cfg.BackendAPIKey,
			ServiceKey: cfg.BackendServiceKey,
			JWTSecret:  cfg.JWTSecret,
		})
		return p, p.Issuer(), nil
	case config.AuthModeStandalone:
		if cfg.JWTSecret == "" {
			return nil, "", fmt.Errorf("JWT_SECRET is required in %s auth mode", config.AuthModeStandalone)
		}
		p := backend.NewStandaloneProvider(backend.NewIdentityStorePG(pool), backend.StandaloneConfig{
			Issuer: standaloneIssuer,
			Secret: []byte(cfg.JWTSecret),
		}, logger)
		return p, standaloneIssuer, nil
	default:
		return nil, "", fmt.Errorf("unknown AUTH_MODE %q", cfg.AuthMode)
	}
}

// services are the domain services shared by the dashboards and the API.
type services struct {
	profiles      *profile.Service
	appointments  *appointment.Service
	records       *medicalrecord.Service
	rooms         *room.Service
	payments      *payment.Service
	messages      *message.Service
	nurseRequests *nurserequest.Service
	auditLogs     *auditlog.Service
}

func newServices(pool *pgxpool.Pool, logger zerolog.Logger) *services {
	return &services{
		profiles:      profile.NewService(profile.NewRepoPG(pool), logger),
		appointments:  appointment.NewService(appointment.NewRepoPG(pool), logger),
		records:       medicalrecord.NewService(medicalrecord.NewRepoPG(pool), logger),
		rooms:         room.NewService(room.NewRepoPG(pool), logger),
		payments:      payment.NewService(payment.NewRepoPG(pool), logger),
		messages:      message.NewService(message.NewRepoPG(pool), logger),
		nurseRequests: nurserequest.NewService(nurserequest.NewRepoPG(pool), logger),
		auditLogs:     auditlog.NewService(auditlog.NewRepoPG(pool), logger),
	}
}

func (s *services) dashboardDeps(logger zerolog.Logger) dashboard.Deps {
	return dashboard.Deps{
		Profiles:      s.profiles,
		Appointments:  s.appointments,
		Records:       s.records,
		Rooms:         s.rooms,
		Payments:      s.payments,
		Messages:      s.messages,
		NurseRequests: s.nurseRequests,
		AuditLogs:     s.auditLogs,
		Logger:        logger,
		Now:           time.Now,
	}
}

func (s *services) registerAPI(api *echo.Group) {
	profile.NewHandler(s.profiles).RegisterRoutes(api)
	appointment.NewHandler(s.appointments).RegisterRoutes(api)
	medicalrecord.NewHandler(s.records).RegisterRoutes(api)
	room.NewHandler(s.rooms).RegisterRoutes(api)
	payment.NewHandler(s.payments).RegisterRoutes(api)
	message.NewHandler(s.messages).RegisterRoutes(api)
	nurserequest.NewHandler(s.nurseRequests).RegisterRoutes(api)
	auditlog.NewHandler(s.auditLogs).RegisterRoutes(api)
}

// sessionBackend holds token storage and the auth event bus, shared through
// Redis when one is configured.
type sessionBackend struct {
	storage backend.TokenStorage
	bus     backend.EventBus
	checks  []db.Check
	close   func()
}

func newSessionBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*sessionBackend, error) {
	if cfg.RedisURL == "" {
		return &sessionBackend{
			storage: backend.NewMemoryStorage(),
			bus:     backend.NewLocalBus(),
			close:   func() {},
		}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	bus := backend.NewRedisBus(client, logger)
	if err := bus.Start(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("subscribe to auth events: %w", err)
	}
	return &sessionBackend{
		storage: backend.NewRedisStorage(client, cfg.SessionTTL),
		bus:     bus,
		checks:  []db.Check{{Name: "redis", Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() }}},
		close: func() {
			bus.Close()
			client.Close()
		},
	}, nil
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "portal-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("tracing disabled")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	provider, issuer, err := buildProvider(cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure auth")
	}
	sb, err := newSessionBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure session storage")
	}
	defer sb.close()

	svcs := newServices(pool, logger)
	clients := backend.NewClients(provider, sb.storage, sb.bus, cfg.PasswordResetRedirectURL, logger)
	sessions := session.NewManager(func(sid string) session.AuthClient { return clients.For(sid) }, svcs.profiles, cfg.SessionTTL, logger)
	defer sessions.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 60 * time.Second
	e.Server.IdleTimeout = 120 * time.Second

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(echo.WrapMiddleware(otelhttp.NewMiddleware("portal")))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.SessionCookieSecure))
	e.Use(echomw.BodyLimit("2M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(middleware.Audit(logger, svcs.auditLogs))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, append([]db.Check{db.PoolCheck(pool)}, sb.checks...)...))

	if cfg.JWTSecret != "" {
		api := e.Group("/api/v1", auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     issuer,
			SigningKey: []byte(cfg.JWTSecret),
			Roles:      svcs.profiles,
		}))
		svcs.registerAPI(api)
	} else {
		logger.Warn().Msg("JWT_SECRET not set, gateway API disabled")
	}

	srv := portal.New(portal.Config{
		CookieName:   cfg.SessionCookieName,
		CookieSecure: cfg.SessionCookieSecure,
		SessionTTL:   cfg.SessionTTL,
		FormThrottle: middleware.Throttle(middleware.DefaultThrottleConfig()),
	}, sessions, svcs.dashboardDeps(logger), logger)
	srv.RegisterRoutes(e)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.AuthMode).Msg("starting server")
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
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to flush traces")
	}
	logger.Info().Msg("server stopped")
	return nil
}
