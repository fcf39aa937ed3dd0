package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/jellyvr/internal/config"
	"github.com/jmylchreest/jellyvr/internal/database"
	"github.com/jmylchreest/jellyvr/internal/database/migrations"
	internalhttp "github.com/jmylchreest/jellyvr/internal/http"
	"github.com/jmylchreest/jellyvr/internal/http/handlers"
	"github.com/jmylchreest/jellyvr/internal/library"
	"github.com/jmylchreest/jellyvr/internal/observability"
	"github.com/jmylchreest/jellyvr/internal/repository"
	"github.com/jmylchreest/jellyvr/internal/scheduler"
	"github.com/jmylchreest/jellyvr/internal/service"
	"github.com/jmylchreest/jellyvr/internal/version"
	"github.com/jmylchreest/jellyvr/pkg/httpclient"
	"github.com/jmylchreest/jellyvr/pkg/jellyfin"
)

// jellyfinBreaker names the circuit breaker shared by all Jellyfin calls.
const jellyfinBreaker = "jellyfin"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the jellyvr server",
	Long: `Start the jellyvr HTTP server.

The server provides:
- the Quick Connect pairing page at /
- the HereSphere API at /heresphere
- a health check at /health and OpenAPI documentation at /docs

Unless disabled, a background task reports extrapolated playback positions
to Jellyfin on the progress schedule.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 3000, "Port to listen on")
	serveCmd.Flags().String("database", "jellyvr.db", "Database DSN (sqlite file path by default)")
	serveCmd.Flags().String("jellyfin-url", "", "Jellyfin base URL")
	serveCmd.Flags().String("public-url", "", "Externally visible base URL, when behind a proxy that rewrites Host")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
	mustBindPFlag("jellyfin.base_url", serveCmd.Flags().Lookup("jellyfin-url"))
	mustBindPFlag("server.public_url", serveCmd.Flags().Lookup("public-url"))
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing database", slog.String("error", err.Error()))
		}
	}()

	sessionRepo := repository.NewSessionRepository(db.DB)
	cacheRepo := repository.NewCacheRepository(db.DB)

	breakers := httpclient.NewRegistry()
	jf := newJellyfinClient(cfg.Jellyfin, breakers, logger)

	builder := library.NewBuilder(jf, cfg.Jellyfin.BaseURL).
		WithPreferredSubtitleLanguage(cfg.Catalog.PreferredSubtitleLanguage).
		WithLogger(observability.WithComponent(logger, "library"))

	sessionService := service.NewSessionService(sessionRepo, jf).
		WithLogger(observability.WithComponent(logger, "sessions"))
	cacheService := service.NewCacheService(cacheRepo, builder, cfg.Catalog.CacheLifetime).
		WithLogger(observability.WithComponent(logger, "catalog"))
	playbackService := service.NewPlaybackService(sessionRepo, jf, cfg.Jellyfin.BaseURL).
		WithLogger(observability.WithComponent(logger, "playback"))

	if cfg.Progress.Enabled {
		extrapolator := scheduler.NewProgressExtrapolator(sessionService, jf, cfg.Progress.Schedule).
			WithLogger(observability.WithComponent(logger, "progress"))
		if err := extrapolator.Start(ctx); err != nil {
			return fmt.Errorf("starting progress extrapolator: %w", err)
		}
		defer extrapolator.Stop()
	}

	serverConfig := internalhttp.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = cfg.Server.ReadTimeout
	serverConfig.WriteTimeout = cfg.Server.WriteTimeout
	serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	serverConfig.CORSOrigins = cfg.Server.CORSOrigins

	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	handlers.NewHealthHandler(version.Version).
		WithDB(db).
		WithBreakers(breakers).
		Register(server.API())
	handlers.NewBootstrapHandler(sessionService).RegisterChi(server.Router())
	handlers.NewHereSphereHandler(sessionService, cacheService, playbackService).
		WithPublicURL(cfg.Server.PublicURL).
		RegisterChi(server.Router())
	handlers.NewEventHandler(sessionService, playbackService).RegisterChi(server.Router())

	logger.Info("starting jellyvr server",
		slog.String("address", serverConfig.Address()),
		slog.String("jellyfin_url", cfg.Jellyfin.BaseURL),
		slog.String("version", version.Version),
		slog.Bool("progress_enabled", cfg.Progress.Enabled),
	)

	return server.ListenAndServe(ctx)
}

// openDatabase connects and brings the schema up to date.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*database.DB, error) {
	db, err := connectDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	if _, err := newMigrator(db, logger).Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

func connectDatabase(cfg config.DatabaseConfig, logger *slog.Logger) (*database.DB, error) {
	db, err := database.New(cfg, logger, &database.Options{PrepareStmt: true})
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	return db, nil
}

func newMigrator(db *database.DB, logger *slog.Logger) *migrations.Migrator {
	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	return migrator
}

// newJellyfinClient builds the Jellyfin client on a resilient HTTP client
// whose breaker is registered for health reporting.
func newJellyfinClient(cfg config.JellyfinConfig, breakers *httpclient.Registry, logger *slog.Logger) *jellyfin.Client {
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.Timeout
	httpCfg.RetryAttempts = cfg.RetryAttempts
	if cfg.BreakerThreshold > 0 {
		httpCfg.CircuitThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerReset > 0 {
		httpCfg.CircuitTimeout = cfg.BreakerReset
	}
	httpCfg.UserAgent = version.UserAgent()
	httpCfg.Logger = observability.WithComponent(logger, "httpclient")

	deviceID := cfg.DeviceID
	if deviceID == "" {
		host, err := os.Hostname()
		if err != nil {
			logger.Warn("reading hostname for device id", slog.String("error", err.Error()))
		}
		deviceID = deviceIDFor(host, cfg.BaseURL)
	}

	return jellyfin.NewClient(cfg.BaseURL,
		jellyfin.WithHTTPClient(breakers.Client(jellyfinBreaker, httpCfg).StandardClient()),
		jellyfin.WithDevice(cfg.DeviceName, deviceID),
		jellyfin.WithClientVersion(version.ClientVersion()),
		jellyfin.WithUserAgent(version.UserAgent()),
	)
}

// deviceIDFor derives a DeviceId that survives restarts, so Jellyfin keeps
// seeing one device for a given host and server.
func deviceIDFor(host, baseURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("jellyvr://"+host+"/"+baseURL)).String()
}
