package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teemow/mailcal/internal/calendar"
	"github.com/teemow/mailcal/internal/config"
	"github.com/teemow/mailcal/internal/gate"
	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/logging"
	"github.com/teemow/mailcal/internal/registry"
	"github.com/teemow/mailcal/internal/server"
	"github.com/teemow/mailcal/internal/summarize"
)

// metricsStartTimeout bounds how long serve waits for the metrics listener.
const metricsStartTimeout = 5 * time.Second

// flagBindings maps serve flags to configuration keys.
var flagBindings = map[string]string{
	"addr":          "server.addr",
	"base-url":      "server.base_url",
	"app-url":       "server.app_url",
	"tls-cert-file": "server.tls_cert_file",
	"tls-key-file":  "server.tls_key_file",
	"storage":       "storage.type",
	"redis-addr":    "storage.redis.addr",
	"database-url":  "storage.database_url",
	"log-format":    "log.format",
	"debug":         "log.debug",
	"metrics":       "metrics.enabled",
	"metrics-addr":  "metrics.addr",
	"trust-proxy":   "rate_limit.trust_proxy",
}

func newServeCmd() *cobra.Command {
	var (
		configFile string
		yolo       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mailcal HTTP server",
		Long: `Start the HTTP server: the Google OAuth endpoints under /auth, the JSON API
for the dashboard under /api, and the MCP endpoint at /mcp.

Configuration is read from an optional YAML file (--config), environment
variables and flags, in increasing precedence.

OAuth Configuration:
  GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required.
  The redirect URI defaults to <base-url>/auth/callback; register it with the
  OAuth client in the Google Cloud console.

Storage:
  memory    tokens are lost on restart (default)
  redis     shared tokens and refresh locks (--redis-addr)
  postgres  durable tokens (--database-url)
  A database URL also makes the MCP server registry durable.

Safety Mode:
  By default MCP tools are read-only. Use --yolo to enable gmail_send and
  calendar_create_event.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, viper.New(), configFile)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, cfg, !yolo)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to a YAML configuration file")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable MCP write tools (sending email, creating events). Default is read-only.")

	cmd.Flags().String("addr", ":8080", "HTTP listen address. Can also use MAILCAL_ADDR env var.")
	cmd.Flags().String("base-url", "", "Public base URL of this server. Required for deployed instances. Can also use MAILCAL_BASE_URL env var.")
	cmd.Flags().String("app-url", "", "URL of the web app the OAuth callback returns to (default: base URL). Can also use MAILCAL_APP_URL env var.")
	cmd.Flags().String("tls-cert-file", "", "Path to TLS certificate file (PEM format). Can also use TLS_CERT_FILE env var.")
	cmd.Flags().String("tls-key-file", "", "Path to TLS private key file (PEM format). Can also use TLS_KEY_FILE env var.")
	cmd.Flags().String("storage", config.StorageMemory, "Token storage: memory, redis or postgres. Can also use MAILCAL_STORAGE env var.")
	cmd.Flags().String("redis-addr", "localhost:6379", "Redis address for redis storage. Can also use REDIS_ADDR env var.")
	cmd.Flags().String("database-url", "", "Postgres connection URL. Can also use DATABASE_URL env var.")
	cmd.Flags().String("log-format", "text", "Log format: text or json. Can also use LOG_FORMAT env var.")
	cmd.Flags().Bool("debug", false, "Enable debug logging. Can also use DEBUG env var.")
	cmd.Flags().Bool("metrics", true, "Serve Prometheus metrics on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().String("metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")
	cmd.Flags().Bool("trust-proxy", false, "Take client IPs from X-Forwarded-For for rate limiting. Only behind a trusted proxy.")

	return cmd
}

// loadConfig binds the command's flags to v and loads the configuration.
func loadConfig(cmd *cobra.Command, v *viper.Viper, configFile string) (*config.Config, error) {
	for flag, key := range flagBindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return config.Load(v, configFile)
}

func runServe(ctx context.Context, cfg *config.Config, readOnly bool) error {
	logger := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Debug)
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	prometheusExporter := instrConfig.MetricsExporter == instrumentation.ExporterPrometheus || instrConfig.MetricsExporter == ""
	if cfg.Metrics.Enabled && provider.Enabled() && prometheusExporter {
		metricsServer, err := startMetricsServer(cfg.Metrics.Addr, provider, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	var metrics *instrumentation.Metrics
	if provider.Enabled() {
		metrics = provider.Metrics()
	}
	audit := instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging)

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing storage", logging.Err(err))
		}
	}()

	authCfg := cfg.AuthConfig()
	catalog := google.NewScopeCatalog()
	googleOpts := []google.Option{google.WithMetrics(metrics), google.WithLogger(logger)}

	urls, err := google.NewAuthURLBuilder(authCfg, catalog)
	if err != nil {
		return err
	}
	exchanger, err := google.NewExchanger(authCfg, googleOpts...)
	if err != nil {
		return err
	}
	refresher, err := google.NewRefresher(authCfg, googleOpts...)
	if err != nil {
		return err
	}
	revoker := google.NewRevoker(authCfg, googleOpts...)

	accessGate, err := gate.New(gate.Config{
		Store:     st.tokens,
		Catalog:   catalog,
		Refresher: refresher,
		StartURL:  cfg.Server.BaseURL + gate.DefaultStartURL,
		Locker:    st.locker,
		Logger:    logger,
		Metrics:   metrics,
		Audit:     audit,
	})
	if err != nil {
		return err
	}

	if cfg.Gemini.APIKey == "" {
		logger.Info("GEMINI_API_KEY not set, email summaries use rules only")
	}
	summarizer, err := summarize.New(ctx, summarize.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	serverContext, err := server.NewServerContext(ctx, server.ContextConfig{
		Gate:       accessGate,
		Summarizer: summarizer,
		Meetings:   calendar.NewLocalMeetingProvider(cfg.Meeting.BaseURL),
		Metrics:    metrics,
		Audit:      audit,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("error during server context shutdown", logging.Err(err))
		}
	}()

	reg := registry.New(st.servers, metrics, logger)
	sessions := server.NewSessionManager(cfg.SecureCookies())

	if readOnly {
		logger.Info("MCP tools are read-only (use --yolo to enable write tools)")
	} else {
		logger.Warn("MCP write tools are enabled (--yolo)")
	}
	mcpSrv, err := newMCPServer(serverContext, reg, cfg.Server.BaseURL, readOnly)
	if err != nil {
		return err
	}

	health := server.NewHealthChecker(serverContext)
	for name, p := range st.checks {
		health.AddCheck(name, p)
	}

	srv, err := server.New(server.Options{
		Context:      serverContext,
		Sessions:     sessions,
		Store:        st.tokens,
		States:       st.states,
		URLs:         urls,
		Exchanger:    exchanger,
		Revoker:      revoker,
		Registry:     reg,
		RateLimiter:  server.NewRateLimiter(ctx, cfg.RateLimit.Rate, cfg.RateLimit.Burst, cfg.RateLimit.TrustProxy),
		Health:       health,
		MCP:          mcpHandler(mcpSrv, sessions),
		AppURL:       cfg.Server.AppURL,
		HTTPS:        cfg.SecureCookies(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
	})
	if err != nil {
		return err
	}

	logger.Info("starting mailcal",
		slog.String("version", version),
		slog.String("base_url", cfg.Server.BaseURL),
		slog.String("redirect_uri", authCfg.RedirectURL))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(cfg.Server.Addr, nil)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, stopping server",
		slog.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	if err := <-serverErr; err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func startMetricsServer(addr string, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		metricsErr <- metricsServer.Start(metricsReady)
	}()

	select {
	case <-metricsReady:
		return metricsServer, nil
	case err := <-metricsErr:
		if err == nil {
			err = errors.New("metrics server exited")
		}
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(metricsStartTimeout):
		return nil, errors.New("metrics server startup timed out")
	}
}
