package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/worlddriven/worlddriven/internal/cfg"
	"github.com/worlddriven/worlddriven/internal/credential"
	"github.com/worlddriven/worlddriven/internal/eventfilter"
	"github.com/worlddriven/worlddriven/internal/githubclt"
	"github.com/worlddriven/worlddriven/internal/logfields"
	"github.com/worlddriven/worlddriven/internal/orchestrator"
	"github.com/worlddriven/worlddriven/internal/provider"
	"github.com/worlddriven/worlddriven/internal/provider/github"
	"github.com/worlddriven/worlddriven/internal/store"
)

const appName = "worlddriven"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

const EventChannelBufferSize = 1024

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func startHTTPServer(listenAddr string, handler http.Handler) {
	httpServer := http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating http server",
			logfields.Event("http_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := httpServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down http server failed",
				logfields.Event("http_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	ShowVersion *bool
}

var args arguments

const defConfigFile = "/etc/worlddriven/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the worlddriven configuration file",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nMerge or close pull requests based on weighted contributor votes.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	file, err := os.Open(*args.ConfigFile)
	exitOnErr("could not open configuration files", err)
	defer file.Close()

	config, err := cfg.Load(file)
	if err != nil {
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)
	}

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

// mustInitStore returns the postgres store when a database is configured,
// otherwise an in-memory store containing the repositories from the
// configuration file.
func mustInitStore(ctx context.Context, config *cfg.Config) orchestratorStore {
	if config.DatabaseDSN != "" {
		pg, err := store.NewPostgres(ctx, config.DatabaseDSN)
		if err != nil {
			logger.Fatal(
				"initializing database store failed",
				logfields.Event("db_init_failed"),
				zap.Error(err),
			)
		}

		goodbye.Register(func(context.Context, os.Signal) {
			logger.Debug("closing database connections", logfields.Event("db_closing"))
			pg.Close()
		})

		return pg
	}

	mem := store.NewMemStore()
	for _, r := range config.Repositories {
		mem.AddRepository(&store.Repository{
			Owner:          r.Owner,
			Name:           r.RepositoryName,
			InstallationID: r.InstallationID,
		})
	}

	if len(config.Repositories) == 0 {
		logger.Warn(
			"no database and no repositories configured, no pull requests will be evaluated",
			logfields.Event("no_repositories_configured"),
		)
	}

	return mem
}

type orchestratorStore interface {
	orchestrator.RepositoryStore
	credential.Store
}

func mustReadAppCredentials(config *cfg.Config) *githubclt.AppCredentials {
	if config.GithubAppID == 0 {
		return nil
	}

	key, err := os.ReadFile(config.GithubAppPrivateKeyFile)
	if err != nil {
		logger.Fatal(
			"reading github app private key file failed",
			logfields.Event("github_app_key_read_failed"),
			zap.String("path", config.GithubAppPrivateKeyFile),
			zap.Error(err),
		)
	}

	return &githubclt.AppCredentials{
		AppID:      config.GithubAppID,
		PrivateKey: key,
	}
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	filterQuery := config.WebhookFilterQuery
	if filterQuery == "" {
		filterQuery = eventfilter.DefaultQuery
	}
	filter, err := eventfilter.New(filterQuery)
	exitOnErr(fmt.Sprintf("could not parse webhook_filter_query from configuration file: %s", *args.ConfigFile), err)

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("github_webhook_endpoint", config.HTTPGithubWebhookEndpoint),
		zap.String("github_webhook_secret", hide(config.GithubWebHookSecret)),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.Int64("github_app_id", config.GithubAppID),
		zap.String("github_app_private_key_file", config.GithubAppPrivateKeyFile),
		zap.String("database_dsn", hide(config.DatabaseDSN)),
		zap.String("api_token", hide(config.APIToken)),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.String("sweep_interval", config.SweepInterval),
		zap.String("status_context", config.StatusContext),
		zap.String("dashboard_url", config.DashboardURL),
		zap.Stringer("webhook_filter_query", filter),
		zap.Bool("dry_run", config.DryRun),
		zap.Int("repositories", len(config.Repositories)),
	)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	recordStore := mustInitStore(ctx, config)

	resolver := credential.NewResolver(
		recordStore,
		credential.WithEnvironmentToken(config.GithubAPIToken),
	)

	var clientOpts []githubclt.Option
	if app := mustReadAppCredentials(config); app != nil {
		clientOpts = append(clientOpts, githubclt.WithAppCredentials(app))
	}

	clients := orchestrator.NewGithubClientFactory(
		githubclt.NewFactory(resolver, clientOpts...),
		config.DryRun,
	)

	evChan := make(chan *provider.Event, EventChannelBufferSize)

	orch := orchestrator.New(
		recordStore,
		clients,
		orchestrator.WithEventChan(evChan),
		orchestrator.WithEventFilter(filter),
		orchestrator.WithSweepInterval(config.SweepIntervalDuration()),
		orchestrator.WithStatusContext(config.StatusContext),
		orchestrator.WithDashboardURL(config.DashboardURL),
	)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	gh := github.New(evChan, github.WithPayloadSecret(config.GithubWebHookSecret))
	router.Post(config.HTTPGithubWebhookEndpoint, gh.HTTPHandler)
	logger.Info(
		"registered github webhook event http endpoint",
		logfields.Event("github_http_handler_registered"),
		zap.String("endpoint", config.HTTPGithubWebhookEndpoint),
	)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthzHandler)

	if config.APIToken == "" {
		logger.Warn(
			"api_token is not configured, api endpoints that trigger evaluations are disabled",
			logfields.Event("api_token_unset"),
		)
	}
	orchestrator.NewHTTPService(ctx, orch, orchestrator.WithAPIToken(config.APIToken)).RegisterHandlers(router)

	startHTTPServer(config.HTTPListenAddr, router)

	evLoopDone := make(chan struct{})
	go func() {
		defer panicHandler()
		defer close(evLoopDone)

		orch.Run(ctx)
	}()

	goodbye.Register(func(context.Context, os.Signal) {
		logger.Debug(
			"stopping event loop",
			logfields.Event("event_loop_stopping"),
		)

		cancelFn()
		<-evLoopDone

		logger.Debug(
			"event loop stopped",
			logfields.Event("event_loop_stopped"),
		)
	})

	<-evLoopDone
	goodbye.Exit(context.Background(), 0)
}
