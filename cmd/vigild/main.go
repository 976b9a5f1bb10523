// vigild is the telemetry ingestion and query daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xtxerr/vigil/internal/auth"
	"github.com/xtxerr/vigil/internal/config"
	"github.com/xtxerr/vigil/internal/handler"
	"github.com/xtxerr/vigil/internal/logging"
	"github.com/xtxerr/vigil/internal/metrics"
	"github.com/xtxerr/vigil/internal/notify"
	"github.com/xtxerr/vigil/internal/server"
	"github.com/xtxerr/vigil/internal/source"
	"github.com/xtxerr/vigil/internal/storage"
	"github.com/xtxerr/vigil/internal/storage/timerange"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vigild: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	listen := flag.String("listen", "", "listen address (overrides config)")
	backendName := flag.String("backend", "", "storage backend (overrides config)")
	sourceURL := flag.String("source", "", "reading endpoint URL (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	logJSON := flag.Bool("log-json", false, "log as JSON")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	// CLI overrides
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *backendName != "" {
		cfg.Storage.Backend = *backendName
	}
	if *sourceURL != "" {
		cfg.Source.URL = *sourceURL
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logJSON {
		cfg.Log.Format = "json"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if err := logging.InitFromConfig(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	log := logging.Component("main")
	log.Info("vigild starting", "version", Version, "backend", cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// Storage, Source, Notifier
	// =========================================================================

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	b, err := storage.Open(openCtx, cfg.Storage)
	cancel()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	src, err := source.NewHTTP(cfg.Source.URL,
		source.WithTimeout(cfg.Source.Timeout),
		source.WithUserAgent("vigild/"+Version))
	if err != nil {
		_ = b.Close()
		return fmt.Errorf("create source: %w", err)
	}

	var pub notify.Publisher = notify.Nop{}
	if cfg.Notify.Kafka.Enabled {
		k, err := notify.NewKafka(notify.KafkaOptions{
			Brokers:      cfg.Notify.Kafka.Brokers,
			Topic:        cfg.Notify.Kafka.Topic,
			FlushTimeout: cfg.Notify.Kafka.FlushTimeout,
		})
		if err != nil {
			_ = b.Close()
			return fmt.Errorf("create kafka notifier: %w", err)
		}
		pub = k
		log.Info("publishing invalidations", "topic", cfg.Notify.Kafka.Topic)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn("close notifier", "error", err)
		}
	}()

	m := metrics.New()

	svc, err := storage.New(b, src, cfg,
		storage.WithObserver(m),
		storage.WithNotifier(pub))
	if err != nil {
		_ = b.Close()
		return fmt.Errorf("create storage service: %w", err)
	}
	if err := svc.Start(); err != nil {
		_ = b.Close()
		return fmt.Errorf("start storage service: %w", err)
	}
	defer func() {
		log.Info("stopping storage service")
		if err := svc.Stop(); err != nil {
			log.Warn("storage stop", "error", err)
		}
	}()

	// =========================================================================
	// HTTP
	// =========================================================================

	authn, err := auth.NewAuthenticator(cfg.Auth.Keys)
	if err != nil {
		return fmt.Errorf("create authenticator: %w", err)
	}
	formatter, err := timerange.NewFormatter(cfg.Query.Timezone)
	if err != nil {
		return err
	}

	limiter := handler.NewRateLimiter(cfg.Auth.MaxFailuresPerMinute, time.Minute)
	defer limiter.Stop()

	gin.SetMode(gin.ReleaseMode)
	h, err := handler.New(svc, handler.Config{
		Authenticator: authn,
		Location:      formatter.Location,
		Limiter:       limiter,
		Recorder:      m,
		Metrics:       m.Handler(),
	})
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Listen:          cfg.Server.Listen,
		TLSCertFile:     cfg.Server.TLSCertFile,
		TLSKeyFile:      cfg.Server.TLSKeyFile,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, h.Router())

	// =========================================================================
	// Run
	// =========================================================================

	log.Info("ingestion configured",
		"mode", cfg.Ingestion.Mode,
		"interval", cfg.Ingestion.Interval,
		"source", cfg.Source.URL)

	return srv.Run(ctx)
}
