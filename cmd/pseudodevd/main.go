// pseudodevd hosts a fixed table of in-memory pseudo-devices.
//
// Devices are byte buffers with a capacity and an access mask. They are
// attached from the config file at start-up, from the descriptor catalogue
// of an earlier run, and at runtime over the MQTT probe bus or the admin
// API. On shutdown every device is removed.
//
// Usage:
//
//	pseudodevd                   run the daemon
//	pseudodevd token <subject>   print an operator token for the admin API
//	pseudodevd token <subject> viewer
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/pseudodev/migrations"

	"github.com/nerrad567/pseudodev/internal/api"
	"github.com/nerrad567/pseudodev/internal/audit"
	"github.com/nerrad567/pseudodev/internal/auth"
	"github.com/nerrad567/pseudodev/internal/device"
	"github.com/nerrad567/pseudodev/internal/infrastructure/config"
	"github.com/nerrad567/pseudodev/internal/infrastructure/database"
	"github.com/nerrad567/pseudodev/internal/infrastructure/influxdb"
	"github.com/nerrad567/pseudodev/internal/infrastructure/logging"
	"github.com/nerrad567/pseudodev/internal/infrastructure/mqtt"
	"github.com/nerrad567/pseudodev/internal/probe"
	"github.com/nerrad567/pseudodev/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when PSEUDODEV_CONFIG is unset.
	defaultConfigPath = "configs/config.yaml"

	// shutdownTimeout bounds removal of every device after the signal.
	shutdownTimeout = 10 * time.Second
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the daemon, separated from main for testability.
//
// Start-up order: config, logger, database, registry, controller and its
// listeners, MQTT, static device table, catalogue, probe bus, telemetry,
// API. After ctx is cancelled every device is removed before MQTT and the
// database close.
//
// Parameters:
//   - ctx: Context cancelled by the shutdown signal
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear start-up sequence
	log := logging.Default()
	log.Info("starting pseudodevd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	registry := device.NewRegistry(cfg.Registry.MaxDevices, cfg.Registry.MaxCapacity)
	registry.SetLogger(log)

	controller := probe.NewController(registry)
	controller.SetLogger(log)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo)
	recorder.SetLogger(log)
	controller.AddListener(recorder)

	catalogue := probe.NewCatalogue(db.DB)
	catalogue.SetLogger(log)
	controller.AddListener(catalogue)

	// MQTT (optional). Connected before any probe so status messages for
	// the static table are published.
	var mqttClient *mqtt.Client
	var bus *probe.Bus
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bus = probe.NewBus(mqttClient, controller, mqttClient.Topics(), mqttClient.QoS())
		bus.SetLogger(log)
		controller.AddListener(bus)
	} else {
		log.Info("MQTT disabled")
	}

	// Removal runs even if start-up fails half way, and before MQTT
	// closes, so listeners see a detach for everything they saw attached.
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := controller.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error("removing devices", "error", shutdownErr)
		}
		log.Info("all devices removed")
	}()

	// API (optional). The hub must listen before the first probe.
	var server *api.Server
	if cfg.API.Enabled {
		server, err = api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Security:   cfg.Security,
			Logger:     log,
			Registry:   registry,
			Controller: controller,
			Audit:      auditRepo,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		controller.AddListener(server.Hub())
	}

	// Static device table, in order, so handles are 0..n-1.
	staticCtx := probe.ContextWithOrigin(ctx, probe.Origin{Source: probe.SourceConfig})
	if _, probeErr := controller.ProbeAll(staticCtx, cfg.Devices); probeErr != nil {
		return fmt.Errorf("probing static devices: %w", probeErr)
	}
	log.Info("static devices probed", "count", len(cfg.Devices))

	restored, restoreErr := catalogue.Restore(ctx, controller)
	if restoreErr != nil {
		log.Warn("some catalogued devices could not be restored", "error", restoreErr)
	}
	log.Info("device table ready",
		"restored", restored,
		"attached", registry.Count(),
		"size", registry.Size(),
	)

	if bus != nil {
		if startErr := bus.Start(ctx); startErr != nil {
			return fmt.Errorf("starting probe bus: %w", startErr)
		}
		defer func() {
			if stopErr := bus.Stop(); stopErr != nil {
				log.Warn("stopping probe bus", "error", stopErr)
			}
		}()
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		reporter := telemetry.NewReporter(registry, influxClient, cfg.GetTelemetryInterval())
		reporterCtx, stopReporter := context.WithCancel(ctx)
		reporterDone := make(chan struct{})
		go func() {
			defer close(reporterDone)
			reporter.Run(reporterCtx)
		}()
		// Registered after the InfluxDB close, so the final sample is
		// flushed by it.
		defer func() {
			stopReporter()
			<-reporterDone
			log.Info("telemetry stopped", "samples", reporter.Samples())
		}()
	} else {
		log.Info("InfluxDB disabled")
	}

	if server != nil {
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// API, telemetry, InfluxDB, probe bus, device removal, MQTT, database.
	return nil
}

// getConfigPath returns PSEUDODEV_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("PSEUDODEV_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies every enabled connection.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// runToken prints an access token for the configured JWT secret.
//
// Arguments: <subject> [role]. The role defaults to operator.
func runToken(args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 2 || args[0] == "" {
		return errors.New("usage: pseudodevd token <subject> [viewer|operator]")
	}

	role := auth.RoleOperator
	if len(args) == 2 {
		parsed, err := auth.ParseRole(args[1])
		if err != nil {
			return err
		}
		role = parsed
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not set")
	}

	token, err := auth.GenerateAccessToken(args[0], role, cfg.Security.JWT.Secret, cfg.GetAccessTokenTTL())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
