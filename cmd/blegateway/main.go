// BLE gateway
//
// This is the main entry point of the BLE to MQTT gateway. It scans for
// Bluetooth Low Energy advertisements, keeps the latest manufacturer payload
// per device and forwards every new or changed payload to an MQTT broker
// over a wireless link. The whole registry is replayed whenever the broker
// session comes back.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-blegw/migrations"

	"github.com/nerrad567/gray-logic-blegw/internal/api"
	"github.com/nerrad567/gray-logic-blegw/internal/connectivity"
	"github.com/nerrad567/gray-logic-blegw/internal/device"
	"github.com/nerrad567/gray-logic-blegw/internal/gateway"
	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/led"
	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-blegw/internal/infrastructure/wifi"
	"github.com/nerrad567/gray-logic-blegw/internal/scanner"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

const (
	// journalRetention is how long forwarded messages stay in the journal.
	journalRetention = 7 * 24 * time.Hour
	pruneInterval    = time.Hour

	statsInterval = time.Minute
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing a startup failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting BLE gateway",
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
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	registry := device.NewRegistry()
	registry.SetLogger(log.Component("registry"))

	obs := &observers{log: log}

	// Journal (optional)
	if cfg.Database.Enabled {
		db, dbErr := openJournal(ctx, cfg.Database)
		if dbErr != nil {
			return dbErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		journal := device.NewSQLiteJournal(db.DB)
		obs.journal = journal
		go pruneJournal(ctx, journal, log)
		log.Info("publish journal enabled", "path", cfg.Database.Path)
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		obs.influx = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Status LED (optional)
	var statusLED *led.LED
	if cfg.StatusLED.Enabled {
		statusLED = led.New(cfg.StatusLED.Path, cfg.StatusLED.ActiveLow)
		if setErr := statusLED.Set(false); setErr != nil {
			log.Warn("status LED unavailable", "path", cfg.StatusLED.Path, "error", setErr)
		}
		obs.led = statusLED
	}

	// Wireless link
	link, closeLink, err := openLink(cfg.WiFi, log)
	if err != nil {
		return err
	}
	defer closeLink()

	// Broker session. Connect happens inside the state machine.
	session := mqtt.New(cfg.MQTT)
	session.SetLogger(log.Component("mqtt"))
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := session.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	machine := connectivity.New(link, session, registry, connectivity.Config{
		MaxAttempts: cfg.Gateway.MaxConnectionAttempts,
		RetryDelay:  cfg.Gateway.RetryDelay,
		Topic:       cfg.MQTT.Topic,
	})
	machine.SetLogger(log.Component("connectivity"))

	// BLE scanner
	sc, err := scanner.Open(cfg.Bluetooth, cfg.Gateway.ObservationBuffer)
	if err != nil {
		return fmt.Errorf("opening bluetooth scanner: %w", err)
	}
	sc.SetLogger(log.Component("scanner"))
	defer func() {
		if closeErr := sc.Close(); closeErr != nil {
			log.Error("error closing scanner", "error", closeErr)
		}
	}()

	gw := gateway.New(registry, machine, sc, gateway.Config{
		ScanDuration:  cfg.Gateway.ScanDuration,
		CycleInterval: cfg.Gateway.CycleInterval,
	})
	gw.SetLogger(log.Component("gateway"))

	m := metrics.New(metrics.Sources{
		Devices:    registry.Len,
		State:      func() int { return int(machine.State()) },
		Published:  func() uint64 { return machine.Stats().Published },
		Suppressed: func() uint64 { return machine.Stats().Suppressed },
		SendErrors: func() uint64 { return machine.Stats().SendErrors },
		Replays:    func() uint64 { return machine.Stats().Replays },
		Seen:       sc.Seen,
		Dropped:    sc.Dropped,
	})
	obs.metrics = m
	obs.attach(machine, gw)

	if influxClient != nil {
		go writeStats(ctx, influxClient, registry, machine, sc)
	}

	// Status API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			Registry: registry,
			State:    machine,
			Journal:  obs.journal,
			Metrics:  m.Handler(),
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete",
		"topic", cfg.MQTT.Topic,
		"broker", cfg.BrokerAddress(),
	)

	if err := gw.Run(ctx); err != nil {
		return fmt.Errorf("gateway loop: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	if statusLED != nil {
		if setErr := statusLED.Set(false); setErr != nil {
			log.Warn("failed to clear status LED", "error", setErr)
		}
	}

	// Deferred Close() calls run in reverse order:
	// API, scanner, MQTT, wireless link, InfluxDB, database.
	log.Info("BLE gateway stopped", "devices", registry.Len())
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BLEGW_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BLEGW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openJournal opens the SQLite database and applies migrations.
func openJournal(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// openLink returns the wireless link and its cleanup function.
// With Wi-Fi management disabled the host owns the link.
func openLink(cfg config.WiFiConfig, log *logging.Logger) (connectivity.Link, func(), error) {
	if !cfg.Enabled {
		log.Info("wireless link managed by host")
		return wifi.HostManaged{}, func() {}, nil
	}

	link, err := wifi.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening wireless interface: %w", err)
	}
	link.SetLogger(log.Component("wifi"))
	log.Info("wireless link opened", "interface", cfg.Interface, "ssid", cfg.SSID)

	return link, func() {
		log.Info("closing wireless link")
		if err := link.Close(); err != nil {
			log.Error("error closing wireless link", "error", err)
		}
	}, nil
}

// pruneJournal deletes expired journal entries until ctx is cancelled.
func pruneJournal(ctx context.Context, journal *device.SQLiteJournal, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := journal.Prune(ctx, journalRetention)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("failed to prune journal", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("pruned journal", "deleted", n)
			}
		}
	}
}

// writeStats writes a gateway summary point every statsInterval.
func writeStats(ctx context.Context, ts timeSeries, registry *device.Registry, machine *connectivity.Machine, sc *scanner.Scanner) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.WriteGatewayStats(gatewayStats(registry, machine.State(), machine.Stats(), sc.Seen(), sc.Dropped()))
		}
	}
}

func gatewayStats(registry *device.Registry, state connectivity.State, stats connectivity.Stats, seen, dropped uint64) influxdb.GatewayStats {
	return influxdb.GatewayStats{
		Devices:    registry.Len(),
		Published:  stats.Published,
		Suppressed: stats.Suppressed,
		SendErrors: stats.SendErrors,
		Seen:       seen,
		Dropped:    dropped,
		State:      state.String(),
	}
}
