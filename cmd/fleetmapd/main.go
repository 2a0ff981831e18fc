package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/fleetops/fleetmap/internal/api"
	"github.com/fleetops/fleetmap/internal/config"
	"github.com/fleetops/fleetmap/internal/descriptors"
	"github.com/fleetops/fleetmap/internal/feed"
	"github.com/fleetops/fleetmap/internal/geo"
	"github.com/fleetops/fleetmap/internal/influx"
	"github.com/fleetops/fleetmap/internal/logging"
	"github.com/fleetops/fleetmap/internal/maps"
	"github.com/fleetops/fleetmap/internal/maps/headless"
	"github.com/fleetops/fleetmap/internal/marker"
	"github.com/fleetops/fleetmap/internal/model"
	"github.com/fleetops/fleetmap/internal/monitor"
	"github.com/fleetops/fleetmap/internal/storage"
)

var (
	Version   = "0.1.0"
	BuildDate = "unknown"

	ServiceName = "fleetmapd"

	SessionStartTime = time.Now()
)

func main() {
	configDir := flag.String("config", ".", "directory containing fleetmap.cfg.json")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", ServiceName, Version, BuildDate)
		return
	}

	if err := run(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ServiceName, err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	slogManager := logging.NewSlogManager()
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config")
	}

	// create logs dir if it doesn't exist
	logsDir := config.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	logFilePath := logging.LogFilePath(logsDir, ServiceName, SessionStartTime)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", logFilePath, err)
	}
	defer logFile.Close()

	graylogAddr := ""
	if config.GetBool("graylog.enabled") {
		graylogAddr = config.GetString("graylog.address")
	}
	if err := slogManager.Setup(logFile, config.GetString("logLevel"), graylogAddr); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer slogManager.Close()
	logger = slogManager.Logger()
	logger.Info("Logging to file", "path", logFilePath)

	// route store
	backend, err := storage.NewBackend(config.GetStorageConfig())
	if err != nil {
		return fmt.Errorf("create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("init storage backend: %w", err)
	}
	defer backend.Close()
	logger.Info("Storage backend ready", "type", config.GetStorageConfig().Type)

	// sync routes from the route server, falling back to stored routes
	client := api.New(config.GetString("api.serverUrl"), config.GetString("api.apiKey"))
	if err := syncRoutes(client, backend, logger); err != nil {
		logger.Warn("Route sync failed, using stored routes", "error", err)
	}

	routes, err := backend.ListRoutes()
	if err != nil {
		return fmt.Errorf("list routes: %w", err)
	}
	if len(routes) == 0 {
		logger.Warn("No routes configured, only live vehicles will be shown")
	}

	// position feed
	posFeed := feed.New(feed.Config{
		URL:        config.GetString("feed.url"),
		Secret:     config.GetString("feed.secret"),
		StaleAfter: config.GetDuration("feed.staleAfter"),
	}, logger, nil)
	if err := posFeed.Start(); err != nil {
		return fmt.Errorf("connect to position feed: %w", err)
	}
	defer posFeed.Close()

	for _, route := range routes {
		if err := posFeed.Subscribe(route.BusNumber, route.Direction); err != nil {
			logger.Warn("Subscribe failed", "busNumber", route.BusNumber, "direction", route.Direction, "error", err)
		}
	}

	// marker manager over the headless map
	handlers := marker.Handlers{
		OnClick: func(id string, m maps.Marker) {
			logger.Info("Marker clicked", "id", id, "position", m.Position())
		},
		OnDragEnd: func(id string, pos geo.Position) {
			logger.Info("Marker dragged", "id", id, "lat", pos.Lat, "lon", pos.Lon)
		},
	}
	manager, err := marker.NewManager(headless.New(), handlers, logger)
	if err != nil {
		return fmt.Errorf("create marker manager: %w", err)
	}

	// metrics sink
	var influxManager *influx.Manager
	if config.GetBool("influx.enabled") {
		zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		influxManager = influx.NewManager(zlog, expandBackupPath(config.GetString("influx.backupPath")))
		if err := influxManager.Connect(); err != nil {
			logger.Warn("InfluxDB unavailable, metrics disabled", "error", err)
			influxManager = nil
		}
	}

	monitorService := monitor.NewService(monitor.Dependencies{
		LogManager: slogManager,
		Markers:    manager,
		Feed:       posFeed,
		Influx:     influxManager,
		StatusDir:  config.GetString("statusDir"),
		Interval:   config.GetDuration("monitorInterval"),
	})
	if err := monitorService.Start(); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	defer monitorService.Stop()

	// reconcile loop
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	stopDescriptors := stopMarkersFor(backend, routes, logger)
	ticker := time.NewTicker(config.GetDuration("reconcileInterval"))
	defer ticker.Stop()

	logger.Info("Fleet map running", "routes", len(routes), "viper.configFile", viper.ConfigFileUsed())

	for {
		select {
		case sig := <-sigCh:
			logger.Info("Shutting down", "signal", sig.String())
			if err := manager.ClearMarkers(); err != nil {
				logger.Error("Error clearing markers on shutdown", "error", err)
			}
			return nil
		case <-ticker.C:
			desired := make([]marker.Descriptor, 0, len(stopDescriptors))
			desired = append(desired, stopDescriptors...)
			desired = append(desired, descriptors.ForBuses(posFeed.Snapshot())...)

			if err := manager.UpdateMarkers(desired); err != nil {
				logger.Error("Reconcile failed", "error", err)
			}
		}
	}
}

// syncRoutes pulls the route list from the server and mirrors it into the
// local store so the map works offline on the next start.
func syncRoutes(client *api.Client, backend storage.Backend, logger *slog.Logger) error {
	if err := client.Healthcheck(); err != nil {
		return err
	}

	routes, err := client.ListRoutes()
	if err != nil {
		return err
	}

	for _, summary := range routes {
		route, err := client.GetRoute(summary.BusNumber, summary.Direction)
		if err != nil {
			logger.Warn("Fetching route failed", "busNumber", summary.BusNumber, "direction", summary.Direction, "error", err)
			continue
		}
		stops := route.Stops
		route.ID = 0
		route.Stops = nil
		if err := backend.SaveRoute(route); err != nil {
			logger.Warn("Saving route failed", "busNumber", route.BusNumber, "error", err)
			continue
		}
		// SaveRoute resolves the local ID on upsert.
		stored, err := backend.GetRoute(route.BusNumber, route.Direction)
		if err != nil {
			logger.Warn("Reloading route failed", "busNumber", route.BusNumber, "error", err)
			continue
		}
		if err := backend.ReplaceStops(stored.ID, stops); err != nil {
			logger.Warn("Replacing stops failed", "busNumber", route.BusNumber, "error", err)
		}
	}

	logger.Info("Route sync complete", "routes", len(routes))
	return nil
}

// stopMarkersFor loads each route's stops and flattens them into marker
// descriptors.
func stopMarkersFor(backend storage.Backend, routes []model.Route, logger *slog.Logger) []marker.Descriptor {
	var out []marker.Descriptor
	for _, summary := range routes {
		route, err := backend.GetRoute(summary.BusNumber, summary.Direction)
		if err != nil {
			logger.Warn("Loading stops failed", "busNumber", summary.BusNumber, "error", err)
			continue
		}
		out = append(out, descriptors.ForStops(route.Stops)...)
	}
	return out
}

func expandBackupPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
