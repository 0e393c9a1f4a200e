// Roomwall Core - Room Hardware Control
//
// Main entry point for the room core. The core owns the room's device
// modules (displays, cameras, lighting, audio, conferencing DSP),
// aggregates their health and serves the local REST and WebSocket API
// the wall panels talk to.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roomwall/roomwall-core/internal/api"
	"github.com/roomwall/roomwall-core/internal/dmx"
	"github.com/roomwall/roomwall-core/internal/hardware"
	"github.com/roomwall/roomwall-core/internal/health"
	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
	"github.com/roomwall/roomwall-core/internal/infrastructure/database"
	"github.com/roomwall/roomwall-core/internal/infrastructure/influxdb"
	"github.com/roomwall/roomwall-core/internal/infrastructure/logging"
	"github.com/roomwall/roomwall-core/internal/infrastructure/mqtt"
	"github.com/roomwall/roomwall-core/internal/mixer"
	"github.com/roomwall/roomwall-core/internal/module"
	"github.com/roomwall/roomwall-core/internal/modules/audioep"
	"github.com/roomwall/roomwall-core/internal/modules/biamp"
	"github.com/roomwall/roomwall-core/internal/modules/camera"
	"github.com/roomwall/roomwall-core/internal/modules/display"
	"github.com/roomwall/roomwall-core/internal/modules/lighting"
	"github.com/roomwall/roomwall-core/internal/modules/sysaudio"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// knownModules is every module family the core can run. The health
// service reports not-implemented for families that never register.
var knownModules = []string{
	display.ModuleName,
	camera.ModuleName,
	lighting.ModuleName,
	sysaudio.ModuleName,
	audioep.MicrophoneModule,
	audioep.SpeakerModule,
	biamp.ModuleName,
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Roomwall Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// MQTT is an optional observer; the room runs fully without it.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, continuing without it", "error", err)
			mqttClient = nil
		} else {
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
		}
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB is equally optional.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, continuing without it", "error", err)
			influxClient = nil
		} else {
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
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Hardware manager and the enabled modules.
	manager := hardware.NewManager()
	manager.SetLogger(log)
	registerModules(cfg, db, manager, log)

	if !manager.InitializeAll(ctx) && manager.ModuleCount() > 0 {
		log.Error("no module initialised, serving status surface only")
	}
	manager.StartAllMonitoring(ctx)
	defer func() {
		log.Info("shutting down hardware manager")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if closeErr := manager.Close(shutdownCtx); closeErr != nil {
			log.Error("error closing hardware manager", "error", closeErr)
		}
	}()

	// Health aggregation over everything the manager runs.
	healthSvc := health.NewService(manager, knownModules)
	healthSvc.SetLogger(log)
	healthSvc.Start(ctx)
	defer func() {
		log.Info("stopping health service")
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if stopErr := healthSvc.Stop(stopCtx); stopErr != nil {
			log.Error("error stopping health service", "error", stopErr)
		}
	}()

	// Stream health into the optional sinks.
	if mqttClient != nil {
		detach := mqtt.NewHealthPublisher(mqttClient).Attach(healthSvc)
		defer detach()
	}
	if influxClient != nil {
		detach := attachInflux(influxClient, healthSvc)
		defer detach()
	}

	// REST and WebSocket API.
	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Media:   cfg.Media,
		Logger:  log,
		Manager: manager,
		Health:  healthSvc,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API, sinks, health service, hardware manager, InfluxDB, MQTT, database.

	log.Info("Roomwall Core stopped")
	return nil
}

// registerModules builds and registers every enabled module plus its
// rebuild hook for diagnostics-driven restarts.
func registerModules(cfg *config.Config, db *database.DB, manager *hardware.Manager, log *logging.Logger) {
	if cfg.Modules.Display.Enabled {
		manager.Register(display.New(cfg.Modules.Display))
		manager.RegisterBuilder(display.ModuleName, func() (module.Module, error) {
			return display.New(cfg.Modules.Display), nil
		})
	}

	if cfg.Modules.Camera.Enabled {
		buildCamera := func() (module.Module, error) {
			mod := camera.New(cfg.Modules.Camera, db)
			mod.SetLogger(log)
			return mod, nil
		}
		if mod, err := buildCamera(); err == nil {
			manager.Register(mod)
		}
		manager.RegisterBuilder(camera.ModuleName, buildCamera)
	}

	if cfg.Modules.Lighting.Enabled {
		buildLighting := func() (module.Module, error) {
			adapter, err := dmx.OpenSerialAdapter(cfg.Modules.Lighting.AdapterPath)
			if err != nil {
				return nil, err
			}
			store, err := dmx.NewSQLiteStore(context.Background(), db)
			if err != nil {
				adapter.Close() //nolint:errcheck // Best effort on error path
				return nil, err
			}
			tx := dmx.NewTransmitter(adapter, store, cfg.Modules.Lighting.FrameRate)
			tx.SetLogger(log)
			return lighting.New(cfg.Modules.Lighting, tx), nil
		}
		if mod, err := buildLighting(); err == nil {
			manager.Register(mod)
		} else {
			log.Error("lighting unavailable", "error", err)
		}
		manager.RegisterBuilder(lighting.ModuleName, buildLighting)
	}

	// One mixer serves all audio modules.
	if cfg.Modules.SystemAudio.Enabled || cfg.Modules.Microphone.Enabled || cfg.Modules.Speaker.Enabled {
		command := cfg.Modules.SystemAudio.MixerCommand
		if command == "" {
			command = cfg.Modules.Microphone.MixerCommand
		}
		if command == "" {
			command = cfg.Modules.Speaker.MixerCommand
		}
		mix := mixer.NewExecMixer(command)

		if cfg.Modules.SystemAudio.Enabled {
			manager.Register(sysaudio.New(cfg.Modules.SystemAudio, mix))
			manager.RegisterBuilder(sysaudio.ModuleName, func() (module.Module, error) {
				return sysaudio.New(cfg.Modules.SystemAudio, mix), nil
			})
		}
		if cfg.Modules.Microphone.Enabled {
			manager.Register(audioep.NewMicrophone(cfg.Modules.Microphone, mix))
			manager.RegisterBuilder(audioep.MicrophoneModule, func() (module.Module, error) {
				return audioep.NewMicrophone(cfg.Modules.Microphone, mix), nil
			})
		}
		if cfg.Modules.Speaker.Enabled {
			manager.Register(audioep.NewSpeaker(cfg.Modules.Speaker, mix))
			manager.RegisterBuilder(audioep.SpeakerModule, func() (module.Module, error) {
				return audioep.NewSpeaker(cfg.Modules.Speaker, mix), nil
			})
		}
	}

	if cfg.Modules.Biamp.Enabled {
		manager.Register(biamp.New(cfg.Modules.Biamp))
		manager.RegisterBuilder(biamp.ModuleName, func() (module.Module, error) {
			return biamp.New(cfg.Modules.Biamp), nil
		})
	}
}

// attachInflux streams health transitions and module views into InfluxDB.
func attachInflux(client *influxdb.Client, svc *health.Service) func() {
	unsubEvents := svc.SubscribeEvents(func(ev health.Event) {
		client.WriteHealthTransition(ev)
	})
	unsubChanged := svc.SubscribeModuleChanged(func(name string) {
		if view, ok := svc.ModuleView(name); ok {
			client.WriteModuleHealth(view)
		}
		client.WriteSystemSummary(svc.Summary())
	})
	return func() {
		unsubEvents()
		unsubChanged()
	}
}

// getConfigPath returns the configuration file path.
// Uses ROOMWALL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ROOMWALL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
