package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/dynencounters/npc-engine/internal/api"
	"github.com/dynencounters/npc-engine/internal/behavior"
	"github.com/dynencounters/npc-engine/internal/cache"
	"github.com/dynencounters/npc-engine/internal/config"
	"github.com/dynencounters/npc-engine/internal/damage"
	"github.com/dynencounters/npc-engine/internal/dispatcher"
	"github.com/dynencounters/npc-engine/internal/gamedata"
	"github.com/dynencounters/npc-engine/internal/influx"
	"github.com/dynencounters/npc-engine/internal/logging"
	"github.com/dynencounters/npc-engine/internal/monitor"
	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/internal/services"
	"github.com/dynencounters/npc-engine/internal/session"
	"github.com/dynencounters/npc-engine/internal/spawn"
	"github.com/dynencounters/npc-engine/internal/storage"
	"github.com/dynencounters/npc-engine/internal/worker"
	"github.com/dynencounters/npc-engine/internal/world"
	"github.com/dynencounters/npc-engine/pkg/core"
)

// worldStep is how often the demo world moves its constructs.
const worldStep = 100 * time.Millisecond

func run(ctx context.Context, configDir string, seed uint64) error {
	cfgErr := config.Load(configDir)

	sess := session.NewContext(config.GetString("sessionName"), time.Now())
	logs, err := initLogging(ctx, sess.Get())
	if err != nil {
		return err
	}
	defer logs.close()
	logger := logs.logger

	if cfgErr != nil {
		logger.Warn("Using default configuration", "error", cfgErr)
	}
	logger.Info("npc_engine starting",
		"version", CurrentVersion, "buildDate", BuildDate,
		"session", sess.Get().ID, "name", sess.Get().Name)

	engineCfg := config.GetEngineConfig()
	bank, err := gamedata.LoadYAML(engineCfg.BankPath)
	if err != nil {
		return fmt.Errorf("loading item bank: %w", err)
	}
	prefabs, err := prefab.LoadYAML(engineCfg.PrefabsPath)
	if err != nil {
		return fmt.Errorf("loading prefabs: %w", err)
	}
	logger.Info("Game data loaded", "items", bank.Len(), "prefabs", len(prefabs))

	backend, prefabs, err := openStorage(sess.Get(), prefabs, logs.zerolog)
	if err != nil {
		return err
	}

	var influxManager *influx.Manager
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		influxManager = influx.NewManager(logs.zerolog, influxCfg.BackupPath)
		if err := influxManager.Connect(ctx, influxCfg); err != nil {
			logger.Warn("Influx unavailable", "error", err)
		}
	}

	events, err := dispatcher.New(logging.NewDispatcherLogger(logs.zerolog))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	writes := worker.NewManager(worker.Dependencies{
		Session: sess,
		Influx:  influxManager,
		Logger:  logger,
	}, backend)
	writes.RegisterHandlers(events)

	w := world.New(seed)
	var scenario *spawn.Scenario
	if engineCfg.ScenarioPath != "" {
		scenario, err = spawn.LoadScenario(engineCfg.ScenarioPath)
		if err != nil {
			return fmt.Errorf("loading scenario: %w", err)
		}
		scenario.Populate(w)
	}

	apiCfg := config.GetAPIConfig()
	apiClient := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	checkServerStatus(ctx, apiClient, logger)

	sched, err := behavior.NewScheduler(behavior.SchedulerConfig{
		TickInterval:     engineCfg.TickInterval,
		HeartbeatTimeout: engineCfg.HeartbeatTimeout,
		Workers:          engineCfg.Workers,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	logs.slog.SetContextProvider(logging.EntityCount(sched.Len))

	elements := cache.NewCachedElements(w, engineCfg.ElementCacheTTL, engineCfg.ConstructCacheTTL)

	sinks := destructionSinks{w, elements}
	if apiCfg.NotifyDestruction {
		sinks = append(sinks, apiClient)
	}
	svc := &behavior.Services{
		Constructs: w,
		Elements:   elements,
		Scan:       w,
		SafeZones:  w,
		Voxels:     w,
		Scene:      w,
		Sectors:    w,
		Notifier:   w,
		Shots:      &worker.RecordingShotChannel{Next: w, Dispatcher: events, Logger: logger},
		Destruction: &worker.RecordingDestructionSink{
			Next: sinks, Dispatcher: events, Logger: logger,
		},
		Damage:   damage.NewService(elements, bank, damage.NewIndex(bank), logger),
		Entities: sched,
		Radar:    &worker.RadarRecorder{Dispatcher: events, Logger: logger},
		Logger:   logger,
	}

	factory, err := spawn.NewFactory(svc, spawn.TimingsFromConfig(engineCfg.Timings), prefabs)
	if err != nil {
		return err
	}
	if scenario != nil {
		n, err := scenario.SpawnNPCs(ctx, factory, sched)
		if err != nil {
			logger.Warn("Some NPCs failed to spawn", "error", err)
		}
		logger.Info("Scenario loaded", "path", engineCfg.ScenarioPath, "npcs", n)
	}

	monitorCfg := config.GetMonitorConfig()
	mon := monitor.NewService(monitor.Dependencies{
		Logger:             logger,
		Session:            sess,
		Entities:           sched,
		Writes:             writes,
		Events:             events,
		StatusDir:          monitorCfg.StatusDir,
		Interval:           monitorCfg.Interval,
		PerformanceCommand: worker.CmdPerformance,
	})
	if err := mon.Start(); err != nil {
		logger.Warn("Status monitor not started", "error", err)
	}

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	p.Go(sched.Run)
	p.Go(func(ctx context.Context) error {
		return stepWorld(ctx, w)
	})
	if engineCfg.ConstructCacheTTL > 0 {
		p.Go(func(ctx context.Context) error {
			return elements.PurgeEvery(ctx, engineCfg.ConstructCacheTTL)
		})
	}
	runErr := p.Wait()
	logger.Info("Shutting down", "constructs", sched.Len())

	mon.Stop()
	sched.Close()
	events.Close()
	shutdownStorage(backend, apiClient, apiCfg, sess.Get(), logger)
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			logger.Warn("Failed to close influx", "error", err)
		}
	}
	logger.Info("npc_engine stopped")
	return runErr
}

// stepWorld advances the demo world until ctx is cancelled.
func stepWorld(ctx context.Context, w *world.World) error {
	ticker := time.NewTicker(worldStep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Step(worldStep.Seconds())
		}
	}
}

func shutdownStorage(backend storage.Backend, client *api.Client, apiCfg config.APIConfig, s session.Session, logger *slog.Logger) {
	if err := backend.EndSession(); err != nil {
		logger.Error("Failed to end session", "error", err)
	}

	if exp, ok := backend.(storage.Exporter); ok && apiCfg.UploadOnEnd {
		if path := exp.GetExportedFilePath(); path != "" {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			err := client.Upload(ctx, path, api.UploadMetadata{
				SessionID:   s.ID.String(),
				SessionName: s.Name,
				StartedAt:   s.StartedAt,
				Duration:    sessionDuration(s, time.Now()),
			})
			cancel()
			if err != nil {
				logger.Error("Failed to upload session", "path", path, "error", err)
			} else {
				logger.Info("Session uploaded", "path", path)
			}
		}
	}

	if err := backend.Close(); err != nil {
		logger.Error("Failed to close storage", "error", err)
	}
}

func checkServerStatus(ctx context.Context, client *api.Client, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Healthcheck(ctx); err != nil {
		logger.Info("Mod API is offline", "error", err)
		return
	}
	logger.Info("Mod API is online")
}

// destructionSinks tells every sink about a destruction.
type destructionSinks []services.DestructionSink

func (s destructionSinks) ConstructDestroyed(ctx context.Context, e core.DestructionEvent) error {
	var errs []error
	for _, sink := range s {
		if err := sink.ConstructDestroyed(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
