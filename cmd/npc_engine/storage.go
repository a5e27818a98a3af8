package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dynencounters/npc-engine/internal/config"
	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/internal/session"
	"github.com/dynencounters/npc-engine/internal/storage"
)

// openStorage creates the configured backend, starts the session and stores
// the prefab catalog. It returns the catalog merged with what the backend
// already knew.
func openStorage(s session.Session, prefabs []prefab.Definition, log zerolog.Logger) (storage.Backend, []prefab.Definition, error) {
	storageCfg := config.GetStorageConfig()

	switch storageCfg.Type {
	case storage.TypeWebsocket:
		if storageCfg.Websocket.URL == "" {
			api := config.GetAPIConfig()
			storageCfg.Websocket.URL = httpToWS(api.ServerURL) + "/api"
			storageCfg.Websocket.Secret = api.APIKey
		}
	case storage.TypeSQLite:
		if storageCfg.SQLite.DumpPath == "" {
			storageCfg.SQLite.DumpPath = filepath.Join(config.GetString("logsDir"),
				fmt.Sprintf("npc_engine_%s.db", s.StartedAt.Format("20060102_150405")))
		}
	}

	backend, err := storage.NewBackend(storageCfg, config.GetDBConfig(), log)
	if err != nil {
		return nil, nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing %s storage: %w", storageCfg.Type, err)
	}
	if err := backend.StartSession(s); err != nil {
		_ = backend.Close()
		return nil, nil, fmt.Errorf("starting session: %w", err)
	}
	log.Info().Str("type", storageCfg.Type).Msg("Storage backend initialized")

	for i := range prefabs {
		if err := backend.SavePrefab(&prefabs[i]); err != nil {
			log.Warn().Err(err).Str("prefab", prefabs[i].Name).Msg("Failed to save prefab")
		}
	}

	stored, err := backend.Prefabs()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list stored prefabs")
		return backend, prefabs, nil
	}
	return backend, mergePrefabs(prefabs, stored), nil
}

// mergePrefabs appends the stored prefabs missing from loaded. Loaded
// definitions win on a name clash.
func mergePrefabs(loaded, stored []prefab.Definition) []prefab.Definition {
	known := make(map[string]bool, len(loaded))
	for _, d := range loaded {
		known[d.Name] = true
	}
	out := loaded
	for _, d := range stored {
		if !known[d.Name] {
			known[d.Name] = true
			out = append(out, d)
		}
	}
	return out
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}

func sessionDuration(s session.Session, now time.Time) time.Duration {
	return now.Sub(s.StartedAt).Truncate(time.Second)
}
