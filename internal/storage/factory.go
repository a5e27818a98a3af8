package storage

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dynencounters/npc-engine/internal/config"
	"github.com/dynencounters/npc-engine/internal/database"
	gormstorage "github.com/dynencounters/npc-engine/internal/storage/gorm"
	"github.com/dynencounters/npc-engine/internal/storage/memory"
	sqlitestorage "github.com/dynencounters/npc-engine/internal/storage/sqlite"
	wsstorage "github.com/dynencounters/npc-engine/internal/storage/websocket"
)

// Backend type names accepted in storage.type.
const (
	TypeMemory    = "memory"
	TypePostgres  = "postgres"
	TypeSQLite    = "sqlite"
	TypeWebsocket = "websocket"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, dbCfg config.DBConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case TypeMemory, "":
		return memory.New(cfg.Memory), nil
	case TypePostgres:
		mgr := database.NewManager(log)
		return gormstorage.New(gormstorage.Dependencies{
			Manager:       mgr,
			Connect:       func() error { return mgr.Connect(dbCfg) },
			FlushInterval: cfg.FlushInterval,
			Logger:        log,
		}), nil
	case TypeSQLite:
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval:  cfg.SQLite.DumpInterval,
			DumpPath:      cfg.SQLite.DumpPath,
			FlushInterval: cfg.FlushInterval,
		}, log), nil
	case TypeWebsocket:
		return wsstorage.New(wsstorage.Config{
			URL:    cfg.Websocket.URL,
			Secret: cfg.Websocket.Secret,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
