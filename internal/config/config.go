// Package config loads npc_engine.cfg.json through viper and exposes typed views of it.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "npc_engine.cfg.json"

// EngineConfig drives the behavior scheduler and the data it loads at startup.
type EngineConfig struct {
	TickInterval      time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	HeartbeatTimeout  time.Duration `json:"heartbeatTimeout" mapstructure:"heartbeatTimeout"`
	Workers           int           `json:"workers" mapstructure:"workers"`
	ElementCacheTTL   time.Duration `json:"elementCacheTtl" mapstructure:"elementCacheTtl"`
	ConstructCacheTTL time.Duration `json:"constructCacheTtl" mapstructure:"constructCacheTtl"`
	BankPath          string        `json:"bankPath" mapstructure:"bankPath"`
	PrefabsPath       string        `json:"prefabsPath" mapstructure:"prefabsPath"`
	ScenarioPath      string        `json:"scenarioPath" mapstructure:"scenarioPath"`
	Timings           TimingsConfig `json:"timings" mapstructure:"timings"`
}

// TimingsConfig tunes behavior grace periods and retries.
type TimingsConfig struct {
	AliveGrace         time.Duration `json:"aliveGrace" mapstructure:"aliveGrace"`
	NoWeaponsWarnAfter time.Duration `json:"noWeaponsWarnAfter" mapstructure:"noWeaponsWarnAfter"`
	AggressionGrace    time.Duration `json:"aggressionGrace" mapstructure:"aggressionGrace"`
	RetryAttempts      int           `json:"retryAttempts" mapstructure:"retryAttempts"`
	RetryDelay         time.Duration `json:"retryDelay" mapstructure:"retryDelay"`
	ReselectInterval   time.Duration `json:"reselectInterval" mapstructure:"reselectInterval"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the in-memory SQLite backend settings.
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// WebsocketConfig holds the streaming backend settings.
type WebsocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Type          string          `json:"type" mapstructure:"type"`
	FlushInterval time.Duration   `json:"flushInterval" mapstructure:"flushInterval"`
	Memory        MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	Websocket     WebsocketConfig `json:"websocket" mapstructure:"websocket"`
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
	// MetricInterval is how often metrics are written to the log file.
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
}

// InfluxConfig holds InfluxDB settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	// BackupPath receives gzipped line protocol while the server is unreachable.
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// APIConfig holds the mod API client settings.
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
	// UploadOnEnd uploads the exported session file when the session ends.
	UploadOnEnd bool `json:"uploadOnEnd" mapstructure:"uploadOnEnd"`
	// NotifyDestruction posts every destruction to the webhook endpoint.
	NotifyDestruction bool `json:"notifyDestruction" mapstructure:"notifyDestruction"`
}

// MonitorConfig holds the status monitor settings.
type MonitorConfig struct {
	Interval  time.Duration `json:"interval" mapstructure:"interval"`
	StatusDir string        `json:"statusDir" mapstructure:"statusDir"`
}

// URL returns the server address of the Influx instance.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./npclogs")
	viper.SetDefault("sessionName", "default")

	viper.SetDefault("engine.tickInterval", "250ms")
	viper.SetDefault("engine.heartbeatTimeout", "30s")
	viper.SetDefault("engine.workers", 0)
	viper.SetDefault("engine.elementCacheTtl", "2s")
	viper.SetDefault("engine.constructCacheTtl", "1m")
	viper.SetDefault("engine.bankPath", "./data/bank.yaml")
	viper.SetDefault("engine.prefabsPath", "./data/prefabs.yaml")
	viper.SetDefault("engine.scenarioPath", "")
	viper.SetDefault("engine.timings.aliveGrace", "3s")
	viper.SetDefault("engine.timings.noWeaponsWarnAfter", "5s")
	viper.SetDefault("engine.timings.aggressionGrace", "4s")
	viper.SetDefault("engine.timings.retryAttempts", 3)
	viper.SetDefault("engine.timings.retryDelay", "500ms")
	viper.SetDefault("engine.timings.reselectInterval", "1s")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.uploadOnEnd", false)
	viper.SetDefault("api.notifyDestruction", false)

	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusDir", "./npclogs")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "npc_engine")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.memory.outputDir", "./sessions")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "npc-metrics")
	viper.SetDefault("influx.backupPath", "./npclogs/influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "npc-engine")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metricInterval", "30s")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// flagKeys maps command line flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level":    "logLevel",
	"session-name": "sessionName",
	"scenario":     "engine.scenarioPath",
	"storage":      "storage.type",
}

// BindFlags lets the flags of fs that are set override the config file.
func BindFlags(fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// GetEngineConfig returns the scheduler and data settings.
func GetEngineConfig() EngineConfig {
	return EngineConfig{
		TickInterval:      viper.GetDuration("engine.tickInterval"),
		HeartbeatTimeout:  viper.GetDuration("engine.heartbeatTimeout"),
		Workers:           viper.GetInt("engine.workers"),
		ElementCacheTTL:   viper.GetDuration("engine.elementCacheTtl"),
		ConstructCacheTTL: viper.GetDuration("engine.constructCacheTtl"),
		BankPath:          viper.GetString("engine.bankPath"),
		PrefabsPath:       viper.GetString("engine.prefabsPath"),
		ScenarioPath:      viper.GetString("engine.scenarioPath"),
		Timings: TimingsConfig{
			AliveGrace:         viper.GetDuration("engine.timings.aliveGrace"),
			NoWeaponsWarnAfter: viper.GetDuration("engine.timings.noWeaponsWarnAfter"),
			AggressionGrace:    viper.GetDuration("engine.timings.aggressionGrace"),
			RetryAttempts:      viper.GetInt("engine.timings.retryAttempts"),
			RetryDelay:         viper.GetDuration("engine.timings.retryDelay"),
			ReselectInterval:   viper.GetDuration("engine.timings.reselectInterval"),
		},
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		Websocket: WebsocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetDBConfig returns the Postgres connection settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),

		MetricInterval: viper.GetDuration("otel.metricInterval"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),

		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetAPIConfig returns the mod API client settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL:         viper.GetString("api.serverUrl"),
		APIKey:            viper.GetString("api.apiKey"),
		UploadOnEnd:       viper.GetBool("api.uploadOnEnd"),
		NotifyDestruction: viper.GetBool("api.notifyDestruction"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:  viper.GetDuration("monitor.interval"),
		StatusDir: viper.GetString("monitor.statusDir"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
