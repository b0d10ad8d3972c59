package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. Only Feed.APIKey and
// Valkey.Addr are load-bearing: everything else has a usable default, and
// Database/NATS are entirely optional archival/audit extras.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout"`
	LogLevel     string   `mapstructure:"log_level"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

// FeedConfig points at the two upstream GTFS-realtime feeds. An empty APIKey
// isn't fatal at startup: cmd/realtime logs one warning, and the poller does
// not check the key, so it keeps fetching every tick with requests sent
// without the key header.
type FeedConfig struct {
	APIKey              string        `mapstructure:"api_key"`
	VehiclePositionsURL string        `mapstructure:"vehicle_positions_url"`
	TripUpdatesURL      string        `mapstructure:"trip_updates_url"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
}

// CatalogConfig points at the GTFS-static zip loaded once at startup.
type CatalogConfig struct {
	URL string `mapstructure:"url"`
}

// StatsConfig controls the append-only stats snapshotter.
type StatsConfig struct {
	FilePath string        `mapstructure:"file_path"`
	Interval time.Duration `mapstructure:"interval"`
}

// DatabaseConfig is optional: a zero-value Host means no archival adapter
// is constructed and HistoryArchiver stays nil everywhere it's used.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) Enabled() bool { return d.Host != "" }

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// NATSConfig is optional: a zero-value URL means no AuditPublisher is
// constructed and intervention lifecycle events are only logged.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

func (n NATSConfig) Enabled() bool { return n.URL != "" }

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("feed.api_key", "")
	v.SetDefault("feed.vehicle_positions_url", "https://api.nationaltransport.ie/gtfsr/v2/Vehicles")
	v.SetDefault("feed.trip_updates_url", "https://api.nationaltransport.ie/gtfsr/v2/TripUpdates")
	v.SetDefault("feed.poll_interval", 12*time.Second)

	v.SetDefault("catalog.url", "https://www.transportforireland.ie/transitData/Data/GTFS_Dublin_Bus.zip")

	v.SetDefault("stats.file_path", "data/stats.jsonl")
	v.SetDefault("stats.interval", 5*time.Minute)

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "transit")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "nervecentre")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("nats.url", "")

	v.SetDefault("valkey.addr", "localhost:6379")

	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: NERVECENTRE_FEED_API_KEY → feed.api_key
	v.SetEnvPrefix("NERVECENTRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the fields that must be structurally sane regardless of
// whether optional subsystems are enabled. It does not require Feed.APIKey:
// that absence is a runtime warning, not a startup failure.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Feed.PollInterval <= 0 {
		errs = append(errs, "feed.poll_interval must be positive")
	}
	if c.Database.Enabled() {
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required when database.host is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
