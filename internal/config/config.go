package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ImportConfig tunes the validation pipeline.
type ImportConfig struct {
	IdentifierWidth int     `yaml:"identifier_width" mapstructure:"identifier_width"`
	CityThreshold   float64 `yaml:"city_threshold" mapstructure:"city_threshold"`
	MaxSuggestions  int     `yaml:"max_suggestions" mapstructure:"max_suggestions"`
	SortSuggestions bool    `yaml:"sort_suggestions" mapstructure:"sort_suggestions"`
	MaxRows         int     `yaml:"max_rows" mapstructure:"max_rows"`
	// CitySeed is an optional YAML gazetteer loaded when the store has no cities.
	CitySeed string `yaml:"city_seed" mapstructure:"city_seed"`
}

// FetchConfig configures remote import sources.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxBytes    int64   `yaml:"max_bytes" mapstructure:"max_bytes"`
}

// ServerConfig configures the review API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	SessionTTLMins int      `yaml:"session_ttl_mins" mapstructure:"session_ttl_mins"`
	MaxSessions    int      `yaml:"max_sessions" mapstructure:"max_sessions"`
	UploadsPerMin  int      `yaml:"uploads_per_min" mapstructure:"uploads_per_min"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (when present) and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// working directory; a named file must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("CRMIMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "crm-import.db")
	v.SetDefault("import.identifier_width", 4)
	v.SetDefault("import.city_threshold", 0.6)
	v.SetDefault("import.max_suggestions", 5)
	v.SetDefault("import.sort_suggestions", true)
	v.SetDefault("import.max_rows", 5000)
	v.SetDefault("import.city_seed", "")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "crm-import/1.0")
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("fetch.max_bytes", 20<<20)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.session_ttl_mins", 60)
	v.SetDefault("server.max_sessions", 50)
	v.SetDefault("server.uploads_per_min", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of
// "validate", "serve", "cities", "imports" or "migrate".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "validate", "serve", "cities", "imports", "migrate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if mode == "validate" || mode == "serve" {
		if c.Import.CityThreshold <= 0 || c.Import.CityThreshold >= 1 {
			problems = append(problems, "import.city_threshold must be between 0 and 1 (exclusive)")
		}
		if c.Import.IdentifierWidth < 1 {
			problems = append(problems, "import.identifier_width must be > 0")
		}
		if c.Import.MaxSuggestions < 1 {
			problems = append(problems, "import.max_suggestions must be > 0")
		}
		if c.Import.MaxRows < 0 {
			problems = append(problems, "import.max_rows must be >= 0")
		}
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.MaxSessions < 1 {
			problems = append(problems, "server.max_sessions must be > 0")
		}
		if c.Server.SessionTTLMins < 1 {
			problems = append(problems, "server.session_ttl_mins must be > 0")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
