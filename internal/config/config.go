package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	ArcGIS    ArcGISConfig    `yaml:"arcgis" mapstructure:"arcgis"`
	Classify  ClassifyConfig  `yaml:"classify" mapstructure:"classify"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ArcGISConfig locates the feature layer and names its fields.
type ArcGISConfig struct {
	PortalURL     string  `yaml:"portal_url" mapstructure:"portal_url"`
	LayerURL      string  `yaml:"layer_url" mapstructure:"layer_url"`
	Username      string  `yaml:"username" mapstructure:"username"`
	Password      string  `yaml:"password" mapstructure:"password"`
	Token         string  `yaml:"token" mapstructure:"token"`
	ObjectIDField string  `yaml:"object_id_field" mapstructure:"object_id_field"`
	NoteField     string  `yaml:"note_field" mapstructure:"note_field"`
	FlagField     string  `yaml:"flag_field" mapstructure:"flag_field"`
	PageSize      int     `yaml:"page_size" mapstructure:"page_size"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	EnsureField   bool    `yaml:"ensure_field" mapstructure:"ensure_field"`
}

// ClassifyConfig selects the classification strategy.
type ClassifyConfig struct {
	Strategy    string   `yaml:"strategy" mapstructure:"strategy"`
	Terms       []string `yaml:"terms" mapstructure:"terms"`
	TermsFile   string   `yaml:"terms_file" mapstructure:"terms_file"`
	Model       string   `yaml:"model" mapstructure:"model"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int      `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// StoreConfig configures the run-history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// WatchConfig configures the polling loop.
type WatchConfig struct {
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("arcgis.portal_url", "https://www.arcgis.com")
	v.SetDefault("arcgis.object_id_field", "objectid")
	v.SetDefault("arcgis.note_field", "notes")
	v.SetDefault("arcgis.flag_field", "ai_flag")
	v.SetDefault("arcgis.page_size", 200)
	v.SetDefault("arcgis.rate_limit", 10)
	v.SetDefault("arcgis.ensure_field", true)
	v.SetDefault("classify.strategy", "keyword")
	v.SetDefault("classify.model", "claude-haiku-4-5-20251001")
	v.SetDefault("classify.timeout_secs", 30)
	v.SetDefault("classify.max_attempts", 2)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "triage.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("watch.interval_secs", 300)
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

// Validate checks that the configuration covers the named command scope.
func (c *Config) Validate(scope string) error {
	switch scope {
	case "pipeline", "export", "status":
		if c.ArcGIS.LayerURL == "" {
			return eris.New("config: arcgis.layer_url is required")
		}
		if c.ArcGIS.Token == "" && (c.ArcGIS.Username == "" || c.ArcGIS.Password == "") {
			return eris.New("config: arcgis credentials required (token or username/password)")
		}
	}

	if scope == "pipeline" {
		switch c.Classify.Strategy {
		case "keyword":
		case "model", "staged":
			if c.Anthropic.Key == "" {
				return eris.Errorf("config: anthropic.key is required for the %s strategy", c.Classify.Strategy)
			}
		default:
			return eris.Errorf("config: unknown classify.strategy %q", c.Classify.Strategy)
		}
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
