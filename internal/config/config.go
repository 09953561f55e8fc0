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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Classify  ClassifyConfig  `yaml:"classify" mapstructure:"classify"`
	Chat      ChatConfig      `yaml:"chat" mapstructure:"chat"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// Configured reports whether a database was configured at all. With no
// store the service runs in dev mode: unlimited credits, no history.
func (s StoreConfig) Configured() bool {
	return s.DatabaseURL != ""
}

// AnthropicConfig holds reasoning-service settings.
type AnthropicConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	IdentifyModel string  `yaml:"identify_model" mapstructure:"identify_model"`
	ClassifyModel string  `yaml:"classify_model" mapstructure:"classify_model"`
	ChatModel     string  `yaml:"chat_model" mapstructure:"chat_model"`
	MaxTokens     int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	WebSearchUses int64   `yaml:"web_search_uses" mapstructure:"web_search_uses"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// AuthConfig configures identity verification for the HTTP API.
type AuthConfig struct {
	// JWTSecret verifies bearer tokens minted by the identity provider.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	// TestMode bypasses authentication and fails the credit check open.
	// Never enable in production.
	TestMode bool `yaml:"test_mode" mapstructure:"test_mode"`
}

// ClassifyConfig tunes the classification pipeline.
type ClassifyConfig struct {
	TimeoutSecs         int   `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	IdentifyTimeoutSecs int   `yaml:"identify_timeout_secs" mapstructure:"identify_timeout_secs"`
	IdentifyMaxTokens   int64 `yaml:"identify_max_tokens" mapstructure:"identify_max_tokens"`
}

// ChatConfig tunes the follow-up assistant.
type ChatConfig struct {
	HistoryTurns int   `yaml:"history_turns" mapstructure:"history_turns"`
	MaxTokens    int64 `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("CUSTOMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("anthropic.identify_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.classify_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.chat_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.web_search_uses", 3)
	v.SetDefault("anthropic.rate_per_second", 5)
	v.SetDefault("anthropic.rate_burst", 10)
	v.SetDefault("classify.timeout_secs", 60)
	v.SetDefault("classify.identify_timeout_secs", 20)
	v.SetDefault("classify.identify_max_tokens", 512)
	v.SetDefault("chat.history_turns", 10)
	v.SetDefault("chat.max_tokens", 1024)

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

// Validate checks settings needed to serve classification traffic.
func (c *Config) Validate() error {
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required (CUSTOMS_ANTHROPIC_KEY)")
	}
	if c.Store.Configured() && c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if !c.Auth.TestMode && c.Auth.JWTSecret == "" {
		return eris.New("config: auth.jwt_secret is required outside test mode")
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
