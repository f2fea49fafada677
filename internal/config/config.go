package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "MEDASSIST"

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type RateLimit struct {
	Events   int           `mapstructure:"events"`
	Interval time.Duration `mapstructure:"interval"`
}

type Database struct {
	// Driver is "memory", "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type OpenAI struct {
	APIKey       string        `mapstructure:"api_key"`
	ChatModel    string        `mapstructure:"chat_model"`
	SummaryModel string        `mapstructure:"summary_model"`
	Workers      int           `mapstructure:"workers"`
	Queue        int           `mapstructure:"queue"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	StaticPath     string        `mapstructure:"static_path"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	Secret         string        `mapstructure:"secret"`
	LogLevel       string        `mapstructure:"log_level"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
	ICEServers     []ICEServer   `mapstructure:"ice_servers"`
	RateLimit      RateLimit     `mapstructure:"rate_limit"`
	Database       Database      `mapstructure:"database"`
	OpenAI         OpenAI        `mapstructure:"openai"`

	v    *viper.Viper
	file string
}

// Load reads an optional .env, then config/config.<CONFIG_ENV>.yaml (dev by default).
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads path over the defaults. A missing file is not an error. MEDASSIST_* variables
// override both, with "." in keys written as "_".
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	file := path
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		log.Warn().Str("module", "config").Str("file", path).Msg("config file not found, using defaults")
		file = ""
	} else {
		log.Info().Str("module", "config").Str("file", path).Msg("loaded config")
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.file = file
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Str("db", cfg.Database.Driver).Msg("config ready")
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("persist_timeout", "5s")
	v.SetDefault("ice_servers", []map[string]any{})
	v.SetDefault("rate_limit.events", 5)
	v.SetDefault("rate_limit.interval", "10s")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.dsn", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.summary_model", "")
	v.SetDefault("openai.workers", 2)
	v.SetDefault("openai.queue", 16)
	v.SetDefault("openai.timeout", "30s")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.v = v
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("mode %q: want debug, release or test", c.Mode))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Secret == "" {
		errs = append(errs, errors.New("secret is required"))
	}
	if c.ReadLimit <= 0 || c.PingPeriod <= 0 || c.SendBuffer <= 0 {
		errs = append(errs, errors.New("read_limit, ping_period and send_buffer must be positive"))
	}
	if c.RateLimit.Events <= 0 || c.RateLimit.Interval <= 0 {
		errs = append(errs, errors.New("rate_limit events and interval must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	switch c.Database.Driver {
	case "", "memory":
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for %s", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want memory, sqlite or postgres", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// Level is the parsed log level, info when unset.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// OnChange re-reads the config file whenever it changes and passes the result to fn. Invalid
// edits are logged and skipped. Without a config file there is nothing to watch.
func (c *Config) OnChange(fn func(*Config)) {
	if c.v == nil || c.file == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode(c.v)
		if err == nil {
			err = next.Validate()
		}
		if err != nil {
			log.Error().Err(err).Str("module", "config").Str("file", e.Name).Msg("ignoring config change")
			return
		}
		next.file = c.file
		log.Info().Str("module", "config").Str("file", e.Name).Msg("config changed")
		fn(next)
	})
	c.v.WatchConfig()
}
