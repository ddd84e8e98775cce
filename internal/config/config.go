package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Signal    Signal    `mapstructure:"signal"`
	RateLimit RateLimit `mapstructure:"rate_limit"`
	Store     Store     `mapstructure:"store"`
	Poll      Poll      `mapstructure:"poll"`
}

type Signal struct {
	PersistTimeout     time.Duration `mapstructure:"persist_timeout"`
	RequireAuth        bool          `mapstructure:"require_auth"`
	LegacyGlobalFanout bool          `mapstructure:"legacy_global_fanout"`
	EmptyRoomPolicy    string        `mapstructure:"empty_room_policy"`
	EmptyRoomTTL       time.Duration `mapstructure:"empty_room_ttl"`
	ReapInterval       time.Duration `mapstructure:"reap_interval"`
}

// RateLimit caps inbound events per connection within a sliding window.
type RateLimit struct {
	Events   int           `mapstructure:"events"`
	Interval time.Duration `mapstructure:"interval"`
}

type Store struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type Poll struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	Wait        time.Duration `mapstructure:"wait"`
}

var (
	ErrUnknownStoreDriver = errors.New("unknown store driver")
	ErrMissingSecret      = errors.New("secret is required in release mode")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("signal.persist_timeout", "5s")
	v.SetDefault("signal.require_auth", false)
	v.SetDefault("signal.legacy_global_fanout", true)
	v.SetDefault("signal.empty_room_policy", "dissolve")
	v.SetDefault("signal.empty_room_ttl", "5m")
	v.SetDefault("signal.reap_interval", "1m")

	v.SetDefault("rate_limit.events", 50)
	v.SetDefault("rate_limit.interval", "1s")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "./data/parley")

	v.SetDefault("poll.idle_timeout", "60s")
	v.SetDefault("poll.wait", "25s")
}

// Load reads config/config.<CONFIG_ENV>.yaml, then PARLEY_* env vars, then
// command-line flags from args, each overriding the previous.
func Load(args []string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	fs := pflag.NewFlagSet("parley", pflag.ContinueOnError)
	file := fs.String("config", "", "path to a YAML config file")
	fs.Int("port", 8080, "HTTP listen port")
	fs.String("mode", "release", "gin mode: debug or release")
	fs.String("log-level", "info", "zerolog level")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	fileName := *file
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{"port": "port", "mode": "mode", "log_level": "log-level"} {
		if f := fs.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("store", cfg.Store.Driver).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "badger":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, c.Store.Driver)
	}
	if c.Mode == "release" && c.Secret == "" {
		return ErrMissingSecret
	}
	return nil
}
