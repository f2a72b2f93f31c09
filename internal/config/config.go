// Package config loads visitor-store settings from a config file, the
// environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. VISITOR_STORE_DB_PATH.
const EnvPrefix = "VISITOR_STORE"

// Backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the resolved configuration.
type Config struct {
	Backend      string        `mapstructure:"backend" validate:"required,oneof=sqlite memory redis"`
	DBPath       string        `mapstructure:"db_path"`
	KeyPrefix    string        `mapstructure:"key_prefix" validate:"required,max=64"`
	JourneyCap   int           `mapstructure:"journey_cap" validate:"min=1,max=1000"`
	ScrollWindow time.Duration `mapstructure:"scroll_window" validate:"gt=0"`
	LogLevel     string        `mapstructure:"log_level" validate:"oneof=debug info warn warning error fatal"`
	Redis        Redis         `mapstructure:"redis"`
	Banner       Banner        `mapstructure:"banner"`
}

// Redis configures the Redis backend.
type Redis struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0,max=15"`
	// SessionTTL expires the session tier when a visitor goes quiet.
	SessionTTL time.Duration `mapstructure:"session_ttl" validate:"gte=0"`
}

// Banner overrides the banner disclosure timings.
type Banner struct {
	ReturningDelay time.Duration `mapstructure:"returning_delay" validate:"gt=0"`
	InitialDelay   time.Duration `mapstructure:"initial_delay" validate:"gt=0"`
	Fallback       time.Duration `mapstructure:"fallback" validate:"gt=0"`
}

// DefaultDBPath returns ~/.visitor-store/profile.db.
func DefaultDBPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(".visitor-store", "profile.db")
	}
	return filepath.Join(home, ".visitor-store", "profile.db")
}

// SetDefaults registers every key with its default so environment
// overrides are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("db_path", DefaultDBPath())
	v.SetDefault("key_prefix", "site")
	v.SetDefault("journey_cap", 20)
	v.SetDefault("scroll_window", 30*time.Minute)
	v.SetDefault("log_level", "warn")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.session_ttl", 30*time.Minute)
	v.SetDefault("banner.returning_delay", 800*time.Millisecond)
	v.SetDefault("banner.initial_delay", 1500*time.Millisecond)
	v.SetDefault("banner.fallback", 3*time.Second)
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (or $HOME/.visitor-store.yaml when file is empty) into v
// and returns the validated result. A missing home config file is not an
// error; a missing explicit file is.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := homedir.Dir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(".visitor-store")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration with no file or environment applied.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

var (
	validate *validator.Validate
	once     sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return fld.Tag.Get("mapstructure")
		})
	})
	return validate
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks field constraints and the per-backend requirements.
func (c Config) Validate() error {
	var msgs []string
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		for _, e := range verrs {
			msgs = append(msgs, fieldName(e)+": "+message(e))
		}
	}
	switch c.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			msgs = append(msgs, "db_path: is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			msgs = append(msgs, "redis.addr: is required for the redis backend")
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}

// fieldName turns Config.redis.addr into redis.addr.
func fieldName(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + e.Param()
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "hostname_port":
		return "must be host:port"
	default:
		return "is invalid"
	}
}
