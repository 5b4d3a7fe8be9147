// Package config loads the settingsctl configuration.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/goliatone/go-settings/pkg/keybind"
)

// EnvPrefix prefixes every environment override, e.g. SETTINGS_STORAGE_DRIVER.
const EnvPrefix = "SETTINGS"

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config aggregates the process configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Overlay  OverlayConfig  `mapstructure:"overlay"`
	Server   ServerConfig   `mapstructure:"server"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Log      LogConfig      `mapstructure:"log"`
	Activity ActivityConfig `mapstructure:"activity"`
	// Modules is an optional YAML file of module descriptors.
	Modules string `mapstructure:"modules"`
	Locale  string `mapstructure:"locale"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	// Watch reloads a file store when another process edits it.
	Watch bool `mapstructure:"watch"`
}

type OverlayConfig struct {
	Binding string `mapstructure:"binding"`
	Page    string `mapstructure:"page"`
	Layer   string `mapstructure:"layer"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type RulesConfig struct {
	Engine   string        `mapstructure:"engine"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type ActivityConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Driver: DriverMemory},
		Overlay: OverlayConfig{Binding: keybind.DefaultBinding, Page: "Settings", Layer: "overlay"},
		Server:  ServerConfig{Addr: "127.0.0.1:7788"},
		Rules:   RulesConfig{Engine: "expr", CacheTTL: 10 * time.Minute},
		Log:     LogConfig{Level: "info"},
		Activity: ActivityConfig{
			Channel: "settings",
		},
		Locale: "en",
	}
}

// Load reads configuration from path, or from settings.yaml in the working
// directory when path is empty, then applies SETTINGS_* environment
// variables. Dots in keys become underscores: storage.path is read from
// SETTINGS_STORAGE_PATH. A missing settings.yaml is not an error; a missing
// explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("settings")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot check by type.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverFile, DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("config: storage.path is required for the %s driver", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.Rules.Engine {
	case "", "expr", "cel", "js":
	default:
		return fmt.Errorf("config: unknown rules.engine %q", c.Rules.Engine)
	}
	if _, err := keybind.ParseBinding(c.Overlay.Binding); err != nil {
		return fmt.Errorf("config: overlay.binding: %w", err)
	}
	return nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string(nil), parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
