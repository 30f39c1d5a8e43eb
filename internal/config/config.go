// Package config wraps viper with the newslens defaults and environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. NEWSLENS_SERVER_PORT.
const EnvPrefix = "NEWSLENS"

// Config is a read-only view over a viper instance.
type Config struct {
	v *viper.Viper
}

// New wraps v. A nil v yields an empty Config.
func New(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	return &Config{v: v}
}

func (c *Config) GetString(key string) string          { return c.v.GetString(key) }
func (c *Config) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *Config) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *Config) GetFloat64(key string) float64        { return c.v.GetFloat64(key) }
func (c *Config) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *Config) IsSet(key string) bool                { return c.v.IsSet(key) }

// Sub returns the subtree at key. A missing subtree yields an empty
// Config, never nil.
func (c *Config) Sub(key string) *Config {
	return New(c.v.Sub(key))
}

// Unmarshal decodes the whole configuration into target.
func (c *Config) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func (c *Config) ConfigFileUsed() string {
	return c.v.ConfigFileUsed()
}

// SetDefaults registers the default value of every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("api.base_url", "http://localhost:8080/api")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "newslens.db")

	v.SetDefault("auth.token_mode", "static")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_ttl", "24h")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("history.year_first", false)
	v.SetDefault("history.with_time", true)

	v.SetDefault("newsapi.base_url", "https://newsapi.org")
	v.SetDefault("newsapi.api_key", "")
	v.SetDefault("newsapi.from", "")
	v.SetDefault("newsapi.rate_per_second", 1.0)

	v.SetDefault("clustering.base_url", "http://localhost:8000")

	v.SetDefault("search.cache_size", 128)
	v.SetDefault("search.cache_ttl", "10m")

	v.SetDefault("listview.debounce", "500ms")
}

// Load reads the config file at path, or newslens.yaml from the working
// directory and /etc/newslens when path is empty. A missing default file
// is not an error. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("newslens")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/newslens")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return New(v), nil
}
