// Package config loads server configuration from config.json with
// environment-variable overrides.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
}

// ServerConfig configures the listening socket and the static content
// server.
type ServerConfig struct {
	Host      string      `mapstructure:"host"`
	Port      int         `mapstructure:"port"`
	StaticDir string      `mapstructure:"staticDir"`
	HTTPS     HTTPSConfig `mapstructure:"https"`
}

// HTTPSConfig enables TLS serving from certificate files.
type HTTPSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads config.json from path (or the working directory when path
// is empty) on top of the defaults. A missing or unreadable config file
// is not fatal: the defaults stand, matching the behavior of running
// without one.
func Load(path string) (*Config, bool, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.staticDir", ".")
	v.SetDefault("server.https.enabled", false)
	v.SetDefault("server.https.certFile", "")
	v.SetDefault("server.https.keyFile", "")

	v.SetEnvPrefix("SIGNALING")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
	}

	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		fromFile = false
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, false, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return &cfg, fromFile, nil
}
