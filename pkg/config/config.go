// Package config loads portal configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config captures everything the portal needs at startup.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Tool    ToolConfig    `mapstructure:"tool"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig controls the listening socket.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ToolConfig describes the external CLI the portal proxies to.
type ToolConfig struct {
	// Command may carry leading arguments, e.g. "npx openclaw".
	Command        string `mapstructure:"command"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig selects logrus level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func (c Config) String() string {
	return fmt.Sprintf(`{
Host: %s
Port: %d
ToolCommand: %s
ToolTimeoutSeconds: %d
LogLevel: %s
LogFormat: %s
MetricsEnabled: %t
}`,
		c.Server.Host,
		c.Server.Port,
		c.Tool.Command,
		c.Tool.TimeoutSeconds,
		c.Logging.Level,
		c.Logging.Format,
		c.Metrics.Enabled,
	)
}

// Load builds a Config from defaults, an optional config file and
// PORTAL_-prefixed environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8082)
	v.SetDefault("tool.command", "openclaw")
	v.SetDefault("tool.timeout_seconds", 30)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.enabled", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Tool.Command) == "" {
		return fmt.Errorf("tool.command must not be empty")
	}
	if c.Tool.TimeoutSeconds <= 0 {
		return fmt.Errorf("tool.timeout_seconds must be > 0, got %d", c.Tool.TimeoutSeconds)
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// ListenAddr returns the host:port string for the HTTP listener.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Timeout converts the configured ceiling into a duration.
func (c ToolConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
