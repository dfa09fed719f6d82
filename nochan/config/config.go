package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig stores WebSocket server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"` // bind address; "0.0.0.0" listens on all interfaces
	Port int    `mapstructure:"port"` // port NapCatQQ connects to
}

// AgentConfig stores OpenCode CLI backend configuration.
type AgentConfig struct {
	Command       string `mapstructure:"command"`        // path or name of the opencode executable
	WorkDir       string `mapstructure:"work_dir"`       // working directory for agent subprocesses
	MaxConcurrent int    `mapstructure:"max_concurrent"` // max simultaneous agent processes
}

// DatabaseConfig stores database connection details.
type DatabaseConfig struct {
	Path string `mapstructure:"path"` // file path for the libsql database
}

// LoggingConfig stores logging configurations.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`        // console log level; file output always captures debug
	Dir        string `mapstructure:"dir"`          // directory for log files
	MaxTotalMB int    `mapstructure:"max_total_mb"` // total log size cap; oldest files removed past this
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.nochan")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	viper.SetDefault("agent.command", "opencode")
	viper.SetDefault("agent.work_dir", "~/.nochan/workspace")
	viper.SetDefault("agent.max_concurrent", 1)

	viper.SetDefault("database.path", "data/nochan.db")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.dir", "data/logs")
	viper.SetDefault("logging.max_total_mb", 100)

	viper.SetEnvPrefix("NOCHAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults cover every field.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// OnReload registers a callback fired whenever the config file changes on
// disk. Used to hot-reload the console log level without a restart.
func OnReload(fn func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return
		}
		if err := Validate(&cfg); err != nil {
			return
		}
		fn(&cfg)
	})
	viper.WatchConfig()
}
