package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Player  PlayerConfig  `mapstructure:"player"`
	Game    GameConfig    `mapstructure:"game"`
	Network NetworkConfig `mapstructure:"network"`
	Render  RenderConfig  `mapstructure:"render"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Path    string `mapstructure:"path"`
}

type PlayerConfig struct {
	Name string `mapstructure:"name"`
}

type GameConfig struct {
	TurnSeconds  int           `mapstructure:"turn_seconds"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

type NetworkConfig struct {
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

type RenderConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	CellSize int           `mapstructure:"cell_size"`
}

type MonitorConfig struct {
	// Address serves /metrics when set.
	Address string `mapstructure:"address"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "localhost:8080")
	v.SetDefault("server.path", "/ws")
	v.SetDefault("player.name", "player")
	v.SetDefault("game.turn_seconds", 15)
	v.SetDefault("game.tick_interval", time.Second)
	v.SetDefault("network.handshake_timeout", 5*time.Second)
	v.SetDefault("network.read_timeout", 30*time.Second)
	v.SetDefault("network.write_timeout", 5*time.Second)
	v.SetDefault("network.heartbeat_interval", 10*time.Second)
	v.SetDefault("render.interval", 100*time.Millisecond)
	v.SetDefault("render.cell_size", 40)
	v.SetDefault("monitor.address", "")
	v.SetDefault("log.level", "info")
}

// BindFlags registers the command-line flags that override config keys.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (default ./config.yaml if present)")
	fs.String("server", "", "server address, host:port or a ws:// URL")
	fs.String("name", "", "player display name")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("metrics", "", "address to serve /metrics on")
}

var flagKeys = map[string]string{
	"server":    "server.address",
	"name":      "player.name",
	"log-level": "log.level",
	"metrics":   "monitor.address",
}

// LoadConfig reads defaults, then an optional config file, then LUDO_*
// environment variables, then any flags that were set. fs may be nil.
func LoadConfig(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if fs != nil && path == "" {
		if f := fs.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LUDO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
