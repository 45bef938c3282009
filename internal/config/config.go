package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	StaticPath   string        `mapstructure:"static_path"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	Secret       string        `mapstructure:"secret"`
	ClientOrigin string        `mapstructure:"client_origin"`

	// RoomTTL > 0 enables eviction of empty rooms that long past their
	// target instant. 0 keeps rooms forever, like the reference.
	RoomTTL time.Duration `mapstructure:"room_ttl"`

	// ChatLimit/ChatInterval gate chat and interaction events per
	// session. ChatLimit 0 disables the limiter entirely.
	ChatLimit    int           `mapstructure:"chat_limit"`
	ChatInterval time.Duration `mapstructure:"chat_interval"`

	// KickSlow disconnects members whose send buffer overflows during a
	// broadcast instead of silently dropping frames for them.
	KickSlow bool `mapstructure:"kick_slow"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 3001)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("client_origin", "*")
	v.SetDefault("room_ttl", "0s")
	v.SetDefault("chat_limit", 0)
	v.SetDefault("chat_interval", "10s")
	v.SetDefault("kick_slow", false)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Origin: %s\n", cfg.Mode, cfg.Port, cfg.ClientOrigin)
	return &cfg, nil
}
