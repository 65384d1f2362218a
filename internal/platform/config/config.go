package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Front ends. The TLS listener only starts when both certificate files are set.
	Port        int    `env:"PORT" default:"8600"`
	TLSPort     int    `env:"TLS_PORT" default:"8601"`
	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`
	StaticDir   string `env:"STATIC_DIR" default:"/dev/shm"`

	MaxConnections       int     `env:"MAX_CONNECTIONS" default:"1000"`
	ConnectRatePerSecond float64 `env:"CONNECT_RATE_PER_SECOND" default:"10"`
	ConnectBurst         int     `env:"CONNECT_BURST" default:"20"`

	// Relay
	PingInterval   time.Duration `env:"PING_INTERVAL" default:"3s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" default:"5s"`
	SendBufferSize int           `env:"SEND_BUFFER_SIZE" default:"64"`

	// Discovery beacon
	DiscoveryEnabled  bool          `env:"DISCOVERY_ENABLED" default:"true"`
	DiscoveryPort     int           `env:"DISCOVERY_PORT" default:"8080"`
	DiscoveryInterval time.Duration `env:"DISCOVERY_INTERVAL" default:"2s"`
	DiscoveryPayload  string        `env:"DISCOVERY_PAYLOAD" default:"Stellarium Shared Memory Service"`
	DiscoveryAddress  string        `env:"DISCOVERY_ADDRESS"`
}

// TLSEnabled reports whether the encrypted front end should be started.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	ports := []struct {
		name  string
		value int
	}{
		{"PORT", cfg.Port},
		{"TLS_PORT", cfg.TLSPort},
		{"DISCOVERY_PORT", cfg.DiscoveryPort},
	}
	for _, p := range ports {
		if p.value < 1 || p.value > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", p.name, p.value)
		}
	}

	if cfg.TLSEnabled() && cfg.Port == cfg.TLSPort {
		return errors.New("PORT and TLS_PORT must differ when TLS is enabled")
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	durations := map[string]time.Duration{
		"PING_INTERVAL":      cfg.PingInterval,
		"WRITE_TIMEOUT":      cfg.WriteTimeout,
		"DISCOVERY_INTERVAL": cfg.DiscoveryInterval,
	}
	for name, value := range durations {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, value)
		}
	}

	if cfg.SendBufferSize < 1 {
		return fmt.Errorf("SEND_BUFFER_SIZE must be at least 1, got %d", cfg.SendBufferSize)
	}
	if cfg.MaxConnections < 0 {
		return fmt.Errorf("MAX_CONNECTIONS must not be negative, got %d", cfg.MaxConnections)
	}
	if cfg.ConnectRatePerSecond <= 0 || cfg.ConnectBurst < 1 {
		return errors.New("CONNECT_RATE_PER_SECOND must be positive and CONNECT_BURST at least 1")
	}

	if cfg.DiscoveryAddress != "" {
		ip := net.ParseIP(cfg.DiscoveryAddress)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("DISCOVERY_ADDRESS must be an IPv4 address, got %q", cfg.DiscoveryAddress)
		}
	}
	if cfg.DiscoveryEnabled && cfg.DiscoveryPayload == "" {
		return errors.New("DISCOVERY_PAYLOAD must not be empty when discovery is enabled")
	}

	return nil
}
