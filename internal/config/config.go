// Package config loads service configuration. Values come from the
// environment first (CERT_ prefixed keys), optionally overlaid on a YAML file
// pointed at by CERT_CONFIG_FILE, with sane defaults for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	Database DatabaseConfig
	NATS     NATSConfig
	Members  MembersConfig
	Renderer RendererConfig
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int32
	MinConns    int32
	MaxConnTime time.Duration
	MaxIdleTime time.Duration
	HealthCheck time.Duration
}

// NATSConfig holds notification bus settings. An empty URL disables publishing.
type NATSConfig struct {
	URL string
}

// MembersConfig points at the member directory service.
type MembersConfig struct {
	BaseURL string
}

// RendererConfig points at the certificate rendering service.
type RendererConfig struct {
	BaseURL string
}

// Load reads configuration from the environment and the optional config file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if file := v.GetString("config.file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Service: ServiceConfig{
			Name:        v.GetString("service.name"),
			Version:     v.GetString("service.version"),
			Environment: v.GetString("service.environment"),
		},
		Server: ServerConfig{
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read.timeout"),
			WriteTimeout:    v.GetDuration("server.write.timeout"),
			IdleTimeout:     v.GetDuration("server.idle.timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown.timeout"),
		},
		Database: DatabaseConfig{
			Host:        v.GetString("db.host"),
			Port:        v.GetInt("db.port"),
			User:        v.GetString("db.user"),
			Password:    v.GetString("db.password"),
			Database:    v.GetString("db.name"),
			SSLMode:     v.GetString("db.sslmode"),
			MaxConns:    int32(v.GetInt("db.max.conns")),
			MinConns:    int32(v.GetInt("db.min.conns")),
			MaxConnTime: v.GetDuration("db.max.conn.lifetime"),
			MaxIdleTime: v.GetDuration("db.max.idle.time"),
			HealthCheck: v.GetDuration("db.health.check"),
		},
		NATS: NATSConfig{
			URL: v.GetString("nats.url"),
		},
		Members: MembersConfig{
			BaseURL: v.GetString("members.url"),
		},
		Renderer: RendererConfig{
			BaseURL: v.GetString("renderer.url"),
		},
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Database.Host == "" {
		return nil, fmt.Errorf("database host is required")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "be-certificates")
	v.SetDefault("service.version", "dev")
	v.SetDefault("service.environment", "development")

	v.SetDefault("server.port", 8086)
	v.SetDefault("server.read.timeout", 15*time.Second)
	v.SetDefault("server.write.timeout", 15*time.Second)
	v.SetDefault("server.idle.timeout", 60*time.Second)
	v.SetDefault("server.shutdown.timeout", 10*time.Second)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "certificates")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max.conns", 10)
	v.SetDefault("db.min.conns", 1)
	v.SetDefault("db.max.conn.lifetime", 30*time.Minute)
	v.SetDefault("db.max.idle.time", 5*time.Minute)
	v.SetDefault("db.health.check", 30*time.Second)

	v.SetDefault("members.url", "http://localhost:8081")
	v.SetDefault("renderer.url", "http://localhost:8090")
}
