// Package config loads server settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP surface and gatekeeping.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	WebRoot       string `yaml:"web_root"`
	TrackingImage string `yaml:"tracking_image"`
	CookieName    string `yaml:"cookie_name"`
	RequireID     bool   `yaml:"require_id"`
	SecretID      string `yaml:"secret_id"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	MetricsAddr   string `yaml:"metrics_addr"` // empty disables the metrics listener
}

// DBConfig holds the datastore connection.
type DBConfig struct {
	DSN string `yaml:"dsn"`
}

// AlertsConfig selects and sizes the alert executor.
type AlertsConfig struct {
	Queue     string        `yaml:"queue"` // "local" or "amqp"
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	From      string        `yaml:"from"`
	AMQPURL   string        `yaml:"amqp_url"`
	RedisAddr string        `yaml:"redis_addr"` // empty disables milestone dedup
	DedupTTL  time.Duration `yaml:"dedup_ttl"`
}

// SMTPConfig is the relay used for SMS gateway mail.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	NoVerify bool   `yaml:"no_verify"`
}

// AuthConfig configures the forked authenticator and RPC tokens.
type AuthConfig struct {
	UsersFile string        `yaml:"users_file"`
	JWTKey    string        `yaml:"jwt_key"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// Config is the complete server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Alerts AlertsConfig `yaml:"alerts"`
	SMTP   SMTPConfig   `yaml:"smtp"`
	Auth   AuthConfig   `yaml:"auth"`
}

// Queue kinds.
const (
	QueueLocal = "local"
	QueueAMQP  = "amqp"
)

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			WebRoot:       "www",
			TrackingImage: "email_logo_banner.gif",
			CookieName:    "KPID",
			RequireID:     true,
			MaxConcurrent: 1,
		},
		Alerts: AlertsConfig{
			Queue:     QueueLocal,
			Workers:   2,
			QueueSize: 256,
			From:      "donotreply@kingphisher.local",
			DedupTTL:  24 * time.Hour,
		},
		SMTP: SMTPConfig{Host: "localhost", Port: 25},
		Auth: AuthConfig{TokenTTL: 15 * time.Minute},
	}
}

// Load reads path over the defaults (a missing path is allowed when empty),
// then applies environment overrides. A random secret id is generated when
// none is configured.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.overrideFromEnv()
	if cfg.Server.SecretID == "" {
		id, err := randomID(24)
		if err != nil {
			return nil, err
		}
		cfg.Server.SecretID = id
	}
	return cfg, nil
}

func (c *Config) overrideFromEnv() {
	str := map[string]*string{
		"PT_DSN":        &c.DB.DSN,
		"PT_ADDR":       &c.Server.Addr,
		"PT_SECRET_ID":  &c.Server.SecretID,
		"PT_JWT_KEY":    &c.Auth.JWTKey,
		"PT_REDIS_ADDR": &c.Alerts.RedisAddr,
		"PT_AMQP_URL":   &c.Alerts.AMQPURL,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("PT_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.MaxConcurrent = n
		}
	}
}

// Validate checks values the server cannot start without.
func (c *Config) Validate() error {
	var problems []error
	if c.DB.DSN == "" {
		problems = append(problems, errors.New("db.dsn is required"))
	}
	if c.Server.WebRoot == "" {
		problems = append(problems, errors.New("server.web_root is required"))
	}
	if c.Server.CookieName == "" {
		problems = append(problems, errors.New("server.cookie_name is required"))
	}
	if c.Server.MaxConcurrent < 1 {
		problems = append(problems, errors.New("server.max_concurrent must be at least 1"))
	}
	switch c.Alerts.Queue {
	case QueueLocal:
		if c.Alerts.Workers < 1 || c.Alerts.QueueSize < 1 {
			problems = append(problems, errors.New("alerts.workers and alerts.queue_size must be positive"))
		}
	case QueueAMQP:
		if c.Alerts.AMQPURL == "" {
			problems = append(problems, errors.New("alerts.amqp_url is required for the amqp queue"))
		}
	default:
		problems = append(problems, fmt.Errorf("alerts.queue %q is not one of local, amqp", c.Alerts.Queue))
	}
	if c.Auth.UsersFile != "" && c.Auth.JWTKey == "" {
		problems = append(problems, errors.New("auth.jwt_key is required when auth.users_file is set"))
	}
	return errors.Join(problems...)
}
