package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrNoSecret = errors.New("JWT_SECRET is required")

type Config struct {
	Addr           string   `yaml:"addr" toml:"addr"`
	JWTSecret      string   `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTLHours  int      `yaml:"token_ttl_hours" toml:"token_ttl_hours"`
	AllowAnonymous bool     `yaml:"allow_anonymous" toml:"allow_anonymous"`
	AdminToken     string   `yaml:"admin_token" toml:"admin_token"`
	CORSOrigins    []string `yaml:"cors_origins" toml:"cors_origins"`

	AnalyticsEnabled bool   `yaml:"analytics_enabled" toml:"analytics_enabled"`
	AnalyticsTable   string `yaml:"analytics_table" toml:"analytics_table"`

	DBHost     string `yaml:"db_host" toml:"db_host"`
	DBPort     int    `yaml:"db_port" toml:"db_port"`
	DBUser     string `yaml:"db_user" toml:"db_user"`
	DBPassword string `yaml:"db_password" toml:"db_password"`
	DBName     string `yaml:"db_name" toml:"db_name"`
	DBSSLMode  string `yaml:"db_sslmode" toml:"db_sslmode"`
}

func Default() *Config {
	return &Config{
		Addr:           ":8080",
		TokenTTLHours:  30 * 24,
		CORSOrigins:    []string{"*"},
		AnalyticsTable: "analytics_events",
		DBPort:         5432,
		DBSSLMode:      "disable",
	}
}

// Load reads the configuration from the environment only.
func Load() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a .yaml/.yml or .toml file over the defaults; environment
// variables still win over the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(b), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Addr, "ADDR")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.AdminToken, "ADMIN_TOKEN")
	setString(&c.AnalyticsTable, "ANALYTICS_TABLE")
	setString(&c.DBHost, "DB_HOST")
	setString(&c.DBUser, "DB_USER")
	setString(&c.DBPassword, "DB_PASSWORD")
	setString(&c.DBName, "DB_NAME")
	setString(&c.DBSSLMode, "DB_SSLMODE")

	setInt(&c.DBPort, "DB_PORT")
	setInt(&c.TokenTTLHours, "TOKEN_TTL_HOURS")

	setBool(&c.AllowAnonymous, "ALLOW_ANONYMOUS")
	setBool(&c.AnalyticsEnabled, "ANALYTICS_ENABLED")

	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSOrigins = origins
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrNoSecret
	}
	if c.AnalyticsEnabled && c.DBHost == "" {
		return errors.New("ANALYTICS_ENABLED requires DB_HOST")
	}
	return nil
}

func (c *Config) TokenTTL() time.Duration {
	if c.TokenTTLHours <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(c.TokenTTLHours) * time.Hour
}

func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Unparsable numbers keep the current value.
func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

func setBool(dst *bool, key string) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		*dst = true
	case "0", "false", "no":
		*dst = false
	}
}
