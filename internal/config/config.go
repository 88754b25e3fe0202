package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Auth     AuthConfig     `yaml:"auth"`
	Feed     FeedConfig     `yaml:"feed"`
	Client   ClientConfig   `yaml:"client"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"tokenTTL"`
	// IssueTokens enables the development /token endpoint.
	IssueTokens bool `yaml:"issueTokens"`
}

type FeedConfig struct {
	PageSize        int `yaml:"pageSize"`
	CommentPageSize int `yaml:"commentPageSize"`
	MaxPageSize     int `yaml:"maxPageSize"`
}

type ClientConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", ShutdownTimeout: 10 * time.Second},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour, IssueTokens: true},
		Feed:     FeedConfig{PageSize: 10, CommentPageSize: 20, MaxPageSize: 100},
		Client:   ClientConfig{BaseURL: "http://localhost:8080", Timeout: 15 * time.Second},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// COMMUNITY_* environment variables, including those from a .env file in the
// working directory. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		glog.Warningf("[config] .env: %v", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		glog.Infof("[config] %s not found, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "COMMUNITY_PORT")
	setString(&c.Postgres.DSN, "COMMUNITY_POSTGRES_DSN")
	setString(&c.Auth.Secret, "COMMUNITY_AUTH_SECRET")
	setString(&c.Client.BaseURL, "COMMUNITY_API_URL")
	setString(&c.Client.Token, "COMMUNITY_TOKEN")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	if c.Feed.PageSize <= 0 || c.Feed.CommentPageSize <= 0 {
		return errors.New("config: page sizes must be positive")
	}
	if c.Feed.MaxPageSize < c.Feed.PageSize || c.Feed.MaxPageSize < c.Feed.CommentPageSize {
		return errors.New("config: feed.maxPageSize is below a page size")
	}
	if c.Client.Timeout <= 0 {
		return errors.New("config: client.timeout must be positive")
	}
	return nil
}

// ValidateServer adds the checks only the API server needs.
func (c *Config) ValidateServer() error {
	if c.Server.Port == "" {
		return errors.New("config: server.port is required")
	}
	if c.Auth.Secret == "" {
		return errors.New("config: auth.secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: auth.tokenTTL must be positive")
	}
	return nil
}
