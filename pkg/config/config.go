// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration, loaded from the environment.
type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Database DatabaseConfig `env:",prefix=DB_"`
	App      AppConfig      `env:",prefix=APP_"`
	Creative CreativeConfig `env:",prefix=CREATIVE_"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host         string `env:"HOST,default=0.0.0.0"`
	Port         string `env:"PORT,default=3001"`
	ReadTimeout  int    `env:"READ_TIMEOUT,default=30"`  // seconds
	WriteTimeout int    `env:"WRITE_TIMEOUT,default=30"` // seconds

	// BidRateLimit is the per-client sustained rate for bid submission,
	// requests per second. BidRateBurst is the burst allowance.
	BidRateLimit float64 `env:"BID_RATE_LIMIT,default=20"`
	BidRateBurst int     `env:"BID_RATE_BURST,default=40"`
}

// DatabaseConfig holds the PostgreSQL settings.
type DatabaseConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=postgres"`
	Password string `env:"PASSWORD,default=postgres"`
	Name     string `env:"NAME,default=admarkt"`
	SSLMode  string `env:"SSL_MODE,default=disable"`
	MaxConns int    `env:"MAX_CONNS,default=25"`
	MinConns int    `env:"MIN_CONNS,default=5"`

	// QueryTimeout bounds every storage call, in seconds. Operations that
	// exceed it fail with a storage-unavailable error instead of hanging.
	QueryTimeout int `env:"QUERY_TIMEOUT,default=5"`
}

// AppConfig holds application-wide settings.
type AppConfig struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	// Storage selects the backing store: "postgres" or "memory". The
	// memory store is for demos and tests only.
	Storage string `env:"STORAGE,default=postgres"`
}

// CreativeConfig holds creative upload storage settings.
type CreativeConfig struct {
	Dir string `env:"DIR,default=./uploads"`
}

// Load loads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Addr returns the server listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsProduction returns true if running in production environment.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}
