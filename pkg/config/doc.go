// Package config loads typed configuration structs from environment
// variables, with .env fallback for local development.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11. Each
// configuration type is parsed once per process and served from an in-memory
// cache afterwards, so packages can call Load for the same struct without
// coordinating.
//
// Usage:
//
//	type PGConfig struct {
//	    ConnURL string `env:"PG_CONN_URL,required"`
//	}
//
//	var cfg PGConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
package config
