package utils

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration, read from MANGASHELF_* env vars.
type Config struct {
	HTTPAddr string `env:"MANGASHELF_HTTP_ADDR" envDefault:":8080"`
	FeedAddr string `env:"MANGASHELF_FEED_ADDR" envDefault:":7070"`

	// Rakuten Books application ID; when empty the source stays disabled
	// and searches go through Google Books only.
	RakutenAppID string `env:"MANGASHELF_RAKUTEN_APP_ID"`
	// the Media Arts Database SPARQL endpoint is slow; opt-in
	UseMADB bool `env:"MANGASHELF_USE_MADB" envDefault:"false"`

	JWTSecret   string        `env:"MANGASHELF_JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer   string        `env:"MANGASHELF_JWT_ISSUER" envDefault:"mangashelf"`
	JWTDuration time.Duration `env:"MANGASHELF_JWT_TTL" envDefault:"24h"`
}

// Load parses configuration from the environment, dying on malformed values.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("parse config: %v", err)
	}
	return cfg
}
