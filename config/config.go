package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// HTTP server configuration
	ListenAddr string

	// Token grants handed to every new account
	StartingGoldBalance   int64
	StartingSilverBalance int64

	// Settlement configuration
	VoteQuorum     int // votes required before a verdict is computed
	VoteRetryLimit int // bounded retries on optimistic-concurrency conflicts

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is fine; deployments set the environment directly
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ListenAddr:  os.Getenv("LISTEN_ADDR"),

		// New accounts start with silver only; gold is won through wagers
		StartingGoldBalance:   0,
		StartingSilverBalance: 100,

		VoteQuorum:     3,
		VoteRetryLimit: 3,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}

	// Override defaults if environment variables are set
	if gold := os.Getenv("STARTING_GOLD_BALANCE"); gold != "" {
		if parsed, err := strconv.ParseInt(gold, 10, 64); err == nil {
			config.StartingGoldBalance = parsed
		}
	}
	if silver := os.Getenv("STARTING_SILVER_BALANCE"); silver != "" {
		if parsed, err := strconv.ParseInt(silver, 10, 64); err == nil {
			config.StartingSilverBalance = parsed
		}
	}
	if quorum := os.Getenv("VOTE_QUORUM"); quorum != "" {
		if parsed, err := strconv.Atoi(quorum); err == nil && parsed > 0 {
			config.VoteQuorum = parsed
		}
	}
	if retries := os.Getenv("VOTE_RETRY_LIMIT"); retries != "" {
		if parsed, err := strconv.Atoi(retries); err == nil && parsed >= 0 {
			config.VoteRetryLimit = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
