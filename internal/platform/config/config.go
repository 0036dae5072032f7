// Package config reads service configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr            string
	DatabaseURL     string
	Redis           Redis
	JWTSigningKey   string
	JWTIssuer       string
	JWTAudience     string
	ClaimAttempts   ClaimAttempts
	ShutdownTimeout time.Duration
}

// Redis captures the optional Redis connection settings.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ClaimAttempts bounds claim-code guesses per entity and claimer.
type ClaimAttempts struct {
	Limit  int
	Window time.Duration
}

// FromEnv builds a Server config from environment variables. An unset
// CLUBHUB_DATABASE_URL selects the in-memory stores for development.
func FromEnv() Server {
	jwtSigningKey := os.Getenv("CLUBHUB_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default, overridden in any real deployment.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          envOr("CLUBHUB_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("CLUBHUB_DATABASE_URL"),
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     envOr("CLUBHUB_JWT_ISSUER", "clubhub"),
		JWTAudience:   envOr("CLUBHUB_JWT_AUDIENCE", "clubhub-api"),
		Redis: Redis{
			URL:          os.Getenv("CLUBHUB_REDIS_URL"),
			PoolSize:     envIntOr("CLUBHUB_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("CLUBHUB_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("CLUBHUB_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("CLUBHUB_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("CLUBHUB_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		ClaimAttempts: ClaimAttempts{
			Limit:  envIntOr("CLUBHUB_CLAIM_ATTEMPT_LIMIT", 10),
			Window: envDurationOr("CLUBHUB_CLAIM_ATTEMPT_WINDOW", 15*time.Minute),
		},
		ShutdownTimeout: envDurationOr("CLUBHUB_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
