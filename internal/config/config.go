// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"
)

// secretKeyBytes is the required length of the decoded token sealing key.
const secretKeyBytes = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURI  string
	ListenAddr   string
	DBPath       string
	SessionTTL   time.Duration
	// SecretKey seals OAuth token columns at rest. Nil disables sealing.
	SecretKey []byte
}

// Load reads configuration from environment variables and returns a validated
// Config. GRAPHGATE_CLIENT_ID, GRAPHGATE_CLIENT_SECRET, and
// GRAPHGATE_REDIRECT_URI are required; the process refuses to start without
// them. Optional variables with defaults: GRAPHGATE_TENANT_ID (common),
// GRAPHGATE_LISTEN_ADDR (127.0.0.1:8080), GRAPHGATE_DB_PATH (graphgate.db),
// GRAPHGATE_SESSION_TTL (24h). GRAPHGATE_SECRET_KEY is an optional
// base64-encoded 32-byte key; when absent, tokens are stored unsealed.
func Load() (*Config, error) {
	clientID := os.Getenv("GRAPHGATE_CLIENT_ID")
	if clientID == "" {
		return nil, fmt.Errorf("GRAPHGATE_CLIENT_ID is required")
	}

	clientSecret := os.Getenv("GRAPHGATE_CLIENT_SECRET")
	if clientSecret == "" {
		return nil, fmt.Errorf("GRAPHGATE_CLIENT_SECRET is required")
	}

	redirectURI := os.Getenv("GRAPHGATE_REDIRECT_URI")
	if redirectURI == "" {
		return nil, fmt.Errorf("GRAPHGATE_REDIRECT_URI is required")
	}

	tenantID := "common"
	if v, ok := os.LookupEnv("GRAPHGATE_TENANT_ID"); ok && v != "" {
		tenantID = v
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("GRAPHGATE_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "graphgate.db"
	if v, ok := os.LookupEnv("GRAPHGATE_DB_PATH"); ok {
		dbPath = v
	}

	sessionTTL := 24 * time.Hour
	if v, ok := os.LookupEnv("GRAPHGATE_SESSION_TTL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("GRAPHGATE_SESSION_TTL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("GRAPHGATE_SESSION_TTL must be positive, got %q", v)
		}
		sessionTTL = parsed
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("GRAPHGATE_SECRET_KEY"); ok && v != "" {
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("GRAPHGATE_SECRET_KEY is not valid base64: %w", err)
		}
		if len(decoded) != secretKeyBytes {
			return nil, fmt.Errorf("GRAPHGATE_SECRET_KEY must decode to %d bytes, got %d", secretKeyBytes, len(decoded))
		}
		secretKey = decoded
	}

	return &Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TenantID:     tenantID,
		RedirectURI:  redirectURI,
		ListenAddr:   listenAddr,
		DBPath:       dbPath,
		SessionTTL:   sessionTTL,
		SecretKey:    secretKey,
	}, nil
}
