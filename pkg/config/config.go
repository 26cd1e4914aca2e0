// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string // sync-service

	// Outbound panel client behaviour
	PanelTimeout  time.Duration // per network call (auth, fetch, update, logout)
	PanelTokenTTL time.Duration // local heuristic only; 401 handling is authoritative
	CatalogFile   string        // optional YAML override for panel endpoint paths

	// Admin bearer validation (JWKS); when unset the dev X-Actor header is accepted
	AdminIssuer   string
	AdminAudience string
	AdminJWKSURL  string

	// Optional rego gate over settings writes
	UpdatePolicyFile string

	// Secrets at rest
	EncryptionKey string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string

	// How long fetched snapshots stay readable from redis
	SnapshotTTL time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:              env("PANELSYNC_ENV", "dev"),
		HTTPAddr:         env("PANELSYNC_HTTP_ADDR", ":8080"),
		PanelTimeout:     envDur("PANEL_TIMEOUT_SEC", 15) * time.Second,
		PanelTokenTTL:    envDur("PANEL_TOKEN_TTL_MIN", 15) * time.Minute,
		CatalogFile:      env("PANEL_CATALOG_FILE", ""),
		AdminIssuer:      env("ADMIN_OIDC_ISSUER", ""),
		AdminAudience:    env("ADMIN_OIDC_AUDIENCE", "panelsync-admin"),
		AdminJWKSURL:     env("ADMIN_JWKS_URL", ""),
		UpdatePolicyFile: env("UPDATE_POLICY_FILE", ""),
		EncryptionKey:    env("ENCRYPTION_KEY", ""),
		RedisURL:         env("REDIS_URL", ""),
		DatabaseURL:      env("DATABASE_URL", ""),
		SnapshotTTL:      envDur("SNAPSHOT_TTL_MIN", 60) * time.Minute,
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory server registry for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
