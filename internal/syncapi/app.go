package syncapi

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"panelsync/internal/guard"
	"panelsync/internal/panel"
	"panelsync/pkg/servers"
)

// Config holds sync-api specific configuration.
type Config struct {
	AdminIssuer   string
	AdminAudience string
	JWKSURL       string
	SnapshotTTL   time.Duration
}

// App is the sync-api application container.
// Handlers and middleware have methods on this type.
//
// Keep it lean: shared deps and config only.
// Request-scoped work should use context.
//
// Log is a sugared zap logger; servers is the persisted registry; panel is
// the outbound settings client; rdb caches the last fetched snapshot per
// server (nil disables that).
type App struct {
	log         *zap.SugaredLogger
	servers     servers.Provider
	panel       *panel.Client
	guard       *guard.Guard
	rdb         *redis.Client
	adminJWKS   jwk.Set
	adminIssuer string
	adminAud    string
	snapshotTTL time.Duration
}

// New constructs App. JWKS fetch happens once at startup when configured.
func New(log *zap.SugaredLogger, prov servers.Provider, pc *panel.Client, g *guard.Guard, rdb *redis.Client, cfg Config) *App {
	app := &App{
		log:         log,
		servers:     prov,
		panel:       pc,
		guard:       g,
		rdb:         rdb,
		adminIssuer: cfg.AdminIssuer,
		adminAud:    cfg.AdminAudience,
		snapshotTTL: cfg.SnapshotTTL,
	}
	if cfg.JWKSURL != "" {
		app.adminJWKS = mustJWKS(cfg.JWKSURL)
	}
	return app
}
