// cmd/sync-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"panelsync/internal/guard"
	"panelsync/internal/panel"
	"panelsync/internal/syncapi"
	"panelsync/pkg/config"
	"panelsync/pkg/db"
	"panelsync/pkg/logger"
	"panelsync/pkg/middleware"
	"panelsync/pkg/servers"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var prov servers.Provider
	if pool != nil {
		if err := servers.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		prov = servers.NewPostgresProvider(pool, log, cfg.EncryptionKey)
	} else {
		prov = servers.NewMemoryProviderFromEnv(log)
	}

	catalog := panel.DefaultCatalog()
	if cfg.CatalogFile != "" {
		var err error
		if catalog, err = panel.LoadCatalog(cfg.CatalogFile); err != nil {
			log.Fatalw("catalog", "file", cfg.CatalogFile, "err", err)
		}
	}
	client := panel.New(log,
		panel.WithCatalog(catalog),
		panel.WithTimeout(cfg.PanelTimeout),
		panel.WithTokenTTL(cfg.PanelTokenTTL),
		panel.WithState(prov),
	)

	g, err := guard.New(log, cfg.UpdatePolicyFile)
	if err != nil {
		log.Fatalw("guard", "err", err)
	}

	app := syncapi.New(log, prov, client, g, rdb, syncapi.Config{
		AdminIssuer:   cfg.AdminIssuer,
		AdminAudience: cfg.AdminAudience,
		JWKSURL:       cfg.AdminJWKSURL,
		SnapshotTTL:   cfg.SnapshotTTL,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing(cfg))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Mount("/", app.Handler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("sync-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("sync-service stopped")
}
