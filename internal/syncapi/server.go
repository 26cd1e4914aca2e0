package syncapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"panelsync/pkg/openapi"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/.well-known/openapi.json", a.openAPIDoc().ServeHandler("panelsync", "v1"))

	allowed := []string{"http://localhost:3001"}
	if v := strings.TrimSpace(os.Getenv("ADMIN_CORS_ORIGINS")); v != "" {
		parts := strings.Split(v, ",")
		tmp := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				tmp = append(tmp, s)
			}
		}
		if len(tmp) > 0 {
			allowed = tmp
		}
	}

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(cors(allowed))
		ar.Use(a.adminAuth)
		ar.Get("/servers", a.listServers)
		ar.Post("/servers", a.createServer)
		ar.Get("/servers/{id}/settings", a.getSettings)
		ar.Get("/servers/{id}/settings/cached", a.getCachedSettings)
		ar.Put("/servers/{id}/settings/{category}", a.putSetting)
	})

	return r
}

func (a *App) openAPIDoc() *openapi.Registry {
	reg := openapi.NewRegistry()
	ok := map[string]any{"200": map[string]any{"description": "OK"}}
	reg.Register(openapi.Operation{Method: "GET", Path: "/admin/servers", Summary: "List registered panel servers", Responses: ok})
	reg.Register(openapi.Operation{Method: "POST", Path: "/admin/servers", Summary: "Register or update a panel server", Responses: map[string]any{"201": map[string]any{"description": "Created"}}})
	reg.Register(openapi.Operation{Method: "GET", Path: "/admin/servers/{id}/settings", Summary: "Fetch all settings from the panel", Responses: ok})
	reg.Register(openapi.Operation{Method: "GET", Path: "/admin/servers/{id}/settings/cached", Summary: "Last fetched snapshot (no panel session)", Responses: ok})
	reg.Register(openapi.Operation{Method: "PUT", Path: "/admin/servers/{id}/settings/{category}", Summary: "Update one setting and refetch", Responses: ok})
	return reg
}
