package syncapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"panelsync/internal/panel"
	"panelsync/pkg/servers"
)

func (a *App) listServers(w http.ResponseWriter, r *http.Request) {
	list, err := a.servers.ListServers(r.Context())
	if err != nil {
		http.Error(w, "registry error", http.StatusInternalServerError)
		return
	}
	type Row struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		BaseURL  string `json:"base_url"`
		Username string `json:"username"`
	}
	out := make([]Row, 0, len(list))
	for _, s := range list {
		out = append(out, Row{ID: s.ID, Name: s.Name, BaseURL: s.BaseURL, Username: s.Username})
	}
	writeJSON(w, map[string]any{"items": out}, http.StatusOK)
}

func (a *App) createServer(w http.ResponseWriter, r *http.Request) {
	var b struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		BaseURL        string `json:"base_url"`
		Username       string `json:"username"`
		Password       string `json:"password"`
		NotifyPassword string `json:"notify_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(b.BaseURL) == "" || strings.TrimSpace(b.Username) == "" {
		http.Error(w, "missing fields", http.StatusBadRequest)
		return
	}
	id, err := a.servers.UpsertServer(r.Context(), servers.Server{
		ID: b.ID, Name: b.Name, BaseURL: strings.TrimRight(b.BaseURL, "/"), Username: b.Username,
	}, b.Password, b.NotifyPassword)
	if err != nil {
		http.Error(w, "registry error", http.StatusInternalServerError)
		return
	}
	// Credentials may have rotated; a cached token for the old ones is dead weight.
	a.panel.Sessions().Invalidate(id)
	writeJSON(w, map[string]any{"ok": true, "id": id}, http.StatusCreated)
}

// access resolves a server row plus decrypted credentials into the per-call
// access value the panel client wants.
func (a *App) access(ctx context.Context, id string) (panel.Access, error) {
	s, err := a.servers.ResolveServerByID(ctx, id)
	if err != nil {
		return panel.Access{}, err
	}
	creds, err := a.servers.AdminCredentials(ctx, id)
	if err != nil {
		return panel.Access{}, err
	}
	return panel.Access{ServerID: s.ID, BaseURL: s.BaseURL, Username: creds.Username, Password: creds.Password}, nil
}

type settingsResponse struct {
	Settings  panel.Settings          `json:"settings"`
	Failures  []panel.EndpointFailure `json:"failures,omitempty"`
	FetchedAt time.Time               `json:"fetchedAt"`
}

func (a *App) getSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	acc, err := a.access(r.Context(), id)
	if err != nil {
		http.Error(w, "server not found", http.StatusNotFound)
		return
	}
	settings, failures, err := a.panel.FetchAll(r.Context(), acc)
	if err != nil {
		writeProblem(w, err)
		return
	}
	resp := settingsResponse{Settings: settings, Failures: failures, FetchedAt: time.Now().UTC()}
	a.storeSnapshot(r.Context(), id, resp)
	writeJSON(w, resp, http.StatusOK)
}

// getCachedSettings serves the last fetched snapshot from redis without
// consuming a panel session.
func (a *App) getCachedSettings(w http.ResponseWriter, r *http.Request) {
	if a.rdb == nil {
		http.Error(w, "snapshot cache disabled", http.StatusNotFound)
		return
	}
	id := chi.URLParam(r, "id")
	raw, err := a.rdb.Get(r.Context(), snapshotKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			http.Error(w, "no snapshot", http.StatusNotFound)
			return
		}
		http.Error(w, "snapshot cache error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (a *App) putSetting(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	category := panel.Category(chi.URLParam(r, "category"))
	var b struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(b.Key) == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}
	actor := ActorFrom(r.Context())

	allowed, err := a.guard.Allow(r.Context(), map[string]any{
		"server_id": id,
		"actor":     actor,
		"category":  string(category),
		"key":       b.Key,
		"value":     b.Value,
	})
	if err != nil {
		http.Error(w, "policy error", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "write denied by policy", http.StatusForbidden)
		return
	}

	acc, err := a.access(r.Context(), id)
	if err != nil {
		http.Error(w, "server not found", http.StatusNotFound)
		return
	}
	res, err := a.panel.UpdateField(r.Context(), acc, panel.UpdateRequest{
		Category: category, Key: b.Key, Value: b.Value, Actor: actor,
	})
	if err != nil {
		if panel.KindOf(err) == "" {
			// routing/validation problem, not a remote failure
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeProblem(w, err)
		return
	}
	a.storeSnapshot(r.Context(), id, settingsResponse{Settings: res.Settings, Failures: res.Failures, FetchedAt: time.Now().UTC()})
	writeJSON(w, res, http.StatusOK)
}

func snapshotKey(id string) string { return "panelsync:snapshot:" + id }

func (a *App) storeSnapshot(ctx context.Context, id string, resp settingsResponse) {
	if a.rdb == nil {
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := a.rdb.Set(ctx, snapshotKey(id), b, a.snapshotTTL).Err(); err != nil {
		a.log.Warnw("snapshot cache write failed", "server", id, "err", err)
	}
}
