// pkg/servers/memory.go
package servers

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memProvider struct {
	log *zap.SugaredLogger

	mu       sync.RWMutex
	byID     map[string]Server
	passes   map[string]string // id -> admin password
	notify   map[string]string // id -> smtp password
	updaters map[string]string // id -> last updater
}

// NewMemoryProviderFromEnv builds a dev registry seeded from SERVER_SEED_JSON:
// [{"id":"...","name":"web01","base_url":"https://...","username":"admin","password":"...","notify_password":"..."}]
func NewMemoryProviderFromEnv(log *zap.SugaredLogger) Provider {
	p := &memProvider{
		log:      log,
		byID:     map[string]Server{},
		passes:   map[string]string{},
		notify:   map[string]string{},
		updaters: map[string]string{},
	}
	if seed := os.Getenv("SERVER_SEED_JSON"); seed != "" {
		var entries []struct {
			ID             string `json:"id"`
			Name           string `json:"name"`
			BaseURL        string `json:"base_url"`
			Username       string `json:"username"`
			Password       string `json:"password"`
			NotifyPassword string `json:"notify_password"`
		}
		_ = json.Unmarshal([]byte(seed), &entries)
		for _, e := range entries {
			id := e.ID
			if id == "" {
				id = uuid.NewString()
			}
			p.byID[id] = Server{ID: id, Name: e.Name, BaseURL: e.BaseURL, Username: e.Username}
			p.passes[id] = e.Password
			p.notify[id] = e.NotifyPassword
		}
	}
	return p
}

func (m *memProvider) ResolveServerByID(ctx context.Context, id string) (Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.byID[id]; ok {
		return s, nil
	}
	return Server{}, ErrNotFound
}

func (m *memProvider) ListServers(ctx context.Context) ([]Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Server, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s)
	}
	return out, nil
}

func (m *memProvider) AdminCredentials(ctx context.Context, id string) (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return Credentials{}, ErrNotFound
	}
	return Credentials{Username: s.Username, Password: m.passes[id]}, nil
}

func (m *memProvider) UpsertServer(ctx context.Context, s Server, password, notifyPassword string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.byID[s.ID] = s
	if password != "" {
		m.passes[s.ID] = password
	}
	if notifyPassword != "" {
		m.notify[s.ID] = notifyPassword
	}
	return s.ID, nil
}

func (m *memProvider) NotifyPassword(ctx context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.byID[id]; !ok {
		return "", ErrNotFound
	}
	return m.notify[id], nil
}

func (m *memProvider) SetNotifyPassword(ctx context.Context, id, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	m.notify[id] = password
	return nil
}

func (m *memProvider) LastUpdater(ctx context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updaters[id], nil
}

func (m *memProvider) RecordUpdater(ctx context.Context, id, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updaters[id] = actor
	return nil
}
