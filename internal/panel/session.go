package panel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	jmes "github.com/jmespath/go-jmespath"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Access carries everything needed to talk to one panel server for the
// duration of a single call. Credentials arrive per call, already decrypted,
// and are never stored here.
type Access struct {
	ServerID string
	BaseURL  string
	Username string
	Password string
}

// SessionManager owns the token cache and the in-flight authentication
// registry, both keyed by server id. Constructed once per Client and shared
// by all concurrent callers; there is no package-level state.
type SessionManager struct {
	log         *zap.SugaredLogger
	http        *http.Client
	cache       *tokenCache
	flight      singleflight.Group
	authTimeout time.Duration
	catalog     Catalog
}

func newSessionManager(log *zap.SugaredLogger, hc *http.Client, cat Catalog, ttl, authTimeout time.Duration) *SessionManager {
	return &SessionManager{
		log:         log,
		http:        hc,
		cache:       newTokenCache(ttl),
		authTimeout: authTimeout,
		catalog:     cat,
	}
}

// EnsureToken returns the cached live token, or joins/starts the single
// in-flight exchange for this server. For any burst of callers with no cached
// token, exactly one network exchange happens; all of them receive its result.
func (m *SessionManager) EnsureToken(ctx context.Context, acc Access) (string, error) {
	if tok, ok := m.cache.get(acc.ServerID); ok {
		return tok, nil
	}
	v, err, _ := m.flight.Do(acc.ServerID, func() (any, error) {
		// A just-finished flight may have cached a token between our miss and
		// winning the flight; re-check before spending a session slot.
		if tok, ok := m.cache.get(acc.ServerID); ok {
			return tok, nil
		}
		// The exchange runs under its own deadline, detached from any single
		// caller: cancelling one waiter must not reject the rest, and a hung
		// exchange must settle for everyone.
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.authTimeout)
		defer cancel()
		tok, err := m.authenticate(actx, acc)
		if err != nil {
			return nil, err
		}
		m.cache.put(acc.ServerID, tok)
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// forceToken performs a fresh, non-deduplicated exchange. The 401 recovery
// path uses it so a stale in-flight result can never be handed back.
func (m *SessionManager) forceToken(ctx context.Context, acc Access) (string, error) {
	actx, cancel := context.WithTimeout(ctx, m.authTimeout)
	defer cancel()
	tok, err := m.authenticate(actx, acc)
	if err != nil {
		return "", err
	}
	m.cache.put(acc.ServerID, tok)
	return tok, nil
}

// authenticate performs the Basic-Auth exchange and unwraps the token from
// the response envelope.
func (m *SessionManager) authenticate(ctx context.Context, acc Access) (string, error) {
	authExchanges.Inc()
	url := strings.TrimRight(acc.BaseURL, "/") + m.catalog.AuthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", authFailed("building auth request", err)
	}
	req.SetBasicAuth(acc.Username, acc.Password)
	req.Header.Set("Accept", "application/json")
	resp, err := m.http.Do(req)
	if err != nil {
		return "", authFailed("auth exchange failed", classifyTransport(err, "auth"))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", authFailed("panel rejected admin credentials", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", authFailed("auth exchange failed", classifyStatus(resp.StatusCode, "auth"))
	}
	var envelope any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", authFailed("auth response not JSON", err)
	}
	raw, err := jmes.Search(m.catalog.TokenSelector, envelope)
	if err != nil {
		return "", authFailed("auth envelope selector failed", err)
	}
	tok, ok := raw.(string)
	if !ok || tok == "" {
		return "", authFailed("auth envelope missing token", malformed("auth", nil))
	}
	return tok, nil
}

// logout explicitly ends one panel session. Best-effort by contract: failures
// are logged, never surfaced.
func (m *SessionManager) logout(ctx context.Context, acc Access, token string) {
	url := strings.TrimRight(acc.BaseURL, "/") + m.catalog.AuthPath + "/" + token
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		logoutFailures.Inc()
		m.log.Warnw("panel logout request build failed", "server", acc.ServerID, "err", err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := m.http.Do(req)
	if err != nil {
		logoutFailures.Inc()
		m.log.Warnw("panel logout failed", "server", acc.ServerID, "err", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logoutFailures.Inc()
		m.log.Warnw("panel logout rejected", "server", acc.ServerID, "status", resp.StatusCode)
	}
}

// Invalidate drops the cached token for a server immediately. Used whenever
// the panel rejects a token before the local TTL elapses.
func (m *SessionManager) Invalidate(serverID string) {
	m.cache.invalidate(serverID)
}

// open starts a session scope for one aggregate operation.
func (m *SessionManager) open(acc Access) *session {
	return &session{mgr: m, acc: acc}
}

// session scopes token acquisition for a single aggregate operation and
// guarantees exactly one logout for the token it obtained, on every exit
// path. One operation touching N endpoints consumes one panel session.
type session struct {
	mgr *SessionManager
	acc Access

	// refreshMu serializes 401 recovery within this operation so nine
	// endpoints rejecting the same stale token mint one replacement, not nine.
	refreshMu sync.Mutex

	mu     sync.Mutex
	token  string
	closed bool
}

// ensure obtains (or reuses) a token through the deduplicating coordinator
// and remembers it for close.
func (s *session) ensure(ctx context.Context) (string, error) {
	tok, err := s.mgr.EnsureToken(ctx, s.acc)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	return tok, nil
}

// refresh drops the rejected token and mints a fresh one. The exchange never
// consults the single-flight registry — a stale in-flight result must not be
// handed back here — but siblings inside the same operation do share the
// replacement: if one of them already swapped the stale token out, reuse that.
func (s *session) refresh(ctx context.Context, stale string) (string, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	s.mu.Lock()
	cur := s.token
	s.mu.Unlock()
	if cur != "" && cur != stale {
		return cur, nil
	}
	s.mgr.cache.invalidate(s.acc.ServerID)
	tok, err := s.mgr.forceToken(ctx, s.acc)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	return tok, nil
}

// close logs out the session's token once. Runs even when the operation's
// context is already cancelled; the logout gets its own short deadline.
func (s *session) close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return
	}
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mgr.authTimeout)
	defer cancel()
	s.mgr.logout(lctx, s.acc, token)
	s.mgr.cache.invalidateToken(s.acc.ServerID, token)
}
