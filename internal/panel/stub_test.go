package panel

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// stubPanel emulates a panel's admin API for tests: Basic-Auth token exchange,
// bearer-checked settings endpoints with an envelope, and explicit logout. It
// counts auth exchanges, logouts and per-path reads so tests can assert the
// session-economy properties directly.
type stubPanel struct {
	srv *httptest.Server

	mu           sync.Mutex
	authCalls    int
	authDelay    time.Duration
	authStatus   int // non-zero forces this status on the exchange
	tokenSeq     int
	live         map[string]bool
	alwaysReject bool // settings endpoints 401 every token, live or not
	logoutCalls  int
	logoutTokens []string

	failPaths map[string]int    // path -> forced status
	rawBodies map[string]string // path -> raw GET response body
	getCalls  map[string]int
	writes    []recordedWrite
}

type recordedWrite struct {
	Method string
	Path   string
	Body   map[string]any
}

func newStubPanel(t *testing.T) *stubPanel {
	t.Helper()
	s := &stubPanel{
		live:      map[string]bool{},
		failPaths: map[string]int{},
		rawBodies: map[string]string{},
		getCalls:  map[string]int{},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

// client builds a Client pointed at the stub, plus the access value for it.
func (s *stubPanel) client(opts ...Option) (*Client, Access) {
	base := []Option{WithHTTPClient(s.srv.Client()), WithTimeout(5 * time.Second)}
	c := New(zap.NewNop().Sugar(), append(base, opts...)...)
	acc := Access{ServerID: "srv-1", BaseURL: s.srv.URL, Username: "admin", Password: "hunter2"}
	return c, acc
}

// expireTokens kills every issued token server-side, leaving any client-side
// cache entry stale.
func (s *stubPanel) expireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = map[string]bool{}
}

// failAll forces the given status on every settings endpoint.
func (s *stubPanel) failAll(status int) {
	cat := DefaultCatalog()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ep := range cat.Endpoints {
		s.failPaths[ep.Path] = status
	}
}

func (s *stubPanel) counts() (auth, logout int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCalls, s.logoutCalls
}

func (s *stubPanel) totalGets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.getCalls {
		n += v
	}
	return n
}

func (s *stubPanel) recordedWrites() []recordedWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedWrite, len(s.writes))
	copy(out, s.writes)
	return out
}

func (s *stubPanel) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/api/v2/auth" && r.Method == http.MethodPost {
		s.mu.Lock()
		s.authCalls++
		delay, status := s.authDelay, s.authStatus
		s.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		if user, pass, ok := r.BasicAuth(); !ok || user == "" || pass == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.mu.Lock()
		s.tokenSeq++
		tok := fmt.Sprintf("tok-%d", s.tokenSeq)
		s.live[tok] = true
		s.mu.Unlock()
		writeEnvelope(w, map[string]any{"status": "ok", "data": map[string]any{"token": tok}})
		return
	}

	if strings.HasPrefix(path, "/api/v2/auth/") && r.Method == http.MethodDelete {
		// Count the logout but keep the token answering: revocation is not
		// instantaneous on real panels, and tests drive staleness explicitly
		// through expireTokens.
		tok := strings.TrimPrefix(path, "/api/v2/auth/")
		s.mu.Lock()
		s.logoutCalls++
		s.logoutTokens = append(s.logoutTokens, tok)
		s.mu.Unlock()
		writeEnvelope(w, map[string]any{"status": "ok"})
		return
	}

	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	tokenOK := s.live[tok] && !s.alwaysReject
	failStatus := s.failPaths[path]
	raw := s.rawBodies[path]
	s.mu.Unlock()
	if !tokenOK {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if failStatus != 0 {
		w.WriteHeader(failStatus)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		s.getCalls[path]++
		s.mu.Unlock()
		if raw != "" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(raw))
			return
		}
		payload, ok := stubPayload(path)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeEnvelope(w, map[string]any{"status": "ok", "data": map[string]any{"settings": payload}})
	case http.MethodPatch, http.MethodPut:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.writes = append(s.writes, recordedWrite{Method: r.Method, Path: path, Body: body})
		s.mu.Unlock()
		writeEnvelope(w, map[string]any{"status": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// stubPayload returns the canned settings object behind each endpoint. Only
// PHP is enabled among the web technologies; the others answer false.
func stubPayload(path string) (map[string]any, bool) {
	switch path {
	case "/api/v2/settings/general":
		return map[string]any{
			"hostName":     "web01.example.net",
			"contactEmail": "ops@example.net",
			"timeZone":     "Europe/Berlin",
			"autoUpdate":   true,
		}, true
	case "/api/v2/settings/security":
		return map[string]any{
			"minPasswordStrength": "medium",
			"sessionIdleMinutes":  15,
			"lockoutEnabled":      false,
			"lockoutAttempts":     3,
		}, true
	case "/api/v2/settings/notifications":
		return map[string]any{
			"enabled":  true,
			"smtpHost": "mail.example.net",
			"smtpPort": 587,
			"username": "notifier",
			"sender":   "panel@example.net",
			"useTLS":   true,
		}, true
	}
	if strings.HasPrefix(path, "/api/v2/settings/web/") {
		tech := strings.TrimPrefix(path, "/api/v2/settings/web/")
		return map[string]any{"enabled": tech == "php"}, true
	}
	return nil, false
}

func writeEnvelope(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
