// internal/panel/client.go
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	jmes "github.com/jmespath/go-jmespath"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// StateStore is the persisted collaborator the update coordinator consults:
// the write-only SMTP password and the last-updater marker live outside this
// package. pkg/servers implements it.
type StateStore interface {
	NotifyPassword(ctx context.Context, serverID string) (string, error)
	SetNotifyPassword(ctx context.Context, serverID, password string) error
	LastUpdater(ctx context.Context, serverID string) (string, error)
	RecordUpdater(ctx context.Context, serverID, actor string) error
}

// Client synchronizes settings with panel servers. Construct one per process
// (or per test) and share it: the embedded SessionManager is what keeps
// concurrent callers from opening duplicate panel sessions.
type Client struct {
	log      *zap.SugaredLogger
	http     *http.Client
	catalog  Catalog
	sessions *SessionManager
	state    StateStore
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	catalog    Catalog
	tokenTTL   time.Duration
	timeout    time.Duration
	state      StateStore
}

// WithHTTPClient overrides the outbound HTTP client (tests mostly).
func WithHTTPClient(hc *http.Client) Option { return func(o *options) { o.httpClient = hc } }

// WithCatalog overrides the endpoint catalog.
func WithCatalog(c Catalog) Option { return func(o *options) { o.catalog = c } }

// WithTokenTTL overrides the local token cache TTL.
func WithTokenTTL(d time.Duration) Option { return func(o *options) { o.tokenTTL = d } }

// WithTimeout bounds every network call (auth, fetch, update, logout).
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithState wires the persisted sync-state collaborator.
func WithState(st StateStore) Option { return func(o *options) { o.state = st } }

func New(log *zap.SugaredLogger, opts ...Option) *Client {
	o := options{
		catalog:  DefaultCatalog(),
		tokenTTL: 15 * time.Minute,
		timeout:  15 * time.Second,
	}
	for _, fn := range opts {
		fn(&o)
	}
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   o.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		log:      log,
		http:     hc,
		catalog:  o.catalog,
		sessions: newSessionManager(log, hc, o.catalog, o.tokenTTL, o.timeout),
		state:    o.state,
	}
}

// Sessions exposes the manager for callers that need to invalidate a server's
// token out of band (e.g. after rotating its credentials).
func (c *Client) Sessions() *SessionManager { return c.sessions }

// execute issues one authenticated call and unwraps the envelope payload.
// A 401 invalidates the token, forces a fresh non-deduplicated exchange and
// retries the call exactly once; the retry ceiling is the explicit counter
// below, not recursion.
func (c *Client) execute(ctx context.Context, sess *session, method, path, selector string, body any) (any, error) {
	token, err := sess.ensure(ctx)
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		status, respBody, err := c.roundTrip(ctx, sess.acc, method, path, body, token)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			if attempt >= 1 {
				return nil, authFailed("panel rejected a freshly minted token on "+path, nil)
			}
			reauthRetries.Inc()
			if token, err = sess.refresh(ctx, token); err != nil {
				return nil, err
			}
			continue
		}
		if status < 200 || status > 299 {
			return nil, classifyStatus(status, path)
		}
		return unwrap(respBody, selector, path)
	}
}

func (c *Client) roundTrip(ctx context.Context, acc Access, method, path string, body any, token string) (int, []byte, error) {
	url := strings.TrimRight(acc.BaseURL, "/") + path
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, &Error{Kind: KindRemoteServerError, Status: http.StatusInternalServerError, Message: "encoding request body for " + path, Err: err}
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, nil, classifyTransport(err, path)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, classifyTransport(err, path)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	return resp.StatusCode, respBody, nil
}

// unwrap parses the response envelope and extracts the payload under the
// endpoint's selector. A missing payload field is a malformed response,
// handled like a remote server error.
func unwrap(body []byte, selector, endpoint string) (any, error) {
	var envelope any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, malformed(endpoint, err)
	}
	payload, err := jmes.Search(selector, envelope)
	if err != nil {
		return nil, malformed(endpoint, err)
	}
	if payload == nil {
		return nil, malformed(endpoint, nil)
	}
	return payload, nil
}
