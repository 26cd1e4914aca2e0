// internal/panel/fetch.go
package panel

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

// EndpointFailure reports one endpoint that could not be fetched during an
// aggregate operation. It never implies the whole operation failed.
type EndpointFailure struct {
	Endpoint string `json:"endpoint"`
	Reason   string `json:"reason"`
}

// FetchAll fans out all catalog endpoints concurrently and always returns a
// total Settings object: fetched values where an endpoint answered, the
// documented defaults where it did not. The failure list makes partial
// fetches visible without blocking the result. Only when every endpoint
// failed does it return an aggregate error wrapping the first cause.
//
// The whole call consumes exactly one panel session: one token obtained (or
// reused from cache) and exactly one logout on the way out, whatever happens
// in between.
func (c *Client) FetchAll(ctx context.Context, acc Access) (Settings, []EndpointFailure, error) {
	sess := c.sessions.open(acc)
	defer sess.close(ctx)
	return c.fetchAll(ctx, sess)
}

// fetchAll is the session-scoped body of FetchAll, shared with the update
// coordinator so an update and its refetch ride the same session.
func (c *Client) fetchAll(ctx context.Context, sess *session) (Settings, []EndpointFailure, error) {
	type outcome struct {
		payload any
		err     error
	}
	results := make([]outcome, len(c.catalog.Endpoints))
	var wg sync.WaitGroup
	for i, ep := range c.catalog.Endpoints {
		wg.Add(1)
		go func(i int, ep Endpoint) {
			defer wg.Done()
			payload, err := c.execute(ctx, sess, http.MethodGet, ep.Path, ep.Selector, nil)
			results[i] = outcome{payload: payload, err: err}
		}(i, ep)
	}
	// No fail-fast: every endpoint settles before we assemble anything.
	wg.Wait()

	settings := DefaultSettings()
	var failures []EndpointFailure
	var firstErr error
	for i, ep := range c.catalog.Endpoints {
		res := results[i]
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			endpointFailures.WithLabelValues(ep.Name).Inc()
			c.log.Warnw("settings endpoint fetch failed", "server", sess.acc.ServerID, "endpoint", ep.Name, "err", res.err)
			failures = append(failures, EndpointFailure{Endpoint: ep.Name, Reason: res.err.Error()})
			continue
		}
		if err := applyFetched(&settings, ep.Name, res.payload); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			endpointFailures.WithLabelValues(ep.Name).Inc()
			failures = append(failures, EndpointFailure{Endpoint: ep.Name, Reason: err.Error()})
		}
	}
	if len(failures) == len(c.catalog.Endpoints) {
		return settings, failures, aggregateFailure(firstErr)
	}
	return settings, failures, nil
}

// applyFetched decodes one endpoint's payload onto its slice of the total
// settings object.
func applyFetched(s *Settings, name string, payload any) error {
	switch name {
	case "general":
		return decodeInto(payload, &s.General)
	case "security":
		return decodeInto(payload, &s.Security)
	case "email":
		return decodeInto(payload, &s.Email)
	default:
		tech := WebTech(strings.TrimPrefix(name, "web/"))
		var flag struct {
			Enabled bool `json:"enabled"`
		}
		if err := decodeInto(payload, &flag); err != nil {
			return err
		}
		s.WebPublishing.set(tech, flag.Enabled)
		return nil
	}
}
