// internal/panel/update.go
package panel

import (
	"context"
	"fmt"
	"net/http"
)

// Write acknowledgements carry no settings payload; the envelope's status
// field is the expected member.
const statusSelector = "status"

// UpdateRequest is a single-field settings change.
type UpdateRequest struct {
	Category Category
	Key      string
	Value    any
	Actor    string // who is writing; feeds the concurrent-modification warning
}

// UpdateResult carries the authoritative post-write state: the panel may
// silently coerce or reject fields, so the locally assumed value is never
// trusted.
type UpdateResult struct {
	Settings Settings          `json:"settings"`
	Failures []EndpointFailure `json:"failures,omitempty"`
	// ConcurrentModification warns (non-fatally) that someone else wrote last.
	ConcurrentModification bool `json:"concurrentModification"`
}

// UpdateField routes one changed key to the right endpoint, rewriting the
// full object for categories that demand it, then refetches everything. The
// write, the refetch and the final logout all share one panel session.
func (c *Client) UpdateField(ctx context.Context, acc Access, req UpdateRequest) (UpdateResult, error) {
	sess := c.sessions.open(acc)
	defer sess.close(ctx)

	var res UpdateResult
	if c.state != nil && req.Actor != "" {
		if last, err := c.state.LastUpdater(ctx, acc.ServerID); err == nil && last != "" && last != req.Actor {
			res.ConcurrentModification = true
			c.log.Warnw("settings last written by someone else", "server", acc.ServerID, "actor", req.Actor, "last", last)
		}
	}

	var err error
	switch req.Category {
	case CategoryGeneral, CategorySecurity:
		ep, _ := c.catalog.endpoint(string(req.Category))
		_, err = c.execute(ctx, sess, http.MethodPatch, ep.Path, statusSelector, map[string]any{req.Key: req.Value})
	case CategoryWebPublishing:
		tech, ok := webTechByKey[req.Key]
		if !ok {
			return res, fmt.Errorf("unknown web publishing key %q", req.Key)
		}
		ep, _ := c.catalog.endpoint("web/" + string(tech))
		_, err = c.execute(ctx, sess, http.MethodPatch, ep.Path, statusSelector, map[string]any{"enabled": req.Value})
	case CategoryEmail:
		err = c.rewriteEmail(ctx, sess, req)
	default:
		return res, fmt.Errorf("unknown settings category %q", req.Category)
	}
	if err != nil {
		return res, err
	}

	if c.state != nil && req.Actor != "" {
		if err := c.state.RecordUpdater(ctx, acc.ServerID, req.Actor); err != nil {
			c.log.Warnw("recording updater failed", "server", acc.ServerID, "err", err)
		}
	}

	res.Settings, res.Failures, err = c.fetchAll(ctx, sess)
	return res, err
}

// rewriteEmail implements the notification category's full-rewrite contract:
// fetch the current object, resolve the write-only SMTP password, merge the
// one changed key, and submit the complete object. A lone changed field is
// never sent alone for this category.
func (c *Client) rewriteEmail(ctx context.Context, sess *session, req UpdateRequest) error {
	ep, _ := c.catalog.endpoint("email")
	payload, err := c.execute(ctx, sess, http.MethodGet, ep.Path, ep.Selector, nil)
	if err != nil {
		return err
	}
	cur := DefaultSettings().Email
	if err := decodeInto(payload, &cur); err != nil {
		return malformed(ep.Name, err)
	}

	body := toMap(cur)
	if req.Key == "password" {
		body["password"] = req.Value
	} else {
		// Fetch responses never include the password; pull the persisted one
		// so the rewrite does not blank it.
		var stored string
		if c.state != nil {
			if stored, err = c.state.NotifyPassword(ctx, sess.acc.ServerID); err != nil {
				c.log.Warnw("no persisted notification password", "server", sess.acc.ServerID, "err", err)
				stored = ""
			}
		}
		body["password"] = stored
		body[req.Key] = req.Value
	}

	if _, err := c.execute(ctx, sess, http.MethodPut, ep.Path, statusSelector, body); err != nil {
		return err
	}
	if req.Key == "password" && c.state != nil {
		pw := fmt.Sprint(req.Value)
		if err := c.state.SetNotifyPassword(ctx, sess.acc.ServerID, pw); err != nil {
			c.log.Warnw("persisting notification password failed", "server", sess.acc.ServerID, "err", err)
		}
	}
	return nil
}
