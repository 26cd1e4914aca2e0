package panel

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeState is an in-memory StateStore for update tests.
type fakeState struct {
	mu        sync.Mutex
	notify    string
	notifyErr error
	last      string
	recorded  []string
	setNotify []string
}

func (f *fakeState) NotifyPassword(ctx context.Context, serverID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notify, f.notifyErr
}

func (f *fakeState) SetNotifyPassword(ctx context.Context, serverID, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setNotify = append(f.setNotify, password)
	f.notify = password
	return nil
}

func (f *fakeState) LastUpdater(ctx context.Context, serverID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, nil
}

func (f *fakeState) RecordUpdater(ctx context.Context, serverID, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, actor)
	f.last = actor
	return nil
}

func TestUpdateWebTechRoutesToTechnologyEndpoint(t *testing.T) {
	stub := newStubPanel(t)
	c, acc := stub.client()

	res, err := c.UpdateField(context.Background(), acc, UpdateRequest{
		Category: CategoryWebPublishing, Key: "phpEnabled", Value: true,
	})
	require.NoError(t, err)

	writes := stub.recordedWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, http.MethodPatch, writes[0].Method)
	assert.Equal(t, "/api/v2/settings/web/php", writes[0].Path)
	assert.Equal(t, map[string]any{"enabled": true}, writes[0].Body)

	// The write is followed by a full refetch on the same session.
	assert.Equal(t, len(DefaultCatalog().Endpoints), stub.totalGets())
	assert.True(t, res.Settings.WebPublishing.PHP)
	auth, logout := stub.counts()
	assert.Equal(t, 1, auth)
	assert.Equal(t, 1, logout)
}

func TestUpdateGeneralPatchesSingleKey(t *testing.T) {
	stub := newStubPanel(t)
	c, acc := stub.client()

	_, err := c.UpdateField(context.Background(), acc, UpdateRequest{
		Category: CategoryGeneral, Key: "timeZone", Value: "UTC",
	})
	require.NoError(t, err)

	writes := stub.recordedWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, http.MethodPatch, writes[0].Method)
	assert.Equal(t, "/api/v2/settings/general", writes[0].Path)
	assert.Equal(t, map[string]any{"timeZone": "UTC"}, writes[0].Body)
}

func TestUpdateEmailRewritesFullObject(t *testing.T) {
	stub := newStubPanel(t)
	state := &fakeState{notify: "s3cret"}
	c, acc := stub.client(WithState(state))

	_, err := c.UpdateField(context.Background(), acc, UpdateRequest{
		Category: CategoryEmail, Key: "smtpHost", Value: "smtp2.example.net",
	})
	require.NoError(t, err)

	writes := stub.recordedWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, http.MethodPut, writes[0].Method)
	assert.Equal(t, "/api/v2/settings/notifications", writes[0].Path)

	// Never a lone field: the complete object, with the changed key merged in
	// and the persisted password restored.
	assert.Equal(t, map[string]any{
		"enabled":  true,
		"smtpHost": "smtp2.example.net",
		"smtpPort": float64(587),
		"username": "notifier",
		"password": "s3cret",
		"sender":   "panel@example.net",
		"useTLS":   true,
	}, writes[0].Body)
	assert.Empty(t, state.setNotify, "a non-password change must not rewrite the stored password")
}

func TestUpdateEmailPasswordUsesCallerValueAndPersists(t *testing.T) {
	stub := newStubPanel(t)
	state := &fakeState{notify: "old-secret"}
	c, acc := stub.client(WithState(state))

	_, err := c.UpdateField(context.Background(), acc, UpdateRequest{
		Category: CategoryEmail, Key: "password", Value: "new-secret",
	})
	require.NoError(t, err)

	writes := stub.recordedWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, "new-secret", writes[0].Body["password"])
	assert.Equal(t, "mail.example.net", writes[0].Body["smtpHost"]) // unchanged fields still sent
	assert.Equal(t, []string{"new-secret"}, state.setNotify)
}

func TestUpdateEmailWithoutStoredPasswordSendsEmpty(t *testing.T) {
	stub := newStubPanel(t)
	state := &fakeState{notifyErr: errors.New("no row")}
	c, acc := stub.client(WithState(state))

	_, err := c.UpdateField(context.Background(), acc, UpdateRequest{
		Category: CategoryEmail, Key: "useTLS", Value: false,
	})
	require.NoError(t, err)

	writes := stub.recordedWrites()
	require.Len(t, writes, 1)
	pw, present := writes[0].Body["password"]
	assert.True(t, present, "the password field is part of every rewrite")
	assert.Equal(t, "", pw)
}

func TestUpdateUnknownWebKeyRejectedBeforeAnyCall(t *testing.T) {
	stub := newStubPanel(t)
	c, acc := stub.client()

	_, err := c.UpdateField(context.Background(), acc, UpdateRequest{
		Category: CategoryWebPublishing, Key: "rubyEnabled", Value: true,
	})
	require.Error(t, err)
	assert.Empty(t, KindOf(err), "a routing problem is not a remote failure")

	auth, logout := stub.counts()
	assert.Zero(t, auth)
	assert.Zero(t, logout)
	assert.Empty(t, stub.recordedWrites())
}

func TestUpdateUnknownCategoryRejected(t *testing.T) {
	stub := newStubPanel(t)
	c, acc := stub.client()

	_, err := c.UpdateField(context.Background(), acc, UpdateRequest{
		Category: Category("dns"), Key: "x", Value: 1,
	})
	require.Error(t, err)
	assert.Empty(t, KindOf(err))
}

func TestUpdateWriteFailureSkipsRefetch(t *testing.T) {
	stub := newStubPanel(t)
	c, acc := stub.client()
	stub.failPaths["/api/v2/settings/security"] = http.StatusInternalServerError

	_, err := c.UpdateField(context.Background(), acc, UpdateRequest{
		Category: CategorySecurity, Key: "lockoutEnabled", Value: true,
	})
	require.Error(t, err)
	assert.Equal(t, KindRemoteServerError, KindOf(err))

	assert.Zero(t, stub.totalGets(), "a failed write must not pretend with a refetch")
	_, logout := stub.counts()
	assert.Equal(t, 1, logout, "the session still ends")
}

func TestUpdateConcurrentModificationWarning(t *testing.T) {
	stub := newStubPanel(t)
	state := &fakeState{last: "alice"}
	c, acc := stub.client(WithState(state))

	res, err := c.UpdateField(context.Background(), acc, UpdateRequest{
		Category: CategoryGeneral, Key: "hostName", Value: "web02", Actor: "bob",
	})
	require.NoError(t, err)
	assert.True(t, res.ConcurrentModification)
	assert.Equal(t, []string{"bob"}, state.recorded)

	// Same actor again: no warning.
	res, err = c.UpdateField(context.Background(), acc, UpdateRequest{
		Category: CategoryGeneral, Key: "hostName", Value: "web03", Actor: "bob",
	})
	require.NoError(t, err)
	assert.False(t, res.ConcurrentModification)
}
