package panel

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteRetriesOnceAfterStaleToken(t *testing.T) {
	stub := newStubPanel(t)
	c, acc := stub.client()

	// Warm the cache, then kill the token server-side so the next call 401s.
	_, err := c.Sessions().EnsureToken(context.Background(), acc)
	require.NoError(t, err)
	stub.expireTokens()

	sess := c.sessions.open(acc)
	defer sess.close(context.Background())
	payload, err := c.execute(context.Background(), sess, http.MethodGet, "/api/v2/settings/general", "data.settings", nil)
	require.NoError(t, err)
	assert.NotNil(t, payload)

	auth, _ := stub.counts()
	assert.Equal(t, 2, auth, "one warm exchange plus one forced re-exchange")
}

func TestExecuteSecondConsecutive401IsFatal(t *testing.T) {
	stub := newStubPanel(t)
	c, acc := stub.client()
	stub.alwaysReject = true

	sess := c.sessions.open(acc)
	defer sess.close(context.Background())
	_, err := c.execute(context.Background(), sess, http.MethodGet, "/api/v2/settings/general", "data.settings", nil)
	require.Error(t, err)
	assert.Equal(t, KindAuthenticationFailed, KindOf(err))

	auth, _ := stub.counts()
	assert.Equal(t, 2, auth, "exactly one retry, never a loop")
}

func TestExecuteClassifiesStatuses(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
		relay  int
	}{
		{http.StatusForbidden, KindInsufficientPrivileges, http.StatusForbidden},
		{http.StatusNotFound, KindEndpointUnavailable, http.StatusNotFound},
		{http.StatusInternalServerError, KindRemoteServerError, http.StatusBadGateway},
		{http.StatusServiceUnavailable, KindRemoteServerError, http.StatusBadGateway},
	}
	for _, tc := range cases {
		stub := newStubPanel(t)
		c, acc := stub.client()
		stub.failPaths["/api/v2/settings/security"] = tc.status

		sess := c.sessions.open(acc)
		_, err := c.execute(context.Background(), sess, http.MethodGet, "/api/v2/settings/security", "data.settings", nil)
		sess.close(context.Background())
		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.kind, KindOf(err))
		assert.Equal(t, tc.relay, RelayStatus(err))
	}
}

func TestExecuteRejectsEnvelopeWithoutPayload(t *testing.T) {
	stub := newStubPanel(t)
	c, acc := stub.client()
	stub.rawBodies["/api/v2/settings/general"] = `{"status":"ok","data":{}}`

	sess := c.sessions.open(acc)
	defer sess.close(context.Background())
	_, err := c.execute(context.Background(), sess, http.MethodGet, "/api/v2/settings/general", "data.settings", nil)
	require.Error(t, err)
	assert.Equal(t, KindMalformedResponse, KindOf(err))
}

func TestExecuteRejectsNonJSONBody(t *testing.T) {
	stub := newStubPanel(t)
	c, acc := stub.client()
	stub.rawBodies["/api/v2/settings/general"] = `<html>maintenance</html>`

	sess := c.sessions.open(acc)
	defer sess.close(context.Background())
	_, err := c.execute(context.Background(), sess, http.MethodGet, "/api/v2/settings/general", "data.settings", nil)
	require.Error(t, err)
	assert.Equal(t, KindMalformedResponse, KindOf(err))
}

func TestConnectionFailureClassification(t *testing.T) {
	stub := newStubPanel(t)
	c, acc := stub.client()
	stub.srv.Close()

	_, err := c.Sessions().EnsureToken(context.Background(), acc)
	require.Error(t, err)
	// The exchange itself failed, so the outer classification is auth; the
	// transport cause stays reachable underneath.
	assert.Equal(t, KindAuthenticationFailed, KindOf(err))
}
