package session_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-client/auth"
	"github.com/jrsteele09/go-session-client/backendfake"
	"github.com/jrsteele09/go-session-client/gateway"
	"github.com/stretchr/testify/require"
)

func TestManager_TokenSource(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.TokenSource(context.Background()).Token()
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)

	snap := h.login(t)
	tok, err := h.manager.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, snap.AccessToken, tok.AccessToken)
	require.Equal(t, snap.RefreshToken, tok.RefreshToken)
	require.True(t, tok.Valid())
	require.Zero(t, h.fake.RefreshCalls())
}

func TestManager_TokenSourceRefreshesExpiredToken(t *testing.T) {
	h := newHarness(t)

	backendfake.NowTimeFunc = func() time.Time { return time.Now().Add(-time.Hour) }
	t.Cleanup(func() { backendfake.NowTimeFunc = time.Now })
	snap := h.login(t)
	backendfake.NowTimeFunc = time.Now

	tok, err := h.manager.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.NotEqual(t, snap.AccessToken, tok.AccessToken)
	require.True(t, tok.Valid())
	require.EqualValues(t, 1, h.fake.RefreshCalls())
	require.Equal(t, tok.AccessToken, h.manager.Snapshot().AccessToken)
}

func TestManager_HTTPClient(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	resp, err := h.manager.HTTPClient(context.Background()).Get(h.baseURL + gateway.PathFetchMe)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
