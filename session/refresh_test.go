package session_test

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-client/auth"
	"github.com/jrsteele09/go-session-client/backendfake"
	"github.com/jrsteele09/go-session-client/session"
	"github.com/jrsteele09/go-session-client/users"
	"github.com/stretchr/testify/require"
)

func TestManager_RefreshRotatesTokens(t *testing.T) {
	h := newHarness(t)
	before := h.login(t)

	snap, err := h.manager.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, snap.IsAuthenticated)
	require.NotEqual(t, before.AccessToken, snap.AccessToken)
	require.NotEqual(t, before.RefreshToken, snap.RefreshToken)
	require.Equal(t, before.User.ID, snap.User.ID)
	require.EqualValues(t, 1, h.fake.RefreshCalls())

	stored := h.stored(t)
	require.Equal(t, snap.AccessToken, stored.Tokens.AccessToken)
	require.Equal(t, snap.RefreshToken, stored.Tokens.RefreshToken)
}

func TestManager_RefreshRejectedEndsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	require.NoError(t, h.fake.RevokeRefreshTokens())

	snap, err := h.manager.Refresh(context.Background())
	require.ErrorIs(t, err, auth.ErrRefreshFailed)
	require.ErrorIs(t, err, auth.ErrServerRejection)

	require.Equal(t, session.StatusUnauthenticated, snap.Status)
	require.False(t, snap.IsAuthenticated)
	require.Empty(t, snap.AccessToken)
	require.Empty(t, snap.RefreshToken)
	require.Nil(t, snap.User)
	require.Equal(t, session.MsgSessionExpired, snap.Error)
	require.True(t, h.stored(t).Empty())
	require.Equal(t, note{Level: session.LevelError, Message: session.MsgSessionExpired}, h.notes.last())
}

func TestManager_RefreshRequiresSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.Refresh(context.Background())
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)
	require.Zero(t, h.fake.RefreshCalls())
}

func TestManager_LogoutDuringRefresh(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	entered := make(chan struct{})
	var once sync.Once
	h.fake.SetRefreshHook(func(r *http.Request) bool {
		once.Do(func() { close(entered) })
		<-r.Context().Done()
		return false
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := h.manager.Refresh(context.Background())
		errCh <- err
	}()

	<-entered
	require.NoError(t, h.manager.Logout(context.Background()))

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, auth.ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not return after logout")
	}

	snap := h.manager.Snapshot()
	require.Equal(t, session.StatusUnauthenticated, snap.Status)
	require.Empty(t, snap.AccessToken)
	require.Empty(t, snap.Error)
	require.True(t, h.stored(t).Empty())
	require.Equal(t, session.MsgLoggedOut, h.notes.last().Message)
}

func TestManager_ConcurrentRefreshesShareOneExchange(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.fake.ExpireAccessTokens()

	release := make(chan struct{})
	h.fake.SetRefreshHook(func(r *http.Request) bool {
		<-release
		return true
	})

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.manager.FetchProfile(context.Background())
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return h.fake.RefreshCalls() == 1 }, 5*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, h.fake.RefreshCalls())
	require.True(t, h.manager.Snapshot().IsAuthenticated)
}

func TestManager_RefreshCallerCancel(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	release := make(chan struct{})
	h.fake.SetRefreshHook(func(r *http.Request) bool {
		<-release
		return true
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := h.manager.Refresh(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, h.manager.Snapshot().IsAuthenticated)
}

func TestManager_AuthenticatedCallsDuringRelogin(t *testing.T) {
	var gate atomic.Bool
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	h := newWrappedHarness(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == backendfake.RouteLogin && gate.Load() {
				entered <- struct{}{}
				<-release
			}
			next.ServeHTTP(w, r)
		})
	})
	before := h.login(t)

	releaseLogin := sync.OnceFunc(func() { close(release) })
	defer releaseLogin()
	gate.Store(true)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.manager.Login(context.Background(), users.LoginCredentials{Email: testEmail, Password: "wrong"})
		errCh <- err
	}()
	<-entered

	snap := h.manager.Snapshot()
	require.True(t, snap.Loading)
	require.True(t, snap.IsAuthenticated)

	snap, err := h.manager.FetchProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, testEmail, snap.User.Email)

	snap, err = h.manager.Refresh(context.Background())
	require.NoError(t, err)
	refreshed := snap.AccessToken
	require.NotEqual(t, before.AccessToken, refreshed)

	releaseLogin()
	require.ErrorIs(t, <-errCh, auth.ErrLoginFailed)

	snap = h.manager.Snapshot()
	require.True(t, snap.IsAuthenticated)
	require.False(t, snap.Loading)
	require.Equal(t, refreshed, snap.AccessToken)
	require.Equal(t, backendfake.MsgBadCredentials, snap.Error)
	require.Equal(t, refreshed, h.stored(t).Tokens.AccessToken)
}
