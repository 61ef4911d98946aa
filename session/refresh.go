package session

import (
	"context"

	"github.com/jrsteele09/go-session-client/auth"
	"github.com/jrsteele09/go-session-client/gateway"
	"github.com/jrsteele09/go-session-client/token"
)

// Refresh exchanges the refresh token for a new pair. Concurrent callers
// share a single exchange. Any failure ends the session as Logout would.
func (m *Manager) Refresh(ctx context.Context) (Snapshot, error) {
	_, err := m.refresh(ctx, "")
	return m.Snapshot(), err
}

// refresh returns a fresh pair. When staleAccess is set and the session already
// holds a different access token, that token is returned without an exchange:
// another caller refreshed in the meantime.
func (m *Manager) refresh(ctx context.Context, staleAccess string) (token.Pair, error) {
	m.mu.Lock()
	a, ok := m.authenticatedLocked()
	gen := m.generation
	m.mu.Unlock()

	if !ok || a.Tokens.RefreshToken == "" {
		return token.Pair{}, auth.ErrNotAuthenticated
	}
	if staleAccess != "" && a.Tokens.AccessToken != staleAccess {
		return a.Tokens, nil
	}

	ch := m.refreshGroup.DoChan(a.Tokens.RefreshToken, func() (any, error) {
		return m.exchange(gen, a.Tokens.RefreshToken)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return token.Pair{}, res.Err
		}
		return res.Val.(token.Pair), nil
	case <-ctx.Done():
		return token.Pair{}, ctx.Err()
	}
}

// exchange performs the refresh call. It runs detached from any one caller's
// context because its result is shared, but Logout still cancels it.
func (m *Manager) exchange(gen uint64, refreshToken string) (token.Pair, error) {
	opCtx, _, done := m.track(context.Background())
	defer done()

	m.mu.Lock()
	a, ok := m.authenticatedLocked()
	current := gen == m.generation
	m.mu.Unlock()
	if !current {
		return token.Pair{}, auth.ErrSuperseded
	}
	// an earlier flight already rotated this refresh token
	if ok && a.Tokens.RefreshToken != refreshToken {
		return a.Tokens, nil
	}

	pair, err := m.gw.RefreshToken(opCtx, refreshToken)
	if err == nil {
		err = m.checkTokens(opCtx, pair)
	}
	if err != nil {
		return token.Pair{}, m.expire(gen, err)
	}

	err = m.commit(opCtx, gen, func(ctx context.Context) error {
		a, ok := m.authenticatedLocked()
		if !ok {
			return auth.ErrSuperseded
		}
		if err := m.store.SaveTokens(ctx, pair); err != nil {
			m.logger.Warn().Err(err).Msg("could not persist refreshed tokens")
		}
		m.replaceAuthenticatedLocked(Authenticated{Tokens: pair, User: a.User})
		return nil
	})
	if err != nil {
		return token.Pair{}, err
	}
	m.logger.Debug().Msg("tokens refreshed")
	return pair, nil
}

// expire ends the session after a failed refresh
func (m *Manager) expire(gen uint64, cause error) error {
	m.persistMu.Lock()
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.persistMu.Unlock()
		return auth.ErrSuperseded
	}
	m.supersedeLocked()
	m.state = Unauthenticated{}
	m.lastErr = MsgSessionExpired
	m.publishLocked()
	m.mu.Unlock()

	clearErr := m.store.Clear(context.Background())
	m.persistMu.Unlock()

	if clearErr != nil {
		m.logger.Warn().Err(clearErr).Msg("could not clear stored credentials")
	}
	m.logFailure(auth.ErrRefreshFailed, cause)
	m.notifier.Notify(LevelError, MsgSessionExpired)
	return &OpError{Op: auth.ErrRefreshFailed, Err: cause}
}

// withAccessToken calls fn with the current access token. A 401 triggers one
// refresh and one retry.
func (m *Manager) withAccessToken(ctx context.Context, fn func(ctx context.Context, accessToken string) error) error {
	m.mu.Lock()
	a, ok := m.authenticatedLocked()
	m.mu.Unlock()
	if !ok {
		return auth.ErrNotAuthenticated
	}

	err := fn(ctx, a.Tokens.AccessToken)
	if !gateway.IsUnauthorized(err) {
		return err
	}

	pair, err := m.refresh(ctx, a.Tokens.AccessToken)
	if err != nil {
		return err
	}
	return fn(ctx, pair.AccessToken)
}
