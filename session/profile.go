package session

import (
	"context"
	"errors"
	"strings"

	"github.com/jrsteele09/go-session-client/auth"
	"github.com/jrsteele09/go-session-client/internal/utils"
	"github.com/jrsteele09/go-session-client/users"
	pkgerrors "github.com/pkg/errors"
)

// FetchProfile re-reads the user's profile and replaces it wholesale. A
// failure is recorded in Snapshot.Error but leaves the session intact, except
// when the token cannot be refreshed, which ends it.
func (m *Manager) FetchProfile(ctx context.Context) (Snapshot, error) {
	opCtx, gen, done := m.track(ctx)
	defer done()
	m.setBusy(1)
	defer m.setBusy(-1)

	var user *users.User
	err := m.withAccessToken(opCtx, func(ctx context.Context, accessToken string) error {
		u, err := m.gw.FetchMe(ctx, accessToken)
		user = u
		return err
	})
	if err != nil {
		return m.requestFailed(gen, "fetch profile", err)
	}

	err = m.commit(opCtx, gen, func(ctx context.Context) error {
		a, ok := m.authenticatedLocked()
		if !ok {
			return auth.ErrSuperseded
		}
		if err := m.store.SaveUser(ctx, user); err != nil {
			m.logger.Warn().Err(err).Msg("could not persist profile")
		}
		m.replaceAuthenticatedLocked(Authenticated{Tokens: a.Tokens, User: user})
		m.lastErr = ""
		return nil
	})
	return m.Snapshot(), err
}

// SaveBusiness adds a business to the user's saved list and reloads the profile
func (m *Manager) SaveBusiness(ctx context.Context, businessID string) (Snapshot, error) {
	return m.changeSaved(ctx, "save business", businessID, MsgBusinessSaved, m.gw.SaveBusiness)
}

// RemoveBusiness drops a business from the user's saved list and reloads the profile
func (m *Manager) RemoveBusiness(ctx context.Context, businessID string) (Snapshot, error) {
	return m.changeSaved(ctx, "remove business", businessID, MsgBusinessRemoved, m.gw.RemoveBusiness)
}

func (m *Manager) changeSaved(ctx context.Context, op, businessID, okMsg string,
	call func(ctx context.Context, accessToken, businessID string) (string, error)) (Snapshot, error) {
	if strings.TrimSpace(businessID) == "" {
		return m.reject(auth.ErrInvalidCredentials, &auth.ValidationError{Field: "businessId", Message: "business id is required"})
	}

	opCtx, gen, done := m.track(ctx)
	defer done()
	m.setBusy(1)
	defer m.setBusy(-1)

	var msg string
	err := m.withAccessToken(opCtx, func(ctx context.Context, accessToken string) error {
		var err error
		msg, err = call(ctx, accessToken, businessID)
		return err
	})
	if err != nil {
		return m.requestFailed(gen, op, err)
	}

	m.notifier.Notify(LevelSuccess, utils.FirstNonEmpty(msg, okMsg))
	return m.FetchProfile(ctx)
}

// requestFailed records a non-fatal failure of an authenticated request
func (m *Manager) requestFailed(gen uint64, op string, err error) (Snapshot, error) {
	if errors.Is(err, auth.ErrRefreshFailed) || errors.Is(err, auth.ErrNotAuthenticated) || errors.Is(err, auth.ErrSuperseded) {
		return m.Snapshot(), err
	}
	if !m.isCurrent(gen) {
		return m.Snapshot(), auth.ErrSuperseded
	}

	m.logger.Warn().Err(err).Str("op", op).Msg("request failed")
	m.fail(err)
	return m.Snapshot(), pkgerrors.Wrap(err, op)
}
