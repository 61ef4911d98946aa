package session

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-session-client/auth"
	"github.com/jrsteele09/go-session-client/token"
	"golang.org/x/oauth2"
)

// TokenSource exposes the session's access token as an oauth2.TokenSource.
// When the access token is a JWT whose exp has passed, it is refreshed before
// being returned. Opaque tokens are handed out as they are.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, m: m}
}

// HTTPClient returns a client that sends the session's access token as a
// Bearer token on every request.
func (m *Manager) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, m.TokenSource(ctx))
}

type sessionTokenSource struct {
	ctx context.Context
	m   *Manager
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	snap := s.m.Snapshot()
	if !snap.IsAuthenticated {
		return nil, auth.ErrNotAuthenticated
	}

	t := token.Pair{AccessToken: snap.AccessToken, RefreshToken: snap.RefreshToken}.OAuth2()
	if t.Valid() {
		return t, nil
	}

	pair, err := s.m.refresh(s.ctx, snap.AccessToken)
	if err != nil {
		return nil, err
	}
	return pair.OAuth2(), nil
}
