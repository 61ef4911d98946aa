package token

import (
	"strings"

	"golang.org/x/oauth2"
)

// Pair is the access/refresh credential pair issued by the backend. Both are
// opaque bearer strings; their expiry is owned by the server.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Complete reports whether both tokens are present
func (p Pair) Complete() bool {
	return strings.TrimSpace(p.AccessToken) != "" && strings.TrimSpace(p.RefreshToken) != ""
}

// OAuth2 converts the pair to an oauth2.Token. When the access token is a JWT
// carrying exp, Expiry is set so oauth2's Valid() can detect staleness; for
// opaque tokens Expiry stays zero and the token never expires client-side.
func (p Pair) OAuth2() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
	if claims, err := Inspect(p.AccessToken); err == nil {
		t.Expiry = claims.ExpiresAt
	}
	return t
}

// FromOAuth2 converts back from an oauth2.Token
func FromOAuth2(t *oauth2.Token) Pair {
	if t == nil {
		return Pair{}
	}
	return Pair{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
}
