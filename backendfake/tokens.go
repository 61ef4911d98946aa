package backendfake

import (
	"errors"
	"fmt"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errStaleToken = errors.New("access token predates the current epoch")

// issueAccessToken mints an RS256 access token for userID
func (s *Server) issueAccessToken(userID string) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"iss": s.issuer,
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTokenTTL).Unix(),
		"jti": uuid.NewString(),
		// bumped by ExpireAccessTokens
		"epoch": s.currentEpoch(),
	}
	signed, err := s.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}

// verifyAccessToken checks signature, issuer, expiry and epoch and returns the subject
func (s *Server) verifyAccessToken(raw string) (string, error) {
	parsed, err := jwtlib.Parse(raw, s.signer.GetVerificationKey,
		jwtlib.WithValidMethods([]string{s.signer.GetSigningMethod().Alg()}),
		jwtlib.WithIssuer(s.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(NowTimeFunc),
	)
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", errors.New("error extracting claims")
	}
	epoch, _ := claims["epoch"].(float64)
	if int64(epoch) != s.currentEpoch() {
		return "", errStaleToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}
