package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// ErrInvalidRefreshToken is returned for unknown, expired or already rotated tokens
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

const defaultTokenLength = 32

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo        Repo
	expiry      time.Duration
	tokenLength int
}

// NewManager creates a new refresh token manager. A zero expiry means tokens
// never expire.
func NewManager(repo Repo, expiry time.Duration) *Manager {
	return &Manager{
		repo:        repo,
		expiry:      expiry,
		tokenLength: defaultTokenLength,
	}
}

// Create generates a new refresh token for userID, replacing any previous one
func (m *Manager) Create(userID string) (string, error) {
	if existing, err := m.repo.GetByUserID(userID); err == nil && existing != nil {
		if err := m.repo.Delete(existing.Token); err != nil {
			return "", fmt.Errorf("failed to delete existing refresh token: %w", err)
		}
	}

	tokenBytes := make([]byte, m.tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    NowTimeFunc(),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return tokenStr, nil
}

// Rotate validates token, invalidates it and issues a replacement. It returns
// the new token and the user it belongs to.
func (m *Manager) Rotate(token string) (newToken, userID string, err error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return "", "", ErrInvalidRefreshToken
	}
	if m.IsExpired(rt) {
		_ = m.repo.Delete(token)
		return "", "", ErrInvalidRefreshToken
	}
	newToken, err = m.Create(rt.UserID)
	if err != nil {
		return "", "", err
	}
	return newToken, rt.UserID, nil
}

// Revoke removes the refresh token held by userID, if any
func (m *Manager) Revoke(userID string) error {
	rt, err := m.repo.GetByUserID(userID)
	if err != nil {
		return nil
	}
	return m.repo.Delete(rt.Token)
}

// RevokeAll invalidates every outstanding refresh token
func (m *Manager) RevokeAll() error {
	return m.repo.DeleteAll()
}

// IsExpired checks if a refresh token has outlived the manager's expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	if m.expiry == 0 {
		return false
	}
	return NowTimeFunc().Sub(rt.Iat) > m.expiry
}
