// Package credentials persists the session's token pair and user profile so a
// session survives process restarts.
package credentials

import (
	"context"
	"encoding/json"

	"github.com/jrsteele09/go-session-client/auth"
	"github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/storage"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/jrsteele09/go-session-client/users"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Storage keys. They match the keys the mobile client writes so a store can be
// shared with it.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// Snapshot is what Load found. Any field may be empty.
type Snapshot struct {
	Tokens token.Pair
	User   *users.User
}

// Empty reports whether nothing was persisted
func (s Snapshot) Empty() bool {
	return s.Tokens.AccessToken == "" && s.Tokens.RefreshToken == "" && s.User == nil
}

// Store reads and writes credentials through a storage.Storage. Writes are
// independent per key; there is no atomicity across keys.
type Store struct {
	storage storage.Storage
	logger  zerolog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for recoverable problems such as a corrupt profile
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a credential store over st
func NewStore(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage: st,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "credentials").Logger()
	return s
}

// Save persists tokens and profile
func (s *Store) Save(ctx context.Context, pair token.Pair, user *users.User) error {
	if err := s.SaveTokens(ctx, pair); err != nil {
		return err
	}
	return s.SaveUser(ctx, user)
}

// SaveTokens persists the token pair only
func (s *Store) SaveTokens(ctx context.Context, pair token.Pair) error {
	if err := s.set(ctx, KeyAccessToken, pair.AccessToken); err != nil {
		return err
	}
	return s.set(ctx, KeyRefreshToken, pair.RefreshToken)
}

// SaveUser persists the profile only. A nil user removes the stored profile.
func (s *Store) SaveUser(ctx context.Context, user *users.User) error {
	if user == nil {
		return s.remove(ctx, KeyUser)
	}
	b, err := json.Marshal(user)
	if err != nil {
		return pkgerrors.Wrap(err, "encode user")
	}
	return s.set(ctx, KeyUser, string(b))
}

// Load reads whatever was persisted. Missing keys are not an error, and a
// profile that cannot be decoded is logged and reported as missing.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	access, _, err := s.storage.GetItem(ctx, KeyAccessToken)
	if err != nil {
		return Snapshot{}, storageFailure(err, "read "+KeyAccessToken)
	}
	refresh, _, err := s.storage.GetItem(ctx, KeyRefreshToken)
	if err != nil {
		return Snapshot{}, storageFailure(err, "read "+KeyRefreshToken)
	}
	snap.Tokens = token.Pair{AccessToken: access, RefreshToken: refresh}

	raw, ok, err := s.storage.GetItem(ctx, KeyUser)
	if err != nil {
		return Snapshot{}, storageFailure(err, "read "+KeyUser)
	}
	if ok && raw != "" {
		var u users.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			s.logger.Warn().Err(err).Msg("discarding unreadable stored profile")
		} else {
			snap.User = &u
		}
	}

	return snap, nil
}

// Clear removes every credential key. It is idempotent and tries all keys even
// when one removal fails.
func (s *Store) Clear(ctx context.Context) error {
	var errs []error
	for _, k := range allKeys {
		if err := s.remove(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) set(ctx context.Context, key, value string) error {
	if err := s.storage.SetItem(ctx, key, value); err != nil {
		return storageFailure(err, "write "+key)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, key string) error {
	if err := s.storage.RemoveItem(ctx, key); err != nil {
		return storageFailure(err, "remove "+key)
	}
	return nil
}

func storageFailure(err error, op string) error {
	return errors.Wrapf(pkgerrors.Wrap(err, op), "%w", auth.ErrStorageFailure)
}
