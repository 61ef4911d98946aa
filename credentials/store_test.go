package credentials_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/go-session-client/auth"
	"github.com/jrsteele09/go-session-client/credentials"
	"github.com/jrsteele09/go-session-client/storage/filestore"
	"github.com/jrsteele09/go-session-client/storage/memstore"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/jrsteele09/go-session-client/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var errDisk = errors.New("disk unavailable")

// failingStorage fails every operation on the keys listed in failOn
type failingStorage struct {
	*memstore.Store
	failOn map[string]bool
}

func (f *failingStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	if f.failOn[key] {
		return "", false, errDisk
	}
	return f.Store.GetItem(ctx, key)
}

func (f *failingStorage) SetItem(ctx context.Context, key, value string) error {
	if f.failOn[key] {
		return errDisk
	}
	return f.Store.SetItem(ctx, key, value)
}

func (f *failingStorage) RemoveItem(ctx context.Context, key string) error {
	if f.failOn[key] {
		return errDisk
	}
	return f.Store.RemoveItem(ctx, key)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := credentials.NewStore(memstore.New())

	pair := token.Pair{AccessToken: "AT1", RefreshToken: "RT1"}
	user := &users.User{ID: "u1", Name: "A", Email: "a@b.com", Role: users.RoleUser}
	require.NoError(t, s.Save(ctx, pair, user))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, pair, snap.Tokens)
	require.Equal(t, user, snap.User)
	require.False(t, snap.Empty())
}

func TestStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/session.json"

	fs, err := filestore.New(path)
	require.NoError(t, err)
	require.NoError(t, credentials.NewStore(fs).Save(ctx, token.Pair{AccessToken: "AT1", RefreshToken: "RT1"}, &users.User{ID: "u1"}))

	reopened, err := filestore.New(path)
	require.NoError(t, err)
	snap, err := credentials.NewStore(reopened).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "AT1", snap.Tokens.AccessToken)
	require.Equal(t, "u1", snap.User.ID)
}

func TestStore_LoadEmpty(t *testing.T) {
	snap, err := credentials.NewStore(memstore.New()).Load(context.Background())
	require.NoError(t, err)
	require.True(t, snap.Empty())
	require.Nil(t, snap.User)
}

func TestStore_ClearThenLoad(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	s := credentials.NewStore(mem)

	require.NoError(t, s.Save(ctx, token.Pair{AccessToken: "AT1", RefreshToken: "RT1"}, &users.User{ID: "u1"}))
	require.NoError(t, mem.SetItem(ctx, "searchHistory", "[]"))

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, snap.Empty())

	v, ok, err := mem.GetItem(ctx, "searchHistory")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[]", v)
}

func TestStore_SaveTokensKeepsUser(t *testing.T) {
	ctx := context.Background()
	s := credentials.NewStore(memstore.New())

	require.NoError(t, s.Save(ctx, token.Pair{AccessToken: "AT1", RefreshToken: "RT1"}, &users.User{ID: "u1"}))
	require.NoError(t, s.SaveTokens(ctx, token.Pair{AccessToken: "AT2", RefreshToken: "RT2"}))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, token.Pair{AccessToken: "AT2", RefreshToken: "RT2"}, snap.Tokens)
	require.Equal(t, "u1", snap.User.ID)

	require.NoError(t, s.SaveUser(ctx, nil))
	snap, err = s.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, snap.User)
	require.Equal(t, "AT2", snap.Tokens.AccessToken)
}

func TestStore_CorruptUserTreatedAsMissing(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	var logs bytes.Buffer
	s := credentials.NewStore(mem, credentials.WithLogger(zerolog.New(&logs)))

	require.NoError(t, mem.SetItem(ctx, credentials.KeyAccessToken, "AT1"))
	require.NoError(t, mem.SetItem(ctx, credentials.KeyUser, "{not json"))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "AT1", snap.Tokens.AccessToken)
	require.Nil(t, snap.User)
	require.Contains(t, logs.String(), "unreadable stored profile")
}

func TestStore_StorageFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("load", func(t *testing.T) {
		s := credentials.NewStore(&failingStorage{Store: memstore.New(), failOn: map[string]bool{credentials.KeyRefreshToken: true}})
		_, err := s.Load(ctx)
		require.ErrorIs(t, err, auth.ErrStorageFailure)
		require.ErrorIs(t, err, errDisk)
	})

	t.Run("save", func(t *testing.T) {
		s := credentials.NewStore(&failingStorage{Store: memstore.New(), failOn: map[string]bool{credentials.KeyUser: true}})
		err := s.Save(ctx, token.Pair{AccessToken: "AT1", RefreshToken: "RT1"}, &users.User{ID: "u1"})
		require.ErrorIs(t, err, auth.ErrStorageFailure)
	})

	t.Run("clear attempts every key", func(t *testing.T) {
		mem := memstore.New()
		s := credentials.NewStore(&failingStorage{Store: mem, failOn: map[string]bool{credentials.KeyAccessToken: true}})
		require.NoError(t, mem.SetItem(ctx, credentials.KeyRefreshToken, "RT1"))
		require.NoError(t, mem.SetItem(ctx, credentials.KeyUser, "{}"))

		err := s.Clear(ctx)
		require.ErrorIs(t, err, auth.ErrStorageFailure)
		require.Equal(t, 0, mem.Len())
	})
}
