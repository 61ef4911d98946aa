package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-session-client/storage/filestore"
	"github.com/jrsteele09/go-session-client/storage/storagetest"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*filestore.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s, err := filestore.New(path)
	require.NoError(t, err)
	return s, path
}

func TestStore_Contract(t *testing.T) {
	s, _ := newStore(t)
	storagetest.Run(t, s)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newStore(t)
	require.NoError(t, s.SetItem(ctx, "refreshToken", "RT1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := filestore.New(path)
	require.NoError(t, err)
	v, ok, err := reopened.GetItem(ctx, "refreshToken")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "RT1", v)
}

func TestStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	s, path := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := s.GetItem(ctx, "accessToken")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode")
}

func TestStore_EmptyFileIsEmptyStore(t *testing.T) {
	s, path := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, ok, err := s.GetItem(context.Background(), "accessToken")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := filestore.New("")
	require.Error(t, err)
}
