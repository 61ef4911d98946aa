package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jrsteele09/go-session-client/backendfake"
	"github.com/jrsteele09/go-session-client/credentials"
	"github.com/jrsteele09/go-session-client/gateway"
	"github.com/jrsteele09/go-session-client/session"
	"github.com/jrsteele09/go-session-client/storage"
	"github.com/jrsteele09/go-session-client/storage/memstore"
	"github.com/jrsteele09/go-session-client/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "a@b.com"
	testPassword = "secret"
)

type note struct {
	Level   session.Level
	Message string
}

type recorder struct {
	mu    sync.Mutex
	notes []note
}

func (r *recorder) Notify(level session.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{Level: level, Message: message})
}

func (r *recorder) last() note {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return note{}
	}
	return r.notes[len(r.notes)-1]
}

type harness struct {
	fake    *backendfake.Server
	server  *httptest.Server
	mem     storage.Storage
	store   *credentials.Store
	notes   *recorder
	manager *session.Manager
	baseURL string
	opts    []session.Option
}

// newHarness wires a Manager to an in-memory backend with one seeded account
func newHarness(t *testing.T, opts ...session.Option) *harness {
	t.Helper()
	return newWrappedHarness(t, nil, opts...)
}

// newWrappedHarness is newHarness with wrap placed in front of the backend
func newWrappedHarness(t *testing.T, wrap func(next http.Handler) http.Handler, opts ...session.Option) *harness {
	t.Helper()
	fake, err := backendfake.New(backendfake.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	_, err = fake.CreateAccount("A", testEmail, testPassword, "NG")
	require.NoError(t, err)

	var handler http.Handler = fake
	if wrap != nil {
		handler = wrap(fake)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	h := &harness{fake: fake, server: ts, baseURL: ts.URL + backendfake.APIPrefix}
	h.build(t, gateway.New(h.baseURL, gateway.WithLogger(zerolog.Nop())), opts...)
	return h
}

// newStubHarness wires a Manager to an arbitrary handler
func newStubHarness(t *testing.T, handler http.Handler, opts ...session.Option) *harness {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	h := &harness{server: ts, baseURL: ts.URL}
	h.build(t, gateway.New(h.baseURL, gateway.WithLogger(zerolog.Nop())), opts...)
	return h
}

func (h *harness) build(t *testing.T, gw session.Gateway, opts ...session.Option) {
	t.Helper()
	if h.mem == nil {
		h.mem = memstore.New()
	}
	h.store = credentials.NewStore(h.mem, credentials.WithLogger(zerolog.Nop()))
	h.notes = &recorder{}
	h.opts = opts
	all := append([]session.Option{
		session.WithLogger(zerolog.Nop()),
		session.WithNotifier(h.notes),
	}, opts...)
	h.manager = session.New(gw, h.store, all...)
}

// restart builds a new Manager over the same storage, as after a process restart
func (h *harness) restart(t *testing.T) {
	t.Helper()
	h.build(t, gateway.New(h.baseURL, gateway.WithLogger(zerolog.Nop())), h.opts...)
}

func (h *harness) login(t *testing.T) session.Snapshot {
	t.Helper()
	snap, err := h.manager.Login(context.Background(), users.LoginCredentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	require.True(t, snap.IsAuthenticated)
	return snap
}

func (h *harness) stored(t *testing.T) credentials.Snapshot {
	t.Helper()
	snap, err := h.store.Load(context.Background())
	require.NoError(t, err)
	return snap
}

// loginFixture is the backend's login reply used by the documented scenario
const loginFixture = `{
	"accessToken": {"token": "AT1", "expiresIn": "1h"},
	"refreshToken": {"token": "RT1", "expiresIn": "7d"},
	"user": {"_id": "u1", "name": "A"},
	"message": "Login successful"
}`
