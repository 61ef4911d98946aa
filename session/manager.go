// Package session owns the client's authentication lifecycle: it rehydrates a
// stored session, logs in and out, keeps tokens fresh and publishes the
// current state to UI consumers.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-session-client/auth"
	"github.com/jrsteele09/go-session-client/credentials"
	"github.com/jrsteele09/go-session-client/gateway"
	"github.com/jrsteele09/go-session-client/token"
	"github.com/jrsteele09/go-session-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Gateway is the backend API the manager drives
type Gateway interface {
	Login(ctx context.Context, creds users.LoginCredentials) (*gateway.AuthResult, error)
	Register(ctx context.Context, creds users.RegisterCredentials) (*gateway.AuthResult, error)
	ForgotPassword(ctx context.Context, creds users.ForgotPasswordCredentials) (string, error)
	ResetPassword(ctx context.Context, creds users.ResetPasswordCredentials) (string, error)
	RefreshToken(ctx context.Context, refreshToken string) (token.Pair, error)
	FetchMe(ctx context.Context, accessToken string) (*users.User, error)
	SaveBusiness(ctx context.Context, accessToken, businessID string) (string, error)
	RemoveBusiness(ctx context.Context, accessToken, businessID string) (string, error)
}

// CredentialStore persists credentials across restarts
type CredentialStore interface {
	Save(ctx context.Context, pair token.Pair, user *users.User) error
	SaveTokens(ctx context.Context, pair token.Pair) error
	SaveUser(ctx context.Context, user *users.User) error
	Load(ctx context.Context) (credentials.Snapshot, error)
	Clear(ctx context.Context) error
}

var (
	_ Gateway         = (*gateway.Client)(nil)
	_ CredentialStore = (*credentials.Store)(nil)
)

var errNoSession = errors.New("registration returned no session")

// RegisterPolicy decides what happens after a successful registration
type RegisterPolicy int

const (
	// RegisterAutoLogin adopts the tokens returned by registration
	RegisterAutoLogin RegisterPolicy = iota
	// RegisterRequireLogin discards them; the user must log in explicitly
	RegisterRequireLogin
)

// OpError reports which session operation failed. Error() is the underlying
// user-facing message; errors.Is matches Op as well as the cause chain.
type OpError struct {
	Op  error
	Err error
}

func (e *OpError) Error() string {
	return e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func (e *OpError) Is(target error) bool {
	return target == e.Op
}

// Manager is the session state machine. It is safe for concurrent use.
//
// Login, Register, Logout and Initialize each start a new generation and
// cancel every operation still in flight. Results belonging to an older
// generation are discarded with auth.ErrSuperseded.
type Manager struct {
	gw             Gateway
	store          CredentialStore
	logger         zerolog.Logger
	notifier       Notifier
	validator      *auth.Validator
	verifier       *token.Verifier
	registerPolicy RegisterPolicy

	// persistMu orders store writes and clears; it is taken before mu
	persistMu sync.Mutex

	mu          sync.Mutex
	state       State
	lastErr     string
	busy        int
	generation  uint64
	inflight    map[uint64]context.CancelFunc
	nextOpID    uint64
	subscribers map[uint64]chan Snapshot
	nextSubID   uint64

	refreshGroup singleflight.Group
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithNotifier sets where outcome notifications go. Defaults to the logger.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithValidator replaces the credential validator
func WithValidator(v *auth.Validator) Option {
	return func(m *Manager) {
		m.validator = v
	}
}

// WithVerifier checks the signature of every access token received
func WithVerifier(v *token.Verifier) Option {
	return func(m *Manager) {
		m.verifier = v
	}
}

// WithRegisterPolicy sets the post-registration behaviour
func WithRegisterPolicy(p RegisterPolicy) Option {
	return func(m *Manager) {
		m.registerPolicy = p
	}
}

// New creates a Manager in the Uninitialized state
func New(gw Gateway, store CredentialStore, opts ...Option) *Manager {
	m := &Manager{
		gw:          gw,
		store:       store,
		logger:      log.Logger,
		validator:   auth.NewValidator(),
		state:       Uninitialized{},
		inflight:    make(map[uint64]context.CancelFunc),
		subscribers: make(map[uint64]chan Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "session").Logger()
	if m.notifier == nil {
		m.notifier = LogNotifier{Logger: m.logger}
	}
	return m
}

// Initialize rehydrates the session from the credential store. A stored
// access token is checked against the backend (refreshing once on 401). If
// the backend rejects it the store is cleared; if the backend is unreachable
// the store is kept for the next start. Either way the session ends
// unauthenticated without an error being surfaced.
func (m *Manager) Initialize(ctx context.Context) error {
	opCtx, gen, done := m.begin(ctx)
	defer done()
	m.enterLoading(gen)

	snap, err := m.store.Load(opCtx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not read stored credentials")
		return m.settleUnauthenticated(opCtx, gen, false)
	}
	if snap.Tokens.AccessToken == "" {
		return m.settleUnauthenticated(opCtx, gen, false)
	}

	pair, user, err := m.restore(opCtx, gen, snap.Tokens)
	if err != nil {
		if !m.isCurrent(gen) {
			return auth.ErrSuperseded
		}
		clearStore := !errors.Is(err, auth.ErrNetworkFailure)
		m.logger.Info().Err(err).Bool("cleared", clearStore).Msg("stored session not restored")
		return m.settleUnauthenticated(opCtx, gen, clearStore)
	}

	err = m.commit(opCtx, gen, func(ctx context.Context) error {
		if err := m.store.Save(ctx, pair, user); err != nil {
			m.logger.Warn().Err(err).Msg("could not persist restored session")
		}
		m.state = Authenticated{Tokens: pair, User: user}
		m.lastErr = ""
		return nil
	})
	if err == nil {
		m.logger.Info().Str("user_id", user.ID).Msg("session restored")
	}
	return err
}

func (m *Manager) restore(ctx context.Context, gen uint64, pair token.Pair) (token.Pair, *users.User, error) {
	user, err := m.gw.FetchMe(ctx, pair.AccessToken)
	if gateway.IsUnauthorized(err) && pair.RefreshToken != "" {
		refreshed, rerr := m.gw.RefreshToken(ctx, pair.RefreshToken)
		if rerr != nil {
			return token.Pair{}, nil, rerr
		}
		pair = refreshed
		// the old refresh token is spent; keep the new one even if the next call fails
		_ = m.commit(ctx, gen, func(ctx context.Context) error {
			return m.store.SaveTokens(ctx, pair)
		})
		user, err = m.gw.FetchMe(ctx, pair.AccessToken)
	}
	if err == nil {
		err = m.checkTokens(ctx, pair)
	}
	return pair, user, err
}

func (m *Manager) settleUnauthenticated(ctx context.Context, gen uint64, clearStore bool) error {
	return m.commit(ctx, gen, func(ctx context.Context) error {
		if clearStore {
			if err := m.store.Clear(ctx); err != nil {
				m.logger.Warn().Err(err).Msg("could not clear stored credentials")
			}
		}
		m.state = Unauthenticated{}
		return nil
	})
}

// Login authenticates with email and password. On failure the previous state
// is kept and the returned error's message is fit for display.
func (m *Manager) Login(ctx context.Context, creds users.LoginCredentials) (Snapshot, error) {
	if err := m.validator.ValidateLogin(creds); err != nil {
		return m.reject(auth.ErrLoginFailed, err)
	}

	opCtx, gen, done := m.begin(ctx)
	defer done()
	m.enterLoading(gen)

	res, err := m.gw.Login(opCtx, creds)
	if err == nil {
		err = m.checkTokens(opCtx, res.Tokens)
	}
	if err != nil {
		return m.failLoading(gen, auth.ErrLoginFailed, err)
	}

	if err := m.adopt(opCtx, gen, res); err != nil {
		return m.Snapshot(), err
	}
	m.logger.Info().Str("user_id", res.User.ID).Msg("logged in")
	m.notifier.Notify(LevelSuccess, MsgLoggedIn)
	return m.Snapshot(), nil
}

// Register creates an account. Whether the session becomes authenticated is
// decided by the RegisterPolicy.
func (m *Manager) Register(ctx context.Context, creds users.RegisterCredentials) (Snapshot, error) {
	if err := m.validator.ValidateRegister(creds); err != nil {
		return m.reject(auth.ErrRegisterFailed, err)
	}

	opCtx, gen, done := m.begin(ctx)
	defer done()
	m.enterLoading(gen)

	res, err := m.gw.Register(opCtx, creds)
	if err == nil && m.registerPolicy == RegisterAutoLogin {
		if !res.Tokens.Complete() || res.User == nil {
			err = &gateway.Error{Kind: gateway.KindMalformed, Op: "register", Message: gateway.MsgRegistrationFailed, Err: errNoSession}
		} else {
			err = m.checkTokens(opCtx, res.Tokens)
		}
	}
	if err != nil {
		return m.failLoading(gen, auth.ErrRegisterFailed, err)
	}

	switch m.registerPolicy {
	case RegisterRequireLogin:
		err = m.commit(opCtx, gen, func(context.Context) error {
			m.state = leaveUninitialized(settled(m.state))
			m.lastErr = ""
			return nil
		})
	default:
		err = m.adopt(opCtx, gen, res)
	}
	if err != nil {
		return m.Snapshot(), err
	}
	evt := m.logger.Info()
	if res.User != nil {
		evt = evt.Str("user_id", res.User.ID)
	}
	evt.Msg("registered")
	m.notifier.Notify(LevelSuccess, MsgRegistered)
	return m.Snapshot(), nil
}

// Logout ends the session. It cancels every operation in flight, clears the
// store and memory, and always succeeds; a store failure is only logged.
// Calling it again has no further effect on state.
func (m *Manager) Logout(ctx context.Context) error {
	m.persistMu.Lock()
	m.mu.Lock()
	m.supersedeLocked()
	m.state = Unauthenticated{}
	m.lastErr = ""
	m.publishLocked()
	m.mu.Unlock()

	err := m.store.Clear(context.WithoutCancel(ctx))
	m.persistMu.Unlock()

	if err != nil {
		m.logger.Warn().Err(err).Msg("could not clear stored credentials on logout")
	}
	m.logger.Info().Msg("logged out")
	m.notifier.Notify(LevelSuccess, MsgLoggedOut)
	return nil
}

// Snapshot returns the current view of the session
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// State returns the current state variant
func (m *Manager) State() State {
	m.mu.Lock()
	s := m.state
	m.mu.Unlock()
	if a, ok := s.(Authenticated); ok {
		a.User = a.User.Clone()
		return a
	}
	return s
}

// Subscribe returns a channel carrying the latest Snapshot after every change.
// The current snapshot is delivered immediately. Slow readers only miss
// intermediate values. Call the returned func to unsubscribe.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch
	ch <- m.snapshotLocked()
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			close(ch)
			m.mu.Unlock()
		})
	}
}

// begin starts a state-changing operation. Every operation in flight is
// superseded; the returned context is cancelled when this one is superseded
// in turn.
func (m *Manager) begin(ctx context.Context) (context.Context, uint64, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supersedeLocked()
	opCtx, done := m.trackLocked(ctx)
	return opCtx, m.generation, done
}

// track ties ctx to the current generation without superseding anything
func (m *Manager) track(ctx context.Context) (context.Context, uint64, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	opCtx, done := m.trackLocked(ctx)
	return opCtx, m.generation, done
}

func (m *Manager) trackLocked(ctx context.Context) (context.Context, func()) {
	opCtx, cancel := context.WithCancel(ctx)
	id := m.nextOpID
	m.nextOpID++
	m.inflight[id] = cancel
	return opCtx, func() {
		m.mu.Lock()
		delete(m.inflight, id)
		m.mu.Unlock()
		cancel()
	}
}

func (m *Manager) supersedeLocked() {
	m.generation++
	for id, cancel := range m.inflight {
		cancel()
		delete(m.inflight, id)
	}
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation
}

// commit runs fn under the lock if gen is still current, then publishes the
// new state. fn receives a context that outlives caller cancellation so a
// committed result is persisted in full.
func (m *Manager) commit(ctx context.Context, gen uint64, fn func(ctx context.Context) error) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return auth.ErrSuperseded
	}
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	m.publishLocked()
	return nil
}

func (m *Manager) adopt(ctx context.Context, gen uint64, res *gateway.AuthResult) error {
	return m.commit(ctx, gen, func(ctx context.Context) error {
		if err := m.store.Save(ctx, res.Tokens, res.User); err != nil {
			m.logger.Warn().Err(err).Msg("could not persist session; it will not survive a restart")
		}
		m.state = Authenticated{Tokens: res.Tokens, User: res.User.Clone()}
		m.lastErr = ""
		return nil
	})
}

// enterLoading wraps the current state in Loading
func (m *Manager) enterLoading(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.generation {
		m.state = Loading{Prior: settled(m.state)}
		m.lastErr = ""
		m.publishLocked()
	}
}

// failLoading restores the state Loading wrapped after a failed login or
// registration. A refresh that landed meanwhile is kept.
func (m *Manager) failLoading(gen uint64, op, err error) (Snapshot, error) {
	m.mu.Lock()
	if gen != m.generation {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, auth.ErrSuperseded
	}
	m.state = leaveUninitialized(settled(m.state))
	m.lastErr = err.Error()
	m.publishLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logFailure(op, err)
	m.notifier.Notify(LevelError, err.Error())
	return snap, &OpError{Op: op, Err: err}
}

// reject records a failure that happened before any request was made
func (m *Manager) reject(op, err error) (Snapshot, error) {
	m.fail(err)
	return m.Snapshot(), &OpError{Op: op, Err: err}
}

// fail records err as the session's last error and notifies the user
func (m *Manager) fail(err error) error {
	m.mu.Lock()
	m.lastErr = err.Error()
	m.publishLocked()
	m.mu.Unlock()
	m.notifier.Notify(LevelError, err.Error())
	return err
}

func (m *Manager) clearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastErr != "" {
		m.lastErr = ""
		m.publishLocked()
	}
}

func (m *Manager) setBusy(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy += delta
	m.publishLocked()
}

func (m *Manager) checkTokens(ctx context.Context, pair token.Pair) error {
	if m.verifier == nil {
		return nil
	}
	if _, err := m.verifier.Verify(ctx, pair.AccessToken); err != nil {
		return &gateway.Error{Kind: gateway.KindMalformed, Op: "verify_token", Message: "Received an untrusted access token", Err: err}
	}
	return nil
}

func (m *Manager) logFailure(op, err error) {
	evt := m.logger.Warn().Err(err)
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		evt = evt.Str("kind", gwErr.Kind.String()).Int("status", gwErr.StatusCode).Str("detail", gwErr.Detail())
	}
	evt.Msg(op.Error())
}

// authenticatedLocked returns the live session, looking through Loading
func (m *Manager) authenticatedLocked() (Authenticated, bool) {
	a, ok := settled(m.state).(Authenticated)
	return a, ok
}

// replaceAuthenticatedLocked updates the live session in place, keeping a
// Loading wrapper
func (m *Manager) replaceAuthenticatedLocked(a Authenticated) {
	if _, ok := m.state.(Loading); ok {
		m.state = Loading{Prior: a}
		return
	}
	m.state = a
}

func (m *Manager) snapshotLocked() Snapshot {
	return snapshotOf(m.state, m.busy > 0, m.lastErr)
}

func (m *Manager) publishLocked() {
	snap := m.snapshotLocked()
	for _, ch := range m.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func leaveUninitialized(s State) State {
	if _, ok := s.(Uninitialized); ok {
		return Unauthenticated{}
	}
	return s
}
