// Package backendfake is an in-memory implementation of the directory
// backend's user and saved-business API. It backs cmd/fakebackend and the
// test-suites of gateway and session.
package backendfake

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-client/token/keys"
	"github.com/jrsteele09/go-session-client/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-session-client/token/refresh/repofake"
	"github.com/jrsteele09/go-session-client/users"
	fakeaccountrepo "github.com/jrsteele09/go-session-client/users/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	// APIPrefix is where the API is mounted, matching the real backend
	APIPrefix = "/api"

	defaultIssuer          = "byzxpo-fake"
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// RefreshHook runs at the start of every refresh request. Returning false
// makes the request fail as if the refresh token were invalid.
type RefreshHook func(r *http.Request) bool

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	logger zerolog.Logger

	issuer          string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration

	accounts users.AccountRepo
	refresh  *refresh.Manager
	signer   *keys.KeyPairSigner

	mu          sync.Mutex
	resetTokens map[string]string // reset token to email
	accessEpoch int64              // access tokens minted in an older epoch are rejected
	refreshHook RefreshHook

	refreshCalls atomic.Int64
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithEnv sets the environment; "DEV" logs every route and request
func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

// WithIssuer sets the iss claim of minted access tokens
func WithIssuer(issuer string) Option {
	return func(s *Server) {
		s.issuer = issuer
	}
}

// WithAccessTokenTTL sets how long access tokens stay valid
func WithAccessTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		s.accessTokenTTL = d
	}
}

// WithRefreshTokenTTL sets how long refresh tokens stay valid
func WithRefreshTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		s.refreshTokenTTL = d
	}
}

// New creates a fake backend with a freshly generated RS256 signing key
func New(opts ...Option) (*Server, error) {
	s := &Server{
		mux:             http.NewServeMux(),
		logger:          log.Logger,
		issuer:          defaultIssuer,
		accessTokenTTL:  defaultAccessTokenTTL,
		refreshTokenTTL: defaultRefreshTokenTTL,
		accounts:        fakeaccountrepo.NewFakeAccountRepo(),
		resetTokens:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "backendfake").Logger()

	keyPair, err := keys.GenerateRSAKeyPair(uuid.NewString(), 2048)
	if err != nil {
		return nil, fmt.Errorf("[backendfake New] failed to generate signing key: %w", err)
	}
	s.signer = keys.NewKeyPairSigner(keyPair)
	s.refresh = refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), s.refreshTokenTTL)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered "METHOD /path" patterns
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		s.logger.Info().Str("method", colourMethod(method)).Str("path", path).Msg("route")
	}
}

// Issuer returns the iss claim written into access tokens
func (s *Server) Issuer() string {
	return s.issuer
}

// PublicKeyPEM returns the key access tokens are signed with, for
// token.NewVerifier
func (s *Server) PublicKeyPEM() (string, error) {
	return s.signer.PublicKeyPEM()
}

// CreateAccount seeds an account directly, bypassing /user/register
func (s *Server) CreateAccount(name, email, password, country string) (*users.User, error) {
	acc, err := s.newAccount(users.RegisterCredentials{Name: name, Email: email, Password: password, Country: country})
	if err != nil {
		return nil, err
	}
	return acc.User.Clone(), nil
}

// BanAccount marks an account as banned so logins are refused
func (s *Server) BanAccount(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.accounts.GetByEmail(email)
	if err != nil {
		return err
	}
	acc.IsBanned = true
	return s.accounts.Upsert(acc)
}

// ExpireAccessTokens invalidates every access token issued so far; later
// authenticated calls with them receive 401.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessEpoch++
}

// RevokeRefreshTokens invalidates every outstanding refresh token
func (s *Server) RevokeRefreshTokens() error {
	return s.refresh.RevokeAll()
}

// SetRefreshHook installs h; nil removes it
func (s *Server) SetRefreshHook(h RefreshHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshHook = h
}

// RefreshCalls counts requests to the refresh endpoint
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// ResetTokenFor returns the outstanding password reset token for email, the
// value the real backend would have emailed.
func (s *Server) ResetTokenFor(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for tok, e := range s.resetTokens {
		if e == email {
			return tok, true
		}
	}
	return "", false
}

func (s *Server) currentEpoch() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessEpoch
}
