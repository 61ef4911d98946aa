package gateway_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-client/auth"
	"github.com/jrsteele09/go-session-client/backendfake"
	"github.com/jrsteele09/go-session-client/gateway"
	"github.com/jrsteele09/go-session-client/users"
	"github.com/stretchr/testify/require"
)

func newFake(t *testing.T) (*backendfake.Server, *gateway.Client) {
	t.Helper()
	fake, err := backendfake.New()
	require.NoError(t, err)
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)
	return fake, gateway.New(ts.URL + backendfake.APIPrefix)
}

// stub serves a single canned response and records the last request
func stub(t *testing.T, status int, body string) (*gateway.Client, *http.Request) {
	t.Helper()
	var last http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = *r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return gateway.New(ts.URL), &last
}

func TestClient_LoginScenario(t *testing.T) {
	c, req := stub(t, http.StatusOK, `{
		"accessToken": {"token": "AT1", "expiresIn": "1h"},
		"refreshToken": {"token": "RT1", "expiresIn": "7d"},
		"user": {"_id": "u1", "name": "A"},
		"message": "Login successful"
	}`)

	res, err := c.Login(context.Background(), users.LoginCredentials{Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)
	require.Equal(t, "AT1", res.Tokens.AccessToken)
	require.Equal(t, "RT1", res.Tokens.RefreshToken)
	require.Equal(t, "u1", res.User.ID)
	require.Equal(t, "A", res.User.Name)
	require.Equal(t, "Login successful", res.Message)

	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, gateway.PathLogin, req.URL.Path)
	require.Empty(t, req.Header.Get("Authorization"))
	require.NotEmpty(t, req.Header.Get("X-Request-ID"))
	require.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestClient_RegisterWithoutSignIn(t *testing.T) {
	c, _ := stub(t, http.StatusCreated, `{"message":"Registered, please log in"}`)

	res, err := c.Register(context.Background(), users.RegisterCredentials{Name: "A", Email: "a@b.com", Password: "secret", Country: "NG"})
	require.NoError(t, err)
	require.False(t, res.Tokens.Complete())
	require.Empty(t, res.Tokens.AccessToken)
	require.Nil(t, res.User)
	require.Equal(t, "Registered, please log in", res.Message)
}

func TestClient_RejectionMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		call    func(c *gateway.Client) error
		wantMsg string
	}{
		{
			name:   "login error field",
			status: http.StatusUnauthorized,
			body:   `{"error":"Invalid email or password"}`,
			call: func(c *gateway.Client) error {
				_, err := c.Login(context.Background(), users.LoginCredentials{})
				return err
			},
			wantMsg: "Invalid email or password",
		},
		{
			name:   "login fallback",
			status: http.StatusInternalServerError,
			body:   `<html>oops</html>`,
			call: func(c *gateway.Client) error {
				_, err := c.Login(context.Background(), users.LoginCredentials{})
				return err
			},
			wantMsg: gateway.MsgLoginFailed,
		},
		{
			name:   "login ignores message field",
			status: http.StatusBadRequest,
			body:   `{"message":"internal validation detail"}`,
			call: func(c *gateway.Client) error {
				_, err := c.Login(context.Background(), users.LoginCredentials{})
				return err
			},
			wantMsg: gateway.MsgLoginFailed,
		},
		{
			name:   "refresh ignores error field",
			status: http.StatusUnauthorized,
			body:   `{"error":"jwt malformed"}`,
			call: func(c *gateway.Client) error {
				_, err := c.RefreshToken(context.Background(), "RT1")
				return err
			},
			wantMsg: gateway.MsgRefreshFailed,
		},
		{
			name:   "refresh message field",
			status: http.StatusUnauthorized,
			body:   `{"message":"Invalid refresh token"}`,
			call: func(c *gateway.Client) error {
				_, err := c.RefreshToken(context.Background(), "RT1")
				return err
			},
			wantMsg: "Invalid refresh token",
		},
		{
			name:   "register fallback",
			status: http.StatusBadRequest,
			body:   `{}`,
			call: func(c *gateway.Client) error {
				_, err := c.Register(context.Background(), users.RegisterCredentials{})
				return err
			},
			wantMsg: gateway.MsgRegistrationFailed,
		},
		{
			name:   "forgot password message field",
			status: http.StatusNotFound,
			body:   `{"message":"User not found"}`,
			call: func(c *gateway.Client) error {
				_, err := c.ForgotPassword(context.Background(), users.ForgotPasswordCredentials{})
				return err
			},
			wantMsg: "User not found",
		},
		{
			name:   "reset password fallback",
			status: http.StatusBadRequest,
			body:   ``,
			call: func(c *gateway.Client) error {
				_, err := c.ResetPassword(context.Background(), users.ResetPasswordCredentials{})
				return err
			},
			wantMsg: gateway.MsgResetPasswordFailed,
		},
		{
			name:   "refresh fallback",
			status: http.StatusUnauthorized,
			body:   `{}`,
			call: func(c *gateway.Client) error {
				_, err := c.RefreshToken(context.Background(), "RT1")
				return err
			},
			wantMsg: gateway.MsgRefreshFailed,
		},
		{
			name:   "fetch me always generic",
			status: http.StatusUnauthorized,
			body:   `{"error":"Invalid or expired token"}`,
			call: func(c *gateway.Client) error {
				_, err := c.FetchMe(context.Background(), "AT1")
				return err
			},
			wantMsg: gateway.MsgFetchMeFailed,
		},
		{
			name:   "save business fallback",
			status: http.StatusInternalServerError,
			body:   `{}`,
			call: func(c *gateway.Client) error {
				_, err := c.SaveBusiness(context.Background(), "AT1", "b1")
				return err
			},
			wantMsg: gateway.MsgSaveBusinessFailed,
		},
		{
			name:   "remove business error field",
			status: http.StatusNotFound,
			body:   `{"error":"Saved business not found"}`,
			call: func(c *gateway.Client) error {
				_, err := c.RemoveBusiness(context.Background(), "AT1", "b1")
				return err
			},
			wantMsg: "Saved business not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := stub(t, tt.status, tt.body)
			err := tt.call(c)
			require.Error(t, err)
			require.Equal(t, tt.wantMsg, err.Error())
			require.ErrorIs(t, err, auth.ErrServerRejection)
			require.NotErrorIs(t, err, auth.ErrNetworkFailure)

			var gwErr *gateway.Error
			require.True(t, errors.As(err, &gwErr))
			require.Equal(t, tt.status, gwErr.StatusCode)
		})
	}
}

func TestClient_Malformed(t *testing.T) {
	t.Run("login without tokens", func(t *testing.T) {
		c, _ := stub(t, http.StatusOK, `{"user":{"_id":"u1"}}`)
		_, err := c.Login(context.Background(), users.LoginCredentials{})
		require.ErrorIs(t, err, auth.ErrMalformedResponse)
		require.Equal(t, gateway.MsgLoginFailed, err.Error())
	})

	t.Run("register with half a token pair", func(t *testing.T) {
		c, _ := stub(t, http.StatusCreated, `{"accessToken":"AT1","user":{"_id":"u1"}}`)
		_, err := c.Register(context.Background(), users.RegisterCredentials{})
		require.ErrorIs(t, err, auth.ErrMalformedResponse)
		require.Equal(t, gateway.MsgRegistrationFailed, err.Error())
	})

	t.Run("login without user", func(t *testing.T) {
		c, _ := stub(t, http.StatusOK, `{"accessToken":{"token":"AT1"},"refreshToken":{"token":"RT1"}}`)
		_, err := c.Login(context.Background(), users.LoginCredentials{})
		require.ErrorIs(t, err, auth.ErrMalformedResponse)
	})

	t.Run("not json", func(t *testing.T) {
		c, _ := stub(t, http.StatusOK, `not json`)
		_, err := c.RefreshToken(context.Background(), "RT1")
		require.ErrorIs(t, err, auth.ErrMalformedResponse)
	})

	t.Run("fetch me without id", func(t *testing.T) {
		c, _ := stub(t, http.StatusOK, `{"name":"A"}`)
		_, err := c.FetchMe(context.Background(), "AT1")
		require.ErrorIs(t, err, auth.ErrMalformedResponse)
	})
}

func TestClient_TokenShapes(t *testing.T) {
	t.Run("refresh plain strings", func(t *testing.T) {
		c, req := stub(t, http.StatusOK, `{"accessToken":"AT2","refreshToken":"RT2"}`)
		pair, err := c.RefreshToken(context.Background(), "RT1")
		require.NoError(t, err)
		require.Equal(t, "AT2", pair.AccessToken)
		require.Equal(t, "RT2", pair.RefreshToken)
		require.Equal(t, gateway.PathRefreshToken, req.URL.Path)
	})

	t.Run("refresh object form", func(t *testing.T) {
		c, _ := stub(t, http.StatusOK, `{"accessToken":{"token":"AT2","expiresIn":900},"refreshToken":{"token":"RT2"}}`)
		pair, err := c.RefreshToken(context.Background(), "RT1")
		require.NoError(t, err)
		require.Equal(t, "AT2", pair.AccessToken)
	})

	t.Run("login plain strings", func(t *testing.T) {
		c, _ := stub(t, http.StatusOK, `{"accessToken":"AT1","refreshToken":"RT1","user":{"_id":"u1"}}`)
		res, err := c.Login(context.Background(), users.LoginCredentials{})
		require.NoError(t, err)
		require.Equal(t, "AT1", res.Tokens.AccessToken)
	})

	t.Run("fetch me wrapped", func(t *testing.T) {
		c, _ := stub(t, http.StatusOK, `{"user":{"_id":"u1","name":"A"}}`)
		u, err := c.FetchMe(context.Background(), "AT1")
		require.NoError(t, err)
		require.Equal(t, "u1", u.ID)
	})
}

func TestClient_AuthorizationHeader(t *testing.T) {
	c, req := stub(t, http.StatusOK, `{"_id":"u1"}`)
	_, err := c.FetchMe(context.Background(), "AT1")
	require.NoError(t, err)
	require.Equal(t, "AT1", req.Header.Get("Authorization"))

	var last http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = *r.Clone(context.Background())
		_, _ = io.WriteString(w, `{"_id":"u1"}`)
	}))
	defer ts.Close()
	bearer := gateway.New(ts.URL, gateway.WithAuthScheme("Bearer"))
	_, err = bearer.FetchMe(context.Background(), "AT1")
	require.NoError(t, err)
	require.Equal(t, "Bearer AT1", last.Header.Get("Authorization"))
}

func TestClient_NetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := gateway.New(url, gateway.WithTimeout(time.Second))
	_, err := c.Login(context.Background(), users.LoginCredentials{Email: "a@b.com", Password: "secret"})
	require.ErrorIs(t, err, auth.ErrNetworkFailure)
	require.NotErrorIs(t, err, auth.ErrServerRejection)
	require.Equal(t, gateway.MsgLoginFailed, err.Error())
	require.False(t, gateway.IsUnauthorized(err))
}

func TestClient_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := gateway.New(ts.URL).RefreshToken(ctx, "RT1")
	require.ErrorIs(t, err, auth.ErrNetworkFailure)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_AgainstFakeBackend(t *testing.T) {
	ctx := context.Background()
	fake, c := newFake(t)

	reg, err := c.Register(ctx, users.RegisterCredentials{Name: "A", Email: "a@b.com", Password: "secret", Country: "NG"})
	require.NoError(t, err)
	require.True(t, reg.Tokens.Complete())

	_, err = c.Register(ctx, users.RegisterCredentials{Name: "A", Email: "a@b.com", Password: "secret", Country: "NG"})
	require.ErrorIs(t, err, auth.ErrServerRejection)
	require.Equal(t, backendfake.MsgAccountExists, err.Error())

	res, err := c.Login(ctx, users.LoginCredentials{Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)

	me, err := c.FetchMe(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, me.ID)

	_, err = c.SaveBusiness(ctx, res.Tokens.AccessToken, "b1")
	require.NoError(t, err)
	me, err = c.FetchMe(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	require.Len(t, me.MySavedBusinesses, 1)

	_, err = c.RemoveBusiness(ctx, res.Tokens.AccessToken, "b1")
	require.NoError(t, err)

	fake.ExpireAccessTokens()
	_, err = c.FetchMe(ctx, res.Tokens.AccessToken)
	require.True(t, gateway.IsUnauthorized(err))

	pair, err := c.RefreshToken(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, res.Tokens.RefreshToken, pair.RefreshToken)

	_, err = c.RefreshToken(ctx, res.Tokens.RefreshToken)
	require.True(t, gateway.IsUnauthorized(err))

	msg, err := c.ForgotPassword(ctx, users.ForgotPasswordCredentials{Email: "a@b.com"})
	require.NoError(t, err)
	require.Equal(t, "Password reset email sent", msg)

	resetToken, ok := fake.ResetTokenFor("a@b.com")
	require.True(t, ok)
	msg, err = c.ResetPassword(ctx, users.ResetPasswordCredentials{Token: resetToken, Password: "n3w"})
	require.NoError(t, err)
	require.Equal(t, "Password reset successful", msg)
}
