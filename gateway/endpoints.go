package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-session-client/token"
	"github.com/jrsteele09/go-session-client/users"
)

// Endpoint paths relative to the API root
const (
	PathLogin          = "/user/login"
	PathRegister       = "/user/register"
	PathForgotPassword = "/user/forgot-password"
	PathResetPassword  = "/user/reset-password"
	PathRefreshToken   = "/user/refresh-token"
	PathFetchMe        = "/user/fetch/me"
	PathSaveBusiness   = "/saved-business/new"
	PathRemoveBusiness = "/saved-business/delete/business/"
)

// Fallback messages used when the backend gives no message of its own
const (
	MsgLoginFailed          = "Login failed"
	MsgRegistrationFailed   = "Registration failed"
	MsgForgotPasswordFailed = "Failed to send reset email"
	MsgResetPasswordFailed  = "Failed to reset password"
	MsgRefreshFailed        = "Failed to refresh token"
	MsgFetchMeFailed        = "Failed to fetch user data"
	MsgSaveBusinessFailed   = "Failed to save business"
	MsgRemoveBusinessFailed = "Failed to remove business"
)

// Login exchanges credentials for a token pair and profile
func (c *Client) Login(ctx context.Context, creds users.LoginCredentials) (*AuthResult, error) {
	return c.authenticate(ctx, request{
		op:       "login",
		method:   http.MethodPost,
		path:     PathLogin,
		body:     creds,
		fallback: MsgLoginFailed,
	})
}

// Register creates an account. When the backend signs the new user in, the
// result carries the first token pair and profile; otherwise Tokens is empty
// and User may be nil.
func (c *Client) Register(ctx context.Context, creds users.RegisterCredentials) (*AuthResult, error) {
	const op = "register"
	body, err := c.do(ctx, request{
		op:       op,
		method:   http.MethodPost,
		path:     PathRegister,
		body:     creds,
		fallback: MsgRegistrationFailed,
	})
	if err != nil {
		return nil, err
	}
	res, err := decodeRegistration(body)
	if err != nil {
		return nil, malformed(op, MsgRegistrationFailed, http.StatusOK, err)
	}
	return res, nil
}

func (c *Client) authenticate(ctx context.Context, r request) (*AuthResult, error) {
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	res, err := decodeAuth(body)
	if err != nil {
		return nil, malformed(r.op, r.fallback, http.StatusOK, err)
	}
	return res, nil
}

// ForgotPassword asks the backend to email a reset link. It returns the
// backend's confirmation message, which may be empty.
func (c *Client) ForgotPassword(ctx context.Context, creds users.ForgotPasswordCredentials) (string, error) {
	body, err := c.do(ctx, request{
		op:       "forgot_password",
		method:   http.MethodPost,
		path:     PathForgotPassword,
		body:     creds,
		fallback: MsgForgotPasswordFailed,
		errField: fieldMessage,
	})
	if err != nil {
		return "", err
	}
	return decodeMessage(body), nil
}

// ResetPassword sets a new password using a reset token
func (c *Client) ResetPassword(ctx context.Context, creds users.ResetPasswordCredentials) (string, error) {
	body, err := c.do(ctx, request{
		op:       "reset_password",
		method:   http.MethodPost,
		path:     PathResetPassword,
		body:     creds,
		fallback: MsgResetPasswordFailed,
		errField: fieldMessage,
	})
	if err != nil {
		return "", err
	}
	return decodeMessage(body), nil
}

// RefreshToken exchanges a refresh token for a new pair. The backend may
// rotate the refresh token, so the old one must not be reused.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (token.Pair, error) {
	const op = "refresh_token"
	body, err := c.do(ctx, request{
		op:       op,
		method:   http.MethodPost,
		path:     PathRefreshToken,
		body:     refreshRequest{RefreshToken: refreshToken},
		fallback: MsgRefreshFailed,
		errField: fieldMessage,
	})
	if err != nil {
		return token.Pair{}, err
	}
	pair, err := decodeRefresh(body)
	if err != nil {
		return token.Pair{}, malformed(op, MsgRefreshFailed, http.StatusOK, err)
	}
	return pair, nil
}

// FetchMe returns the profile of the token's owner
func (c *Client) FetchMe(ctx context.Context, accessToken string) (*users.User, error) {
	const op = "fetch_me"
	body, err := c.do(ctx, request{
		op:       op,
		method:   http.MethodGet,
		path:     PathFetchMe,
		token:    accessToken,
		fallback: MsgFetchMeFailed,
	})
	if err != nil {
		// profile failures always show the generic message
		var gwErr *Error
		if asError(err, &gwErr) {
			gwErr.Message = MsgFetchMeFailed
		}
		return nil, err
	}
	u, err := decodeUser(body)
	if err != nil {
		return nil, malformed(op, MsgFetchMeFailed, http.StatusOK, err)
	}
	return u, nil
}

// SaveBusiness adds businessID to the user's saved list
func (c *Client) SaveBusiness(ctx context.Context, accessToken, businessID string) (string, error) {
	body, err := c.do(ctx, request{
		op:       "save_business",
		method:   http.MethodPost,
		path:     PathSaveBusiness,
		body:     saveBusinessRequest{BusinessID: businessID},
		token:    accessToken,
		fallback: MsgSaveBusinessFailed,
	})
	if err != nil {
		return "", err
	}
	return decodeMessage(body), nil
}

// RemoveBusiness drops businessID from the user's saved list
func (c *Client) RemoveBusiness(ctx context.Context, accessToken, businessID string) (string, error) {
	body, err := c.do(ctx, request{
		op:       "remove_business",
		method:   http.MethodDelete,
		path:     PathRemoveBusiness + url.PathEscape(businessID),
		token:    accessToken,
		fallback: MsgRemoveBusinessFailed,
	})
	if err != nil {
		return "", err
	}
	return decodeMessage(body), nil
}
