package auth

import "errors"

// Failure classes of a remote or local operation
var (
	ErrNetworkFailure    = errors.New("network failure")
	ErrServerRejection   = errors.New("server rejection")
	ErrMalformedResponse = errors.New("malformed response")
	ErrStorageFailure    = errors.New("storage failure")
)

// Session operation errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginFailed        = errors.New("login failed")
	ErrRegisterFailed     = errors.New("registration failed")
	ErrRefreshFailed      = errors.New("token refresh failed")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSuperseded         = errors.New("operation superseded by a newer session change")
)
