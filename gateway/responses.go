package gateway

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/jrsteele09/go-session-client/token"
	"github.com/jrsteele09/go-session-client/users"
)

// AuthResult is the outcome of a successful login or registration
type AuthResult struct {
	Tokens  token.Pair
	User    *users.User
	Message string
}

// tokenField accepts either {"token": "...", "expiresIn": ...} or a bare string
type tokenField struct {
	Token     string
	ExpiresIn json.RawMessage
}

func (t *tokenField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &t.Token)
	}
	var obj struct {
		Token     string          `json:"token"`
		ExpiresIn json.RawMessage `json:"expiresIn"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	t.Token, t.ExpiresIn = obj.Token, obj.ExpiresIn
	return nil
}

type authResponse struct {
	AccessToken  tokenField  `json:"accessToken"`
	RefreshToken tokenField  `json:"refreshToken"`
	User         *users.User `json:"user"`
	Message      string      `json:"message"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  tokenField `json:"accessToken"`
	RefreshToken tokenField `json:"refreshToken"`
}

type saveBusinessRequest struct {
	BusinessID string `json:"businessId"`
}

// messageResponse covers both the success bodies ({message}) and the error
// bodies ({error} or {message}) the backend sends
type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

var errIncomplete = errors.New("response is missing required fields")

func decodeAuth(body []byte) (*AuthResult, error) {
	var r authResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	pair := token.Pair{AccessToken: r.AccessToken.Token, RefreshToken: r.RefreshToken.Token}
	if !pair.Complete() || r.User == nil {
		return nil, errIncomplete
	}
	return &AuthResult{Tokens: pair, User: r.User, Message: r.Message}, nil
}

// decodeRegistration is decodeAuth for registration, where the backend may
// create the account without signing the user in. A body with neither token
// yields an AuthResult with empty Tokens.
func decodeRegistration(body []byte) (*AuthResult, error) {
	var r authResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	pair := token.Pair{AccessToken: r.AccessToken.Token, RefreshToken: r.RefreshToken.Token}
	switch {
	case pair.AccessToken == "" && pair.RefreshToken == "":
		return &AuthResult{User: r.User, Message: r.Message}, nil
	case !pair.Complete() || r.User == nil:
		return nil, errIncomplete
	}
	return &AuthResult{Tokens: pair, User: r.User, Message: r.Message}, nil
}

func decodeRefresh(body []byte) (token.Pair, error) {
	var r refreshResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return token.Pair{}, err
	}
	pair := token.Pair{AccessToken: r.AccessToken.Token, RefreshToken: r.RefreshToken.Token}
	if !pair.Complete() {
		return token.Pair{}, errIncomplete
	}
	return pair, nil
}

// decodeUser accepts the profile either bare or wrapped in {"user": ...}
func decodeUser(body []byte) (*users.User, error) {
	var wrapped struct {
		User *users.User `json:"user"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.User != nil && wrapped.User.ID != "" {
		return wrapped.User, nil
	}
	var u users.User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, errIncomplete
	}
	return &u, nil
}

func decodeMessage(body []byte) string {
	var m messageResponse
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	return m.Message
}

// serverMessage extracts a human readable message from an error body. Only
// field is consulted; other fields may carry internal detail.
func serverMessage(body []byte, field messageField) string {
	var m messageResponse
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	if field == fieldMessage {
		return m.Message
	}
	return m.Error
}
