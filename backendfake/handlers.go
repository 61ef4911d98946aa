package backendfake

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-session-client/internal/utils"
	"github.com/jrsteele09/go-session-client/token/refresh"
	"github.com/jrsteele09/go-session-client/users"
)

const contentTypeJSON = "application/json"

var (
	errAccountExists = errors.New("user already exists")
	errMissingFields = errors.New("name, email, password and country are required")
	errInvalidRole   = errors.New("role must be user or business")
)

// Messages returned to clients
const (
	MsgBadCredentials = "Invalid email or password"
	MsgAccountExists  = "User already exists"
	MsgMissingFields  = "Name, email, password and country are required"
	MsgInvalidRole    = "Role must be user or business"
	MsgInvalidRefresh = "Invalid refresh token"
	MsgInvalidToken   = "Invalid or expired token"
)

type tokenEnvelope struct {
	Token     string `json:"token"`
	ExpiresIn string `json:"expiresIn"`
}

type authResponse struct {
	AccessToken  tokenEnvelope `json:"accessToken"`
	RefreshToken tokenEnvelope `json:"refreshToken"`
	User         *users.User   `json:"user"`
	Message      string        `json:"message"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginHandler handles POST /api/user/login
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds users.LoginCredentials
		if !decodeBody(w, r, &creds) {
			return
		}

		acc, err := s.accounts.GetByEmail(creds.Email)
		if err != nil || !users.CheckPasswordHash(creds.Password, acc.PasswordHash) {
			writeError(w, http.StatusUnauthorized, MsgBadCredentials)
			return
		}
		if acc.IsBanned {
			writeError(w, http.StatusForbidden, "Account is banned")
			return
		}

		s.writeAuthResponse(w, http.StatusOK, acc, "Login successful")
	}
}

// RegisterHandler handles POST /api/user/register
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds users.RegisterCredentials
		if !decodeBody(w, r, &creds) {
			return
		}

		acc, err := s.newAccount(creds)
		switch {
		case errors.Is(err, errAccountExists):
			writeError(w, http.StatusConflict, MsgAccountExists)
			return
		case errors.Is(err, errMissingFields):
			writeError(w, http.StatusBadRequest, MsgMissingFields)
			return
		case errors.Is(err, errInvalidRole):
			writeError(w, http.StatusBadRequest, MsgInvalidRole)
			return
		case err != nil:
			s.logger.Error().Err(err).Msg("register failed")
			writeError(w, http.StatusInternalServerError, "Registration failed")
			return
		}

		s.writeAuthResponse(w, http.StatusCreated, acc, "User registered successfully")
	}
}

// ForgotPasswordHandler handles POST /api/user/forgot-password. The reset
// token it would email is exposed through ResetTokenFor.
func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds users.ForgotPasswordCredentials
		if !decodeBody(w, r, &creds) {
			return
		}

		acc, err := s.accounts.GetByEmail(creds.Email)
		if err != nil {
			writeMessage(w, http.StatusNotFound, "User not found")
			return
		}

		resetToken, err := randomHex(16)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "Could not create reset token")
			return
		}

		s.mu.Lock()
		for tok, email := range s.resetTokens {
			if email == strings.ToLower(acc.Email) {
				delete(s.resetTokens, tok)
			}
		}
		s.resetTokens[resetToken] = strings.ToLower(acc.Email)
		s.mu.Unlock()

		writeMessage(w, http.StatusOK, "Password reset email sent")
	}
}

// ResetPasswordHandler handles POST /api/user/reset-password
func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds users.ResetPasswordCredentials
		if !decodeBody(w, r, &creds) {
			return
		}

		s.mu.Lock()
		email, ok := s.resetTokens[creds.Token]
		if ok {
			delete(s.resetTokens, creds.Token)
		}
		s.mu.Unlock()
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Invalid or expired reset token")
			return
		}
		if creds.Password == "" {
			writeMessage(w, http.StatusBadRequest, "Password is required")
			return
		}

		acc, err := s.accounts.GetByEmail(email)
		if err != nil {
			writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		hash, err := users.HashPassword(creds.Password)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "Failed to reset password")
			return
		}
		acc.PasswordHash = hash
		if err := s.accounts.Upsert(acc); err != nil {
			writeMessage(w, http.StatusInternalServerError, "Failed to reset password")
			return
		}
		// sessions opened with the old password can no longer refresh
		_ = s.refresh.Revoke(acc.ID)

		writeMessage(w, http.StatusOK, "Password reset successful")
	}
}

// RefreshTokenHandler handles POST /api/user/refresh-token. Refresh tokens
// are single use: each successful call rotates it.
func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)

		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		s.mu.Lock()
		hook := s.refreshHook
		s.mu.Unlock()
		if hook != nil && !hook(r) {
			writeMessage(w, http.StatusUnauthorized, MsgInvalidRefresh)
			return
		}

		newRefresh, userID, err := s.refresh.Rotate(req.RefreshToken)
		if errors.Is(err, refresh.ErrInvalidRefreshToken) {
			writeMessage(w, http.StatusUnauthorized, MsgInvalidRefresh)
			return
		}
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "Failed to refresh token")
			return
		}

		access, err := s.issueAccessToken(userID)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "Failed to refresh token")
			return
		}

		writeJSON(w, http.StatusOK, refreshResponse{AccessToken: access, RefreshToken: newRefresh})
	}
}

// FetchMeHandler handles GET /api/user/fetch/me
func (s *Server) FetchMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, err := s.accounts.GetByID(userIDFromContext(r.Context()))
		if err != nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, acc.User)
	}
}

// SaveBusinessHandler handles POST /api/saved-business/new
func (s *Server) SaveBusinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BusinessID string `json:"businessId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.BusinessID) == "" {
			writeError(w, http.StatusBadRequest, "businessId is required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		acc, err := s.accounts.GetByID(userIDFromContext(r.Context()))
		if err != nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		if acc.HasSavedBusiness(req.BusinessID) {
			writeError(w, http.StatusConflict, "Business already saved")
			return
		}
		acc.SavedIDs = append(acc.SavedIDs, req.BusinessID)
		acc.MySavedBusinesses = savedBusinessDocs(acc.SavedIDs)
		if err := s.accounts.Upsert(acc); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save business")
			return
		}

		writeMessage(w, http.StatusCreated, "Business saved successfully")
	}
}

// RemoveBusinessHandler handles DELETE /api/saved-business/delete/business/{id}
func (s *Server) RemoveBusinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID := r.PathValue("id")

		s.mu.Lock()
		defer s.mu.Unlock()

		acc, err := s.accounts.GetByID(userIDFromContext(r.Context()))
		if err != nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		if !acc.HasSavedBusiness(businessID) {
			writeError(w, http.StatusNotFound, "Saved business not found")
			return
		}
		kept := acc.SavedIDs[:0]
		for _, id := range acc.SavedIDs {
			if id != businessID {
				kept = append(kept, id)
			}
		}
		acc.SavedIDs = kept
		acc.MySavedBusinesses = savedBusinessDocs(acc.SavedIDs)
		if err := s.accounts.Upsert(acc); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to remove business")
			return
		}

		writeMessage(w, http.StatusOK, "Business removed successfully")
	}
}

func (s *Server) newAccount(creds users.RegisterCredentials) (*users.Account, error) {
	if strings.TrimSpace(creds.Name) == "" || strings.TrimSpace(creds.Email) == "" ||
		creds.Password == "" || strings.TrimSpace(creds.Country) == "" {
		return nil, errMissingFields
	}
	role := creds.Role
	switch role {
	case "":
		role = users.RoleUser
	case users.RoleUser, users.RoleBusiness:
	default:
		return nil, errInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.accounts.GetByEmail(creds.Email); err == nil {
		return nil, errAccountExists
	}
	hash, err := users.HashPassword(creds.Password)
	if err != nil {
		return nil, err
	}
	now := NowTimeFunc().UTC()
	acc := &users.Account{
		User: users.User{
			Name:       strings.TrimSpace(creds.Name),
			Email:      strings.TrimSpace(creds.Email),
			Role:       role,
			Country:    strings.TrimSpace(creds.Country),
			MemberType: "free",
			CreatedAt:  utils.Ptr(now),
			UpdatedAt:  utils.Ptr(now),
		},
		PasswordHash: hash,
	}
	if err := s.accounts.Upsert(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Server) writeAuthResponse(w http.ResponseWriter, status int, acc *users.Account, message string) {
	access, err := s.issueAccessToken(acc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue tokens")
		return
	}
	refreshToken, err := s.refresh.Create(acc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue tokens")
		return
	}
	writeJSON(w, status, authResponse{
		AccessToken:  tokenEnvelope{Token: access, ExpiresIn: s.accessTokenTTL.String()},
		RefreshToken: tokenEnvelope{Token: refreshToken, ExpiresIn: s.refreshTokenTTL.String()},
		User:         acc.User.Clone(),
		Message:      message,
	})
}

func savedBusinessDocs(ids []string) []json.RawMessage {
	docs := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		b, _ := json.Marshal(map[string]string{"_id": id})
		docs = append(docs, b)
	}
	return docs
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": msg}, the shape of the login, register and
// saved-business routes
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeMessage writes {"message": msg}, used by the password and refresh
// routes for both success and failure
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
