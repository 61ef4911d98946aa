package session

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-session-client/internal/utils"
	"github.com/jrsteele09/go-session-client/users"
	pkgerrors "github.com/pkg/errors"
)

var (
	errForgotPassword = errors.New("forgot password failed")
	errResetPassword  = errors.New("reset password failed")
)

// ForgotPassword asks the backend to email a reset link. It does not touch
// the session state apart from Loading and Error.
func (m *Manager) ForgotPassword(ctx context.Context, creds users.ForgotPasswordCredentials) (string, error) {
	if err := m.validator.ValidateForgotPassword(creds); err != nil {
		return "", m.fail(err)
	}

	m.setBusy(1)
	defer m.setBusy(-1)

	msg, err := m.gw.ForgotPassword(ctx, creds)
	if err != nil {
		m.logFailure(errForgotPassword, err)
		return "", pkgerrors.Wrap(m.fail(err), "forgot password")
	}

	m.clearError()
	m.notifier.Notify(LevelSuccess, MsgResetEmailSent)
	return utils.FirstNonEmpty(msg, MsgResetEmailSent), nil
}

// ResetPassword sets a new password with the token from the reset email. The
// session stays as it is; the user logs in with the new password.
func (m *Manager) ResetPassword(ctx context.Context, creds users.ResetPasswordCredentials) (string, error) {
	if err := m.validator.ValidateResetPassword(creds); err != nil {
		return "", m.fail(err)
	}

	m.setBusy(1)
	defer m.setBusy(-1)

	msg, err := m.gw.ResetPassword(ctx, creds)
	if err != nil {
		m.logFailure(errResetPassword, err)
		return "", pkgerrors.Wrap(m.fail(err), "reset password")
	}

	m.clearError()
	m.notifier.Notify(LevelSuccess, MsgPasswordReset)
	return utils.FirstNonEmpty(msg, MsgPasswordReset), nil
}
