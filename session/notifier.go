package session

import (
	"github.com/rs/zerolog"
)

// Level is the severity of a notification
type Level int

const (
	LevelSuccess Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "success"
}

// Notifier shows short-lived outcome messages to the user, like a toast
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) {
	f(level, message)
}

// LogNotifier writes notifications to a zerolog logger
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(level Level, message string) {
	evt := n.Logger.Info()
	if level == LevelError {
		evt = n.Logger.Warn()
	}
	evt.Str("notification", level.String()).Msg(message)
}

// Notification messages
const (
	MsgLoggedIn        = "Logged in successfully"
	MsgRegistered      = "Registered successfully"
	MsgLoggedOut       = "Logged out successfully"
	MsgResetEmailSent  = "Reset email sent"
	MsgPasswordReset   = "Password reset successful"
	MsgBusinessSaved   = "Business saved"
	MsgBusinessRemoved = "Business removed"
	MsgSessionExpired  = "Session expired, please log in again"
)
