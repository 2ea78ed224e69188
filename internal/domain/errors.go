package domain

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrNoActiveSession    = errors.New("no active session")
	ErrInvalidContextItem = errors.New("invalid context item")
	ErrDuplicateProvider  = errors.New("duplicate provider")
	ErrUnknownStrategy    = errors.New("unknown strategy")
	ErrJournalClosed      = errors.New("journal closed")
)
