package store

import "errors"

var (
	// ErrInvalidTheme is returned for a theme mode other than light or dark.
	ErrInvalidTheme = errors.New("store: invalid theme mode")
	// ErrInvalidPath is returned when a field path is empty, nests deeper
	// than one level, or descends into a scalar.
	ErrInvalidPath = errors.New("store: invalid field path")
	// ErrInvalidValue is returned when a field value is not a scalar.
	ErrInvalidValue = errors.New("store: field values must be scalars")
	// ErrNoExtraction is returned when a field edit targets a missing
	// extraction result.
	ErrNoExtraction = errors.New("store: no extraction result loaded")
	// ErrNoActiveConversation is returned by BeginSend without an active log.
	ErrNoActiveConversation = errors.New("store: no active conversation")
	// ErrInvalidFilter is returned for an unknown sort key or order.
	ErrInvalidFilter = errors.New("store: invalid filter criteria")
	// ErrSessionExpired is returned by Restore for an expired token.
	ErrSessionExpired = errors.New("store: persisted session expired")
	// ErrInvalidPanel is returned for an unknown layout panel name.
	ErrInvalidPanel = errors.New("store: unknown panel")
)
