package models

import "errors"

// Lookup and state-transition errors shared by repositories and services.
var (
	// ErrSessionNotFound indicates no session matched the lookup.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCredentials indicates a catalog request carried no usable
	// username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAuthenticationPending indicates the session has not completed pairing.
	ErrAuthenticationPending = errors.New("authentication pending")

	// ErrAlreadyAuthenticated indicates a promotion was attempted on a
	// session that already left the pending state.
	ErrAlreadyAuthenticated = errors.New("session already authenticated")

	// ErrItemNotFound indicates the catalog item is not in the user's cache.
	ErrItemNotFound = errors.New("item not found")

	// ErrInvalidEvent indicates a playback event with an unknown type.
	ErrInvalidEvent = errors.New("invalid playback event")
)
