package auth

import "errors"

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired, re-authenticate")
	ErrSignInInProgress = errors.New("sign-in already in progress")
	ErrAuthFailed       = errors.New("authentication failed")
	// ErrSignInCancelled is returned by a flow abandoned through SignOut.
	ErrSignInCancelled = errors.New("sign-in cancelled")
)
