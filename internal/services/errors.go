package services

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"

	"fieldcam/backend/internal/auth"

	"google.golang.org/api/googleapi"
)

var (
	// ErrNotAuthenticated aborts an upload before any network I/O.
	ErrNotAuthenticated = auth.ErrNotAuthenticated
	// ErrAuthExpired means the remote rejected the token; the session was dropped.
	ErrAuthExpired = errors.New("auth expired, sign in again")
	// ErrUnauthorizedRemote is returned by backend adapters on 401/403.
	ErrUnauthorizedRemote = errors.New("remote rejected credentials")
	ErrNetwork            = errors.New("network failure")
	ErrProvisioning       = errors.New("provisioning failed")
	ErrLogging            = errors.New("logging failed")
)

// UploadError is a non-auth failure of the binary upload itself.
type UploadError struct {
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	return "upload failed: " + e.Reason
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

type statusCoder interface {
	HTTPStatusCode() int
}

// classify maps transport and API errors onto the sentinels above so the
// orchestrator can act on them without knowing the backend. Only adapters
// that call out with the session's token use it; a 401/403 there means the
// session itself was rejected.
func classify(err error) error {
	if err == nil {
		return nil
	}

	code := 0
	var gErr *googleapi.Error
	var sc statusCoder
	switch {
	case errors.As(err, &gErr):
		code = gErr.Code
	case errors.As(err, &sc):
		code = sc.HTTPStatusCode()
	}
	if code == 401 || code == 403 {
		return fmt.Errorf("%w: %w", ErrUnauthorizedRemote, err)
	}
	return classifyTransport(err)
}

// classifyTransport only separates network failures. Adapters with their own
// static credentials use it, so a rejection never touches the session.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var inner net.Error
		if errors.As(urlErr.Err, &inner) || errors.Is(urlErr.Err, io.EOF) || errors.Is(urlErr.Err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return err
}

// reason extracts a short human message from an adapter error.
func reason(err error) string {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Message != "" {
		return gErr.Message
	}
	return err.Error()
}
