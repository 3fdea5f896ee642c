package apiclient

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/resto-client/internal/domain/session"
)

// Sentinel errors surfaced by Client.
var (
	// ErrSessionExpired is terminal: the session has been cleared and the
	// expiry hook has run.
	ErrSessionExpired = errors.New("session expired")
	// ErrForbidden is returned by admin-scoped clients on 403. The session is
	// kept.
	ErrForbidden = errors.New("forbidden")
)

// SessionExpiredError carries the scope and, when refresh was attempted, the
// reason it failed.
type SessionExpiredError struct {
	Scope session.Scope
	Cause error
}

func (e *SessionExpiredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s session expired: %v", e.Scope, e.Cause)
	}
	return fmt.Sprintf("%s session expired", e.Scope)
}

func (e *SessionExpiredError) Is(target error) bool { return target == ErrSessionExpired }

func (e *SessionExpiredError) Unwrap() error { return e.Cause }

// ForbiddenError reports a 403 on an admin-scoped request.
type ForbiddenError struct {
	Path    string
	Message string
}

func (e *ForbiddenError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("forbidden: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("forbidden: %s", e.Path)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// StatusError is a non-2xx answer decoded by DoJSON.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status of err when it is a *StatusError.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

const maxErrorBody = 64 << 10

// ReadError consumes resp.Body and builds a *StatusError from it. The body
// is expected to be {"message": "..."} or {"error": "..."}; anything else is
// used verbatim.
func ReadError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Status: resp.StatusCode, Message: errorMessage(body)}
}

func errorMessage(body []byte) string {
	var msg string
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "message", "error":
			if d.Next() != jx.String || msg != "" {
				return d.Skip()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			msg = s
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil || msg == "" {
		return strings.TrimSpace(string(body))
	}
	return msg
}
