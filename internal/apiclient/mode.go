package apiclient

import "github.com/go-faster/errors"

// Mode selects the credential transport.
type Mode string

const (
	// ModeBearer sends "Authorization: Bearer <access token>".
	ModeBearer Mode = "bearer"
	// ModeCookie relies on HttpOnly cookies kept in the client's cookie jar.
	ModeCookie Mode = "cookie"
)

// Validate rejects unknown modes.
func (m Mode) Validate() error {
	switch m {
	case ModeBearer, ModeCookie:
		return nil
	default:
		return errors.Errorf("unknown auth mode %q", string(m))
	}
}
