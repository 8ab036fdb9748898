// Package transport opens authenticated sessions to the outbound mail
// server and submits raw messages over them.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mailmerge/internal/model"
)

// Dialer opens authenticated sessions.
type Dialer interface {
	// Dial connects and authenticates. Authentication failures are
	// returned as *AuthError.
	Dial(ctx context.Context, creds model.Credentials) (Session, error)
}

// Session is one open, authenticated connection.
type Session interface {
	// Submit sends a complete RFC 5322 message to the given recipients.
	Submit(ctx context.Context, from string, to []string, raw []byte) error

	// Close ends the session.
	Close() error
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, creds model.Credentials) (Session, error)

// Dial calls f(ctx, creds).
func (f DialerFunc) Dial(ctx context.Context, creds model.Credentials) (Session, error) {
	return f(ctx, creds)
}

// AuthError indicates that the server rejected the account credentials.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Verify dials and immediately closes a session, reporting whether the
// account can authenticate.
func Verify(ctx context.Context, d Dialer, creds model.Credentials) error {
	s, err := d.Dial(ctx, creds)
	if err != nil {
		return err
	}
	_ = s.Close()
	return nil
}
