package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/textproto"

	"gopkg.in/mail.v2"

	"github.com/nhle/mailmerge/internal/model"
)

// SMTPDialer dials SMTP submission servers. Port 465 style implicit TLS
// is used when the credentials ask for it; otherwise STARTTLS is
// mandatory, so the session is always encrypted.
type SMTPDialer struct {
	// TLSConfig overrides the TLS settings; nil verifies against Host.
	TLSConfig *tls.Config

	// LocalName is sent in HELO/EHLO; empty uses "localhost".
	LocalName string
}

// NewSMTPDialer returns an SMTPDialer with default TLS settings.
func NewSMTPDialer() *SMTPDialer {
	return &SMTPDialer{}
}

// Dial implements Dialer.
func (d *SMTPDialer) Dial(ctx context.Context, creds model.Credentials) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if creds.Host == "" || creds.Port <= 0 {
		return nil, fmt.Errorf("SMTP host and port are required")
	}

	sc, err := d.mailDialer(creds).Dial()
	if err != nil {
		if isAuthFailure(err) {
			return nil, &AuthError{Username: creds.Username, Err: err}
		}
		return nil, fmt.Errorf("connecting to SMTP %s:%d: %w", creds.Host, creds.Port, err)
	}

	return &smtpSession{sc: sc}, nil
}

func (d *SMTPDialer) mailDialer(creds model.Credentials) *mail.Dialer {
	md := mail.NewDialer(creds.Host, creds.Port, creds.Username, creds.Password)
	md.SSL = creds.TLS
	md.StartTLSPolicy = mail.MandatoryStartTLS
	md.LocalName = d.LocalName
	// No automatic resend; a failed submission is reported once.
	md.RetryFailure = false
	if creds.Timeout > 0 {
		md.Timeout = creds.Timeout
	}
	if d.TLSConfig != nil {
		md.TLSConfig = d.TLSConfig
	} else {
		md.TLSConfig = &tls.Config{ServerName: creds.Host}
	}
	return md
}

// isAuthFailure detects SMTP replies for rejected or required
// authentication (530, 534, 535).
func isAuthFailure(err error) bool {
	var tpErr *textproto.Error
	if !errors.As(err, &tpErr) {
		return false
	}
	switch tpErr.Code {
	case 530, 534, 535:
		return true
	default:
		return false
	}
}

type smtpSession struct {
	sc mail.SendCloser
}

func (s *smtpSession) Submit(ctx context.Context, from string, to []string, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sc.Send(from, to, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("submitting message to %v: %w", to, err)
	}
	return nil
}

func (s *smtpSession) Close() error {
	return s.sc.Close()
}
