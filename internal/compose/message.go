// Package compose builds RFC 5322 messages for a single recipient.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/emersion/go-message/mail"
)

// ErrNoRecipient is returned when a message has no recipient address.
var ErrNoRecipient = errors.New("message must have a recipient")

// Message is one personalized email. It is built per row and discarded
// after it is submitted or logged.
type Message struct {
	From        string
	To          string
	Subject     string
	Text        string
	HTML        string // optional alternative part
	Attachments []Attachment
	Date        time.Time
}

// Build encodes m as a multipart/mixed MIME message. The text body (and
// the HTML alternative, when present) is followed by one part per
// attachment.
func Build(m Message) ([]byte, error) {
	if m.To == "" {
		return nil, ErrNoRecipient
	}

	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Address: m.From}})
	h.SetAddressList("To", []*mail.Address{{Address: m.To}})
	h.SetSubject(m.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating mail writer: %w", err)
	}

	if err := writeBody(mw, m.Text, m.HTML); err != nil {
		return nil, err
	}

	for _, a := range m.Attachments {
		if err := writeAttachment(mw, a); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing mail writer: %w", err)
	}

	return buf.Bytes(), nil
}

func writeBody(mw *mail.Writer, text, html string) error {
	tw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("creating inline part: %w", err)
	}

	if err := writeInline(tw, "text/plain", text); err != nil {
		return err
	}
	if html != "" {
		if err := writeInline(tw, "text/html", html); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing inline part: %w", err)
	}
	return nil
}

func writeInline(tw *mail.InlineWriter, contentType, body string) error {
	var ih mail.InlineHeader
	ih.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ih.Set("Content-Transfer-Encoding", "quoted-printable")

	w, err := tw.CreatePart(ih)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return w.Close()
}

func writeAttachment(mw *mail.Writer, a Attachment) error {
	mediaType, params, err := mime.ParseMediaType(a.ContentType)
	if err != nil {
		mediaType, params = "application/octet-stream", map[string]string{}
	}
	params["name"] = a.Filename

	var ah mail.AttachmentHeader
	ah.SetContentType(mediaType, params)
	ah.SetFilename(a.Filename)
	ah.Set("Content-Transfer-Encoding", "base64")

	w, err := mw.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("creating attachment %s: %w", a.Filename, err)
	}
	if _, err := w.Write(a.Content); err != nil {
		w.Close()
		return fmt.Errorf("writing attachment %s: %w", a.Filename, err)
	}
	return w.Close()
}
