package compose

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/require"
)

type parsedPart struct {
	contentType string
	filename    string
	body        string
}

func parse(t *testing.T, raw []byte) (*mail.Reader, []parsedPart) {
	t.Helper()

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	var parts []parsedPart
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		body, err := io.ReadAll(p.Body)
		require.NoError(t, err)

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			parts = append(parts, parsedPart{contentType: ct, body: string(body)})
		case *mail.AttachmentHeader:
			ct, _, _ := h.ContentType()
			name, _ := h.Filename()
			parts = append(parts, parsedPart{contentType: ct, filename: name, body: string(body)})
		}
	}

	return mr, parts
}

func TestBuild_TextOnly(t *testing.T) {
	t.Parallel()

	raw, err := Build(Message{
		From:    "sender@example.com",
		To:      "ada@example.com",
		Subject: "Hello Ada",
		Text:    "Hi Ada,\n\nRegards",
		Date:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	mr, parts := parse(t, raw)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	require.Equal(t, "Hello Ada", subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	require.Equal(t, "ada@example.com", to[0].Address)

	from, err := mr.Header.AddressList("From")
	require.NoError(t, err)
	require.Equal(t, "sender@example.com", from[0].Address)

	id, err := mr.Header.MessageID()
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Len(t, parts, 1)
	require.Equal(t, "text/plain", parts[0].contentType)
	require.Equal(t, "Hi Ada,\n\nRegards", strings.ReplaceAll(parts[0].body, "\r\n", "\n"))
}

func TestBuild_HTMLAndAttachments(t *testing.T) {
	t.Parallel()

	raw, err := Build(Message{
		From:    "sender@example.com",
		To:      "bob@example.com",
		Subject: "Report",
		Text:    "see attached",
		HTML:    "<p>see attached</p>",
		Attachments: []Attachment{
			{Filename: "report.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4 fake")},
			{Filename: "notes.txt", ContentType: "text/plain", Content: []byte("notes")},
		},
	})
	require.NoError(t, err)

	_, parts := parse(t, raw)
	require.Len(t, parts, 4)
	require.Equal(t, "text/plain", parts[0].contentType)
	require.Equal(t, "text/html", parts[1].contentType)
	require.Equal(t, "report.pdf", parts[2].filename)
	require.Equal(t, "%PDF-1.4 fake", parts[2].body)
	require.Equal(t, "notes.txt", parts[3].filename)
	require.Equal(t, "notes", parts[3].body)
}

func TestBuild_UnicodeSubject(t *testing.T) {
	t.Parallel()

	raw, err := Build(Message{From: "a@x.com", To: "b@x.com", Subject: "Grüße, Zoë", Text: "ok"})
	require.NoError(t, err)

	mr, _ := parse(t, raw)
	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	require.Equal(t, "Grüße, Zoë", subject)
}

func TestBuild_NoRecipient(t *testing.T) {
	t.Parallel()

	_, err := Build(Message{From: "a@x.com", Subject: "x"})
	require.ErrorIs(t, err, ErrNoRecipient)
}

func TestLoadAttachments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pdf := filepath.Join(dir, "brochure.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("pdf"), 0o600))
	txt := filepath.Join(dir, "readme.unknownext")
	require.NoError(t, os.WriteFile(txt, []byte("txt"), 0o600))

	atts, errs := LoadAttachments([]string{
		pdf,
		filepath.Join(dir, "missing.doc"),
		dir, // directories are not attachments
		txt,
	})
	require.Empty(t, errs)
	require.Len(t, atts, 2)
	require.Equal(t, "brochure.pdf", atts[0].Filename)
	require.Equal(t, "application/pdf", atts[0].ContentType)
	require.Equal(t, []byte("pdf"), atts[0].Content)
	require.Equal(t, "readme.unknownext", atts[1].Filename)
	require.Equal(t, "application/octet-stream", atts[1].ContentType)
}

func TestLoadAttachmentsWith_ReadError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(good, []byte("ok"), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("no"), 0o600))

	atts, errs := LoadAttachmentsWith([]string{bad, good}, func(p string) ([]byte, error) {
		if p == bad {
			return nil, os.ErrPermission
		}
		return os.ReadFile(p)
	})

	require.Len(t, atts, 1)
	require.Equal(t, "good.txt", atts[0].Filename)
	require.Len(t, errs, 1)

	var attErr *AttachmentError
	require.True(t, errors.As(errs[0], &attErr))
	require.Equal(t, bad, attErr.Path)
	require.ErrorIs(t, errs[0], os.ErrPermission)
}

func TestLoadAttachments_ReadsFresh(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	first, _ := LoadAttachments([]string{path})
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))
	second, _ := LoadAttachments([]string{path})

	require.Equal(t, []byte("v1"), first[0].Content)
	require.Equal(t, []byte("v2"), second[0].Content)
}

func TestMarkdownToHTML(t *testing.T) {
	t.Parallel()

	out, err := MarkdownToHTML("Hi **Ada**,\nsee https://example.com")
	require.NoError(t, err)
	require.Contains(t, out, "<strong>Ada</strong>")
	require.Contains(t, out, `<a href="https://example.com">`)
	require.Contains(t, out, "<br")
}
