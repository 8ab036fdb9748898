package compose

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
)

// Attachment is a file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// AttachmentError reports an attachment that could not be read.
type AttachmentError struct {
	Path string
	Err  error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attachment %s: %v", e.Path, e.Err)
}

func (e *AttachmentError) Unwrap() error {
	return e.Err
}

// LoadAttachments reads every path that currently exists as a regular
// file. Paths that do not exist (or are directories) are skipped
// silently; read failures are returned alongside the attachments that
// did load. Files are read on every call.
func LoadAttachments(paths []string) ([]Attachment, []error) {
	return LoadAttachmentsWith(paths, os.ReadFile)
}

// LoadAttachmentsWith is LoadAttachments reading file contents with read.
func LoadAttachmentsWith(paths []string, read func(string) ([]byte, error)) ([]Attachment, []error) {
	var (
		out  []Attachment
		errs []error
	)

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		content, err := read(p)
		if err != nil {
			errs = append(errs, &AttachmentError{Path: p, Err: err})
			continue
		}

		out = append(out, Attachment{
			Filename:    filepath.Base(p),
			ContentType: contentType(p),
			Content:     content,
		})
	}

	return out, errs
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
