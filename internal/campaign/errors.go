package campaign

import "errors"

var (
	// ErrLoad indicates the recipient spreadsheet could not be read.
	ErrLoad = errors.New("failed to load spreadsheet")

	// ErrTransport indicates the mail session could not be opened.
	ErrTransport = errors.New("failed to open mail session")

	// ErrRunInProgress is returned when Run is called while another run
	// on the same Runner has not finished.
	ErrRunInProgress = errors.New("a run is already in progress")
)
