// Package campaign runs a mail merge: it loads the recipient sheet once,
// opens a single transport session (unless dry-running), then renders,
// composes and submits one message per row, reporting progress and log
// lines to an Observer as it goes.
//
// Spreadsheet and authentication failures abort the run before any row is
// processed. Everything that goes wrong for a single row (no address, an
// unreadable attachment, a rejected submission) is logged, recorded as
// that row's outcome, and the loop moves on.
//
// A Runner executes one run at a time; a concurrent call to Run returns
// ErrRunInProgress. Cancelling the context stops the loop between rows.
package campaign
