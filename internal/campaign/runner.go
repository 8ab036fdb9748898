package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailmerge/internal/compose"
	"github.com/nhle/mailmerge/internal/logging"
	"github.com/nhle/mailmerge/internal/merge"
	"github.com/nhle/mailmerge/internal/model"
	"github.com/nhle/mailmerge/internal/sheet"
	"github.com/nhle/mailmerge/internal/transport"
)

// Runner executes mail-merge runs against one account.
type Runner struct {
	loader   sheet.Loader
	dialer   transport.Dialer
	creds    model.Credentials
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	readFile func(string) ([]byte, error)
	running  atomic.Bool
}

// New creates a Runner. creds are only used in send mode; a dry run never
// touches dialer.
func New(
	loader sheet.Loader,
	dialer transport.Dialer,
	creds model.Credentials,
	opts ...Option,
) *Runner {
	r := &Runner{
		loader:   loader,
		dialer:   dialer,
		creds:    creds,
		logger:   logging.Nop(),
		sleep:    sleepContext,
		now:      time.Now,
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Run processes every row of the configured sheet in order. It returns
// the accumulated result together with an error for fatal conditions
// (ErrLoad, ErrTransport, ErrRunInProgress, or the context error when
// cancelled). Per-row failures are not returned as errors; they appear in
// the result's outcomes.
func (r *Runner) Run(
	ctx context.Context,
	cfg model.RunConfig,
	obs Observer,
) (*RunResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	if obs == nil {
		obs = ObserverFuncs{}
	}

	res := &RunResult{
		RunID:     uuid.NewString(),
		DryRun:    cfg.DryRun,
		StartedAt: r.now(),
	}
	defer func() { res.Duration = r.now().Sub(res.StartedAt) }()

	e := &emitter{
		obs: obs,
		log: r.logger.With(slog.String("run_id", res.RunID)),
		now: r.now,
	}

	tbl, err := r.loader.Load(cfg.SpreadsheetPath, cfg.SheetName)
	if err != nil {
		e.emit(slog.LevelError, fmt.Sprintf("Could not load spreadsheet: %v", err),
			"path", cfg.SpreadsheetPath, "sheet", cfg.SheetName)
		return res, errors.Join(ErrLoad, err)
	}
	res.Total = tbl.Len()

	e.emit(slog.LevelInfo, fmt.Sprintf("Starting run: %d rows", res.Total),
		"path", cfg.SpreadsheetPath, "sheet", cfg.SheetName)
	if cfg.DryRun {
		e.emit(slog.LevelInfo, "Mode: DRY RUN")
	} else {
		e.emit(slog.LevelInfo, "Mode: REAL SEND")
	}
	if res.Total > 0 && !tbl.HasColumn(cfg.EmailColumn) {
		e.emit(slog.LevelWarn,
			fmt.Sprintf("Email column %q not found; every row will be skipped", cfg.EmailColumn))
	}

	var sess transport.Session
	if cfg.DryRun {
		e.emit(slog.LevelInfo, "Dry run: not connecting to the mail server")
	} else {
		sess, err = r.dialer.Dial(ctx, r.creds)
		if err != nil {
			e.emit(slog.LevelError, fmt.Sprintf("SMTP login failed: %v", err),
				"host", r.creds.Host, "username", r.creds.Username)
			return res, errors.Join(ErrTransport, err)
		}
		e.emit(slog.LevelInfo, "SMTP login OK", "host", r.creds.Host)
	}

	runErr := r.loop(ctx, cfg, tbl, sess, res, e)

	if sess != nil {
		if err := sess.Close(); err != nil {
			e.log.Debug("closing SMTP session", slog.String("error", err.Error()))
		}
	}

	e.emit(slog.LevelInfo, fmt.Sprintf("Finished sending: %d/%d", res.Sent, res.Total),
		"sent", res.Sent,
		"skipped", res.Count(OutcomeSkipped),
		"dry_run", res.Count(OutcomeDryRun),
		"errors", res.Count(OutcomeError),
		"cancelled", res.Cancelled,
	)

	return res, runErr
}

func (r *Runner) loop(
	ctx context.Context,
	cfg model.RunConfig,
	tbl *sheet.Table,
	sess transport.Session,
	res *RunResult,
	e *emitter,
) error {
	for i, row := range tbl.Rows {
		if err := ctx.Err(); err != nil {
			res.Cancelled = true
			e.emit(slog.LevelWarn,
				fmt.Sprintf("Run cancelled after %d of %d rows", i, res.Total))
			return err
		}

		n := i + 1
		out := r.processRow(ctx, cfg, sess, n, row, e)
		res.Outcomes = append(res.Outcomes, out)
		if out.Outcome == OutcomeSent {
			res.Sent++
		}

		e.obs.Progress(n, res.Total)

		if out.Outcome != OutcomeSkipped && n < res.Total {
			// An interrupted pause is picked up by the ctx check above.
			_ = r.sleep(ctx, cfg.Delay)
		}
	}
	return nil
}

func (r *Runner) processRow(
	ctx context.Context,
	cfg model.RunConfig,
	sess transport.Session,
	n int,
	row map[string]string,
	e *emitter,
) RowOutcome {
	recipient := strings.TrimSpace(row[cfg.EmailColumn])
	if recipient == "" {
		e.emit(slog.LevelInfo, fmt.Sprintf("Skipping row %d: no email address", n), "row", n)
		return RowOutcome{Row: n, Outcome: OutcomeSkipped, Reason: "no email address"}
	}

	fields := merge.Fields(row, recipient, cfg.NameColumn)
	msg := compose.Message{
		From:    r.sender(),
		To:      recipient,
		Subject: merge.Render(cfg.SubjectTemplate, fields),
		Text:    merge.Render(cfg.BodyTemplate, fields),
		Date:    r.now(),
	}

	if cfg.BodyFormat == model.BodyFormatMarkdown {
		html, err := compose.MarkdownToHTML(msg.Text)
		if err != nil {
			e.emit(slog.LevelWarn, fmt.Sprintf("Row %d: sending plain text only: %v", n, err), "row", n)
		} else {
			msg.HTML = html
		}
	}

	atts, attErrs := compose.LoadAttachmentsWith(cfg.Attachments, r.readFile)
	for _, err := range attErrs {
		e.emit(slog.LevelWarn, fmt.Sprintf("Row %d: attachment error: %v", n, err), "row", n)
	}
	msg.Attachments = atts

	out := RowOutcome{Row: n, Recipient: recipient, Attachments: len(atts)}

	raw, err := compose.Build(msg)
	if err != nil {
		e.emit(slog.LevelError, fmt.Sprintf("Row %d: could not build message for %s: %v", n, recipient, err),
			"row", n, "recipient", recipient)
		out.Outcome = OutcomeError
		out.Reason = err.Error()
		return out
	}
	out.Size = len(raw)

	if cfg.DryRun {
		e.emit(slog.LevelInfo, fmt.Sprintf("[DRY] Would send to %s (%d attachments)", recipient, len(atts)),
			"row", n, "recipient", recipient, "bytes", len(raw))
		out.Outcome = OutcomeDryRun
		return out
	}

	if err := sess.Submit(ctx, msg.From, []string{recipient}, raw); err != nil {
		e.emit(slog.LevelError, fmt.Sprintf("Send error for %s: %v", recipient, err),
			"row", n, "recipient", recipient)
		out.Outcome = OutcomeError
		out.Reason = err.Error()
		return out
	}

	e.emit(slog.LevelInfo, fmt.Sprintf("Sent: %s", recipient),
		"row", n, "recipient", recipient, "bytes", len(raw))
	out.Outcome = OutcomeSent
	return out
}

func (r *Runner) sender() string {
	if r.creds.From != "" {
		return r.creds.From
	}
	return r.creds.Username
}

// emitter sends each line to the observer and the structured logger.
type emitter struct {
	obs Observer
	log *slog.Logger
	now func() time.Time
}

func (e *emitter) emit(level slog.Level, msg string, args ...any) {
	e.obs.Log(LogEntry{Time: e.now(), Level: level, Message: msg})
	e.log.Log(context.Background(), level, msg, args...)
}
