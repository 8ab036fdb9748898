package campaign

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailmerge/internal/model"
	"github.com/nhle/mailmerge/internal/sheet"
	"github.com/nhle/mailmerge/internal/transport"
)

// recorder is an append-only Observer.
type recorder struct {
	mu       sync.Mutex
	progress [][2]int
	entries  []LogEntry
}

func (r *recorder) Progress(done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, [2]int{done, total})
}

func (r *recorder) Log(e LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Message
	}
	return out
}

type submission struct {
	from string
	to   []string
	raw  []byte
}

type fakeSession struct {
	mu          sync.Mutex
	submissions []submission
	failFor     map[string]error
	closeErr    error
	closed      int
}

func (s *fakeSession) Submit(_ context.Context, from string, to []string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[to[0]]; ok {
		return err
	}
	s.submissions = append(s.submissions, submission{from: from, to: to, raw: append([]byte(nil), raw...)})
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return s.closeErr
}

type fakeDialer struct {
	session *fakeSession
	err     error
	dials   int
	creds   model.Credentials
}

func (d *fakeDialer) Dial(_ context.Context, creds model.Credentials) (transport.Session, error) {
	d.dials++
	d.creds = creds
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

func tableLoader(headers []string, rows ...[]string) sheet.Loader {
	return sheet.LoaderFunc(func(string, string) (*sheet.Table, error) {
		t := &sheet.Table{Headers: headers}
		for _, r := range rows {
			m := make(map[string]string, len(headers))
			for i, h := range headers {
				if i < len(r) {
					m[h] = r[i]
				} else {
					m[h] = ""
				}
			}
			t.Rows = append(t.Rows, m)
		}
		return t, nil
	})
}

func threeRows() sheet.Loader {
	return tableLoader([]string{"Email", "Name"},
		[]string{"a@x.com", "Ada"},
		[]string{"", "Nobody"},
		[]string{"b@x.com", "Bob"},
	)
}

var testCreds = model.Credentials{
	Host:     "smtp.example.com",
	Port:     465,
	Username: "sender@example.com",
	Password: "secret",
	TLS:      true,
}

func baseConfig(dryRun bool) model.RunConfig {
	return model.RunConfig{
		SpreadsheetPath: "recipients.xlsx",
		SheetName:       "Sheet1",
		EmailColumn:     "Email",
		NameColumn:      "Name",
		SubjectTemplate: "Hello {Name}",
		BodyTemplate:    "Hi {Name},\nbye",
		Delay:           100 * time.Millisecond,
		DryRun:          dryRun,
	}
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func outcomes(res *RunResult) []Outcome {
	out := make([]Outcome, len(res.Outcomes))
	for i, o := range res.Outcomes {
		out[i] = o.Outcome
	}
	return out
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{session: &fakeSession{}}
	sl := &sleepLog{}
	r := New(threeRows(), dialer, testCreds, WithSleep(sl.sleep))
	rec := &recorder{}

	res, err := r.Run(context.Background(), baseConfig(true), rec)
	require.NoError(t, err)

	require.Equal(t, []Outcome{OutcomeDryRun, OutcomeSkipped, OutcomeDryRun}, outcomes(res))
	require.Equal(t, 0, res.Sent)
	require.Equal(t, 3, res.Total)
	require.True(t, res.DryRun)
	require.NotEmpty(t, res.RunID)
	require.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, rec.progress)
	require.Zero(t, dialer.dials, "dry run must not open a transport session")

	// One pause after row 1; none after the skip or the last row.
	require.Equal(t, []time.Duration{100 * time.Millisecond}, sl.delays)

	msgs := rec.messages()
	require.Contains(t, msgs, "[DRY] Would send to a@x.com (0 attachments)")
	require.Contains(t, msgs, "Skipping row 2: no email address")
	require.Equal(t, "Finished sending: 0/3", msgs[len(msgs)-1])
}

func TestRun_RealSendWithOneFailure(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{failFor: map[string]error{"b@x.com": errors.New("550 mailbox unavailable")}}
	dialer := &fakeDialer{session: sess}
	loader := tableLoader([]string{"Email", "Name"},
		[]string{"a@x.com", "Ada"},
		[]string{"b@x.com", "Bob"},
		[]string{"c@x.com", "Cy"},
	)
	r := New(loader, dialer, testCreds, WithSleep((&sleepLog{}).sleep))
	rec := &recorder{}

	res, err := r.Run(context.Background(), baseConfig(false), rec)
	require.NoError(t, err)

	require.Equal(t, []Outcome{OutcomeSent, OutcomeError, OutcomeSent}, outcomes(res))
	require.Equal(t, 2, res.Sent)
	require.Contains(t, res.Outcomes[1].Reason, "550")
	require.Len(t, res.Failed(), 1)
	require.Equal(t, 1, dialer.dials)
	require.Equal(t, testCreds, dialer.creds)
	require.Equal(t, 1, sess.closed)
	require.Len(t, sess.submissions, 2)
	require.Equal(t, "sender@example.com", sess.submissions[0].from)
	require.Equal(t, []string{"a@x.com"}, sess.submissions[0].to)
	require.Contains(t, rec.messages(), "Finished sending: 2/3")
}

func TestRun_RendersTemplatesPerRow(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{}
	creds := testCreds
	creds.From = "news@example.com"
	loader := tableLoader([]string{"Email", "Full Name", "Company"},
		[]string{" ada@x.com ", "Ada", "Analytical"},
	)
	cfg := baseConfig(false)
	cfg.NameColumn = "Full Name"
	cfg.SubjectTemplate = "Hello {Name} at {Company}"
	cfg.BodyTemplate = "Dear {Name}, {Missing}your address is {Email}."

	res, err := New(loader, &fakeDialer{session: sess}, creds).Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)
	require.Equal(t, "ada@x.com", res.Outcomes[0].Recipient)

	sub := sess.submissions[0]
	require.Equal(t, "news@example.com", sub.from)

	mr, err := mail.CreateReader(bytes.NewReader(sub.raw))
	require.NoError(t, err)
	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	require.Equal(t, "Hello Ada at Analytical", subject)

	p, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(p.Body)
	require.NoError(t, err)
	require.Equal(t, "Dear Ada, your address is ada@x.com.", strings.TrimSpace(string(body)))
}

func TestRun_Attachments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	existing := filepath.Join(dir, "brochure.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("pdf-bytes"), 0o600))

	sess := &fakeSession{}
	cfg := baseConfig(false)
	cfg.Attachments = []string{filepath.Join(dir, "missing.docx"), existing}

	loader := tableLoader([]string{"Email", "Name"}, []string{"a@x.com", "Ada"})
	res, err := New(loader, &fakeDialer{session: sess}, testCreds).Run(context.Background(), cfg, &recorder{})
	require.NoError(t, err)
	require.Equal(t, []Outcome{OutcomeSent}, outcomes(res))
	require.Equal(t, 1, res.Outcomes[0].Attachments)

	mr, err := mail.CreateReader(bytes.NewReader(sess.submissions[0].raw))
	require.NoError(t, err)

	var names []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if h, ok := p.Header.(*mail.AttachmentHeader); ok {
			name, _ := h.Filename()
			names = append(names, name)
			data, err := io.ReadAll(p.Body)
			require.NoError(t, err)
			require.Equal(t, "pdf-bytes", string(data))
		}
	}
	require.Equal(t, []string{"brochure.pdf"}, names)
}

func TestRun_UnreadableAttachmentIsSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "brochure.pdf")
	bad := filepath.Join(dir, "locked.pdf")
	require.NoError(t, os.WriteFile(good, []byte("pdf-bytes"), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("secret"), 0o600))

	read := func(p string) ([]byte, error) {
		if p == bad {
			return nil, os.ErrPermission
		}
		return os.ReadFile(p)
	}

	sess := &fakeSession{}
	cfg := baseConfig(false)
	cfg.Attachments = []string{bad, good}

	rec := &recorder{}
	loader := tableLoader([]string{"Email", "Name"}, []string{"a@x.com", "Ada"})
	res, err := New(loader, &fakeDialer{session: sess}, testCreds, WithFileReader(read)).
		Run(context.Background(), cfg, rec)
	require.NoError(t, err)
	require.Equal(t, []Outcome{OutcomeSent}, outcomes(res))
	require.Equal(t, 1, res.Outcomes[0].Attachments)

	var logged bool
	for _, m := range rec.messages() {
		if strings.HasPrefix(m, "Row 1: attachment error:") && strings.Contains(m, "locked.pdf") {
			logged = true
		}
	}
	require.True(t, logged, "attachment error is logged: %v", rec.messages())

	mr, err := mail.CreateReader(bytes.NewReader(sess.submissions[0].raw))
	require.NoError(t, err)

	var names []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if h, ok := p.Header.(*mail.AttachmentHeader); ok {
			name, _ := h.Filename()
			names = append(names, name)
		}
	}
	require.Equal(t, []string{"brochure.pdf"}, names)
}

func TestRun_AttachmentMissingInDryRun(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(true)
	cfg.Attachments = []string{filepath.Join(t.TempDir(), "nope.pdf")}

	loader := tableLoader([]string{"Email"}, []string{"a@x.com"})
	res, err := New(loader, &fakeDialer{}, testCreds).Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Equal(t, []Outcome{OutcomeDryRun}, outcomes(res))
	require.Zero(t, res.Outcomes[0].Attachments)
}

func TestRun_MarkdownBody(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{}
	cfg := baseConfig(false)
	cfg.BodyFormat = model.BodyFormatMarkdown
	cfg.BodyTemplate = "Hi **{Name}**"

	loader := tableLoader([]string{"Email", "Name"}, []string{"a@x.com", "Ada"})
	_, err := New(loader, &fakeDialer{session: sess}, testCreds).Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Contains(t, string(sess.submissions[0].raw), "text/html")
}

func TestRun_LoadFailure(t *testing.T) {
	t.Parallel()

	loadErr := errors.New("no such file")
	loader := sheet.LoaderFunc(func(string, string) (*sheet.Table, error) { return nil, loadErr })
	dialer := &fakeDialer{session: &fakeSession{}}
	rec := &recorder{}

	res, err := New(loader, dialer, testCreds).Run(context.Background(), baseConfig(false), rec)
	require.ErrorIs(t, err, ErrLoad)
	require.ErrorIs(t, err, loadErr)
	require.NotNil(t, res)
	require.Zero(t, res.Total)
	require.Zero(t, res.Processed())
	require.Empty(t, rec.progress)
	require.Zero(t, dialer.dials)
	require.Len(t, rec.entries, 1)
	require.Equal(t, slog.LevelError, rec.entries[0].Level)
}

func TestRun_AuthFailure(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{err: &transport.AuthError{Username: "sender@example.com", Err: errors.New("535 bad credentials")}}
	rec := &recorder{}

	res, err := New(threeRows(), dialer, testCreds).Run(context.Background(), baseConfig(false), rec)
	require.ErrorIs(t, err, ErrTransport)
	require.True(t, transport.IsAuthError(err))
	require.Equal(t, 3, res.Total)
	require.Zero(t, res.Processed())
	require.Zero(t, res.Sent)
	require.Empty(t, rec.progress)
}

func TestRun_CloseErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{closeErr: errors.New("connection reset")}
	loader := tableLoader([]string{"Email"}, []string{"a@x.com"})

	res, err := New(loader, &fakeDialer{session: sess}, testCreds).Run(context.Background(), baseConfig(false), nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)
	require.Equal(t, 1, sess.closed)
}

func TestRun_WhitespaceAddressesSkipped(t *testing.T) {
	t.Parallel()

	loader := tableLoader([]string{"Email"}, []string{"   "}, []string{"\t"}, []string{"a@x.com"})
	sess := &fakeSession{}
	sl := &sleepLog{}

	res, err := New(loader, &fakeDialer{session: sess}, testCreds, WithSleep(sl.sleep)).
		Run(context.Background(), baseConfig(false), nil)
	require.NoError(t, err)
	require.Equal(t, []Outcome{OutcomeSkipped, OutcomeSkipped, OutcomeSent}, outcomes(res))
	require.Equal(t, 1, res.Sent)
	require.Empty(t, sl.delays)
}

func TestRun_MissingEmailColumnSkipsAll(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(true)
	cfg.EmailColumn = "Mail"
	rec := &recorder{}

	res, err := New(threeRows(), &fakeDialer{}, testCreds).Run(context.Background(), cfg, rec)
	require.NoError(t, err)
	require.Equal(t, 3, res.Count(OutcomeSkipped))
	require.Contains(t, rec.messages(), `Email column "Mail" not found; every row will be skipped`)
}

func TestRun_OutcomesCoverEveryRow(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"a@x.com"}, {""}, {"fail@x.com"}, {"b@x.com"}, {" "}, {"c@x.com"},
	}
	loader := tableLoader([]string{"Email"}, rows...)

	for _, dry := range []bool{true, false} {
		sess := &fakeSession{failFor: map[string]error{"fail@x.com": errors.New("rejected")}}
		rec := &recorder{}
		res, err := New(loader, &fakeDialer{session: sess}, testCreds, WithSleep((&sleepLog{}).sleep)).
			Run(context.Background(), baseConfig(dry), rec)
		require.NoError(t, err)

		sum := res.Count(OutcomeSent) + res.Count(OutcomeSkipped) + res.Count(OutcomeDryRun) + res.Count(OutcomeError)
		require.Equal(t, res.Total, sum)
		require.LessOrEqual(t, res.Sent, res.Total)
		require.Len(t, rec.progress, len(rows))
		for i, p := range rec.progress {
			require.Equal(t, [2]int{i + 1, len(rows)}, p)
		}
		if dry {
			require.Zero(t, res.Sent)
			require.Equal(t, 4, res.Count(OutcomeDryRun))
		} else {
			require.Equal(t, 3, res.Sent)
			require.Equal(t, 1, res.Count(OutcomeError))
		}
	}
}

func TestRun_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := &fakeSession{}
	obs := ObserverFuncs{OnProgress: func(done, _ int) {
		if done == 1 {
			cancel()
		}
	}}

	res, err := New(threeRows(), &fakeDialer{session: sess}, testCreds, WithSleep((&sleepLog{}).sleep)).
		Run(ctx, baseConfig(false), obs)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, res.Cancelled)
	require.Equal(t, 1, res.Processed())
	require.Equal(t, 3, res.Total)
	require.Equal(t, 1, sess.closed, "session is closed on cancellation")
}

func TestRun_RejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	loader := sheet.LoaderFunc(func(string, string) (*sheet.Table, error) {
		once.Do(func() { close(entered) })
		<-release
		return &sheet.Table{Headers: []string{"Email"}}, nil
	})
	r := New(loader, &fakeDialer{}, testCreds)

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), baseConfig(true), nil)
		done <- err
	}()

	<-entered
	require.True(t, r.Running())
	_, err := r.Run(context.Background(), baseConfig(true), nil)
	require.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
	require.False(t, r.Running())

	_, err = r.Run(context.Background(), baseConfig(true), nil)
	require.NoError(t, err)
}

func TestRun_UsesClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)
	tick := start
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	rec := &recorder{}

	res, err := New(threeRows(), &fakeDialer{}, testCreds, WithClock(clock), WithSleep((&sleepLog{}).sleep)).
		Run(context.Background(), baseConfig(true), rec)
	require.NoError(t, err)
	require.Equal(t, start.Add(time.Second), res.StartedAt)
	require.Positive(t, res.Duration)
	require.Equal(t, "[14:05:11] Starting run: 3 rows", rec.entries[0].String())
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	require.NoError(t, sleepContext(context.Background(), 0))
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
