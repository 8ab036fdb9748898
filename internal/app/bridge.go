package app

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mailmerge/internal/campaign"
	"github.com/nhle/mailmerge/internal/model"
)

// runProgressMsg is a tea.Msg sent after each processed row.
type runProgressMsg struct {
	done, total int
}

// runLogMsg is a tea.Msg carrying one run log line.
type runLogMsg struct {
	entry campaign.LogEntry
}

// runFinishedMsg is a tea.Msg sent once Run has returned.
type runFinishedMsg struct {
	result *campaign.RunResult
	err    error
}

// runBridge runs a campaign on a background goroutine and hands its
// observer events to the Bubble Tea runtime through a channel.
type runBridge struct {
	events chan tea.Msg
	mu     sync.Mutex
	cancel context.CancelFunc
}

func newRunBridge() *runBridge {
	return &runBridge{events: make(chan tea.Msg, 256)}
}

// Progress implements campaign.Observer.
func (b *runBridge) Progress(done, total int) {
	b.events <- runProgressMsg{done: done, total: total}
}

// Log implements campaign.Observer.
func (b *runBridge) Log(e campaign.LogEntry) {
	b.events <- runLogMsg{entry: e}
}

// Start launches r.Run and returns the command that receives its first
// event.
func (b *runBridge) Start(r *campaign.Runner, cfg model.RunConfig) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())

	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	go func() {
		res, err := r.Run(ctx, cfg, b)
		cancel()
		b.events <- runFinishedMsg{result: res, err: err}
	}()

	return b.waitForEvent()
}

// Cancel stops the active run between rows. It reports whether a run was
// active.
func (b *runBridge) Cancel() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel == nil {
		return false
	}
	b.cancel()
	b.cancel = nil
	return true
}

// done clears the cancel func after the run has finished.
func (b *runBridge) done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancel = nil
}

// waitForEvent returns a tea.Cmd that waits for the next run event. The
// caller issues it again after every event except runFinishedMsg.
func (b *runBridge) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-b.events
		if !ok {
			return nil
		}
		return msg
	}
}
