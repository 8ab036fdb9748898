package campaign

import (
	"log/slog"
	"time"
)

// LogEntry is one human-readable line about the run.
type LogEntry struct {
	Time    time.Time
	Level   slog.Level
	Message string
}

// String formats the entry as "[HH:MM:SS] message".
func (e LogEntry) String() string {
	return "[" + e.Time.Format("15:04:05") + "] " + e.Message
}

// Observer receives progress ticks and log lines. Both methods are
// called synchronously from the goroutine executing Run, so
// implementations must be safe to call off the UI goroutine.
type Observer interface {
	Progress(done, total int)
	Log(entry LogEntry)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are
// ignored.
type ObserverFuncs struct {
	OnProgress func(done, total int)
	OnLog      func(entry LogEntry)
}

// Progress implements Observer.
func (f ObserverFuncs) Progress(done, total int) {
	if f.OnProgress != nil {
		f.OnProgress(done, total)
	}
}

// Log implements Observer.
func (f ObserverFuncs) Log(entry LogEntry) {
	if f.OnLog != nil {
		f.OnLog(entry)
	}
}
