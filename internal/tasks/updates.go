package tasks

import (
	"fmt"
	"io"
	"sync"
)

// Category identifies one part of a library.
type Category int

const (
	CategoryWatchlist Category = iota
	CategoryCrunchylists
	CategoryRatings
	CategoryHistory
)

// Categories lists every category in processing order.
var Categories = [...]Category{
	CategoryWatchlist,
	CategoryCrunchylists,
	CategoryRatings,
	CategoryHistory,
}

func (c Category) String() string {
	switch c {
	case CategoryWatchlist:
		return "Watchlist"
	case CategoryCrunchylists:
		return "Crunchylists"
	case CategoryRatings:
		return "Ratings"
	case CategoryHistory:
		return "History"
	default:
		return ""
	}
}

// ProgressUpdate is a point-in-time counter snapshot for one category.
//
// A Total of 0 with a nonzero Processed means the total is not yet known,
// as when streaming history pages.
type ProgressUpdate struct {
	Category       Category
	Total          int
	Processed      int
	Added          int
	Skipped        int
	AlreadyPresent int
	Failed         int
}

// EventKind discriminates the [Event] union.
type EventKind int

const (
	EventProgress EventKind = iota
	EventLog
	EventDone
)

// LogLevel marks the outcome a log line reports.
type LogLevel int

const (
	LogSuccess LogLevel = iota
	LogSkip
	LogError
)

// LogEvent is one per-item outcome line.
type LogEvent struct {
	Level   LogLevel
	Message string
}

// Event is what an operation emits while running. Exactly one payload field
// is meaningful for each kind.
type Event struct {
	Kind     EventKind
	Progress ProgressUpdate
	Log      LogEvent
}

// Reporter receives operation events. Implementations must not block the
// calling operation.
type Reporter interface {
	Progress(update ProgressUpdate)
	Success(msg string)
	Skip(msg string)
	Error(msg string)

	// Done signals that no further events follow.
	Done()
}

// ChannelReporter forwards events over a channel for a UI consumer.
// Progress and log sends never block: when the buffer is full the event is
// dropped, since a newer counter snapshot always supersedes an older one.
// Done is delivered unconditionally so the consumer can terminate.
type ChannelReporter struct {
	ch chan Event
}

// NewChannelReporter creates a reporter with the given buffer size.
func NewChannelReporter(buffer int) *ChannelReporter {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelReporter{ch: make(chan Event, buffer)}
}

// Events returns the channel a consumer reads from.
func (r *ChannelReporter) Events() <-chan Event {
	return r.ch
}

func (r *ChannelReporter) send(event Event) {
	select {
	case r.ch <- event:
	default:
		// Buffer full, drop the event
	}
}

func (r *ChannelReporter) Progress(update ProgressUpdate) {
	r.send(Event{Kind: EventProgress, Progress: update})
}

func (r *ChannelReporter) Success(msg string) {
	r.send(Event{Kind: EventLog, Log: LogEvent{Level: LogSuccess, Message: msg}})
}

func (r *ChannelReporter) Skip(msg string) {
	r.send(Event{Kind: EventLog, Log: LogEvent{Level: LogSkip, Message: msg}})
}

func (r *ChannelReporter) Error(msg string) {
	r.send(Event{Kind: EventLog, Log: LogEvent{Level: LogError, Message: msg}})
}

func (r *ChannelReporter) Done() {
	r.ch <- Event{Kind: EventDone}
}

// WriterReporter prints per-item outcomes as plain lines. Progress counters
// are not printed; callers render a summary after the operation instead.
type WriterReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterReporter creates a reporter writing to w.
func NewWriterReporter(w io.Writer) *WriterReporter {
	return &WriterReporter{w: w}
}

func (r *WriterReporter) line(prefix, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "  %s %s\n", prefix, msg)
}

func (r *WriterReporter) Progress(ProgressUpdate) {}

func (r *WriterReporter) Success(msg string) { r.line("+", msg) }

func (r *WriterReporter) Skip(msg string) { r.line("-", msg) }

func (r *WriterReporter) Error(msg string) { r.line("x", msg) }

func (r *WriterReporter) Done() {}

type nopReporter struct{}

func (nopReporter) Progress(ProgressUpdate) {}
func (nopReporter) Success(string)          {}
func (nopReporter) Skip(string)             {}
func (nopReporter) Error(string)            {}
func (nopReporter) Done()                   {}
