package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crx/internal/tasks"
)

const (
	maxLogLines  = 100
	tickInterval = 250 * time.Millisecond
	// How long the final state stays visible before the screen is restored.
	doneLinger = time.Second
)

// categoryCount is the number of gauges rendered.
const categoryCount = len(tasks.Categories)

type logLine struct {
	level   tasks.LogLevel
	message string
}

type eventMsg tasks.Event

type tickMsg time.Time

type lingerMsg struct{}

// DashboardOpts configures a [Dashboard].
type DashboardOpts struct {
	// Operation is the header label, e.g. "Export" or "Import".
	Operation string
	Profile   string
	// Events is the reporter channel the engine writes to.
	Events <-chan tasks.Event
	// Cancel stops the running engine when the user quits early.
	Cancel context.CancelFunc
}

// Dashboard renders live operation progress. It is a [tea.Model]; all state
// mutation happens in Update.
type Dashboard struct {
	operation string
	profile   string
	started   time.Time

	events <-chan tasks.Event
	cancel context.CancelFunc

	progressByCat [categoryCount]*tasks.ProgressUpdate
	phaseStarted  [categoryCount]time.Time
	gauges        [categoryCount]progress.Model
	log           []logLine

	width      int
	done       bool
	cancelling bool
}

// NewDashboard creates a dashboard model for one operation.
func NewDashboard(opts DashboardOpts) *Dashboard {
	d := &Dashboard{
		operation: opts.Operation,
		profile:   opts.Profile,
		started:   time.Now(),
		events:    opts.Events,
		cancel:    opts.Cancel,
		width:     80,
	}
	for i := range d.gauges {
		d.gauges[i] = progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	}
	return d
}

// Done reports whether the operation finished rather than being quit early.
func (d *Dashboard) Done() bool { return d.done }

func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.waitForEvent(), tick())
}

func (d *Dashboard) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-d.events
		if !ok {
			return eventMsg(tasks.Event{Kind: tasks.EventDone})
		}
		return eventMsg(event)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return d.applyEvent(tasks.Event(msg))

	case tickMsg:
		return d, tick()

	case lingerMsg:
		return d, tea.Quit

	case tea.WindowSizeMsg:
		d.width = msg.Width
		for i := range d.gauges {
			d.gauges[i].Width = max(10, msg.Width-46)
		}
		return d, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if d.done {
				return d, tea.Quit
			}
			// Cancel and keep draining events until the engine unwinds
			if !d.cancelling && d.cancel != nil {
				d.cancelling = true
				d.cancel()
			}
			return d, nil
		}
	}
	return d, nil
}

func (d *Dashboard) applyEvent(event tasks.Event) (tea.Model, tea.Cmd) {
	switch event.Kind {
	case tasks.EventProgress:
		idx := int(event.Progress.Category)
		if idx >= 0 && idx < categoryCount {
			if d.phaseStarted[idx].IsZero() {
				d.phaseStarted[idx] = time.Now()
			}
			update := event.Progress
			d.progressByCat[idx] = &update
		}
		return d, d.waitForEvent()

	case tasks.EventLog:
		d.log = append(d.log, logLine{level: event.Log.Level, message: event.Log.Message})
		if len(d.log) > maxLogLines {
			d.log = d.log[len(d.log)-maxLogLines:]
		}
		return d, d.waitForEvent()

	case tasks.EventDone:
		d.done = true
		return d, tea.Tick(doneLinger, func(time.Time) tea.Msg {
			return lingerMsg{}
		})
	}
	return d, d.waitForEvent()
}

// eta estimates time remaining for one category from its observed rate.
func (d *Dashboard) eta(idx int) time.Duration {
	p := d.progressByCat[idx]
	if p == nil || d.phaseStarted[idx].IsZero() {
		return 0
	}
	if p.Total == 0 || p.Processed == 0 || p.Processed >= p.Total {
		return 0
	}
	elapsed := time.Since(d.phaseStarted[idx]).Seconds()
	if elapsed <= 0 {
		return 0
	}
	rate := float64(p.Processed) / elapsed
	remaining := float64(p.Total-p.Processed) / rate
	return time.Duration(remaining * float64(time.Second))
}

func (d *Dashboard) View() string {
	var b strings.Builder

	elapsed := time.Since(d.started)
	b.WriteString(styles.title.Render(fmt.Sprintf(" %s ", d.operation)))
	fmt.Fprintf(&b, " %s  |  elapsed: %dm %ds\n\n",
		d.profile, int(elapsed.Seconds())/60, int(elapsed.Seconds())%60)

	for i, category := range tasks.Categories {
		b.WriteString(d.gaugeView(i, category))
	}

	b.WriteString("\n")
	b.WriteString(d.logView())
	b.WriteString("\n")
	b.WriteString(d.statsView())

	if d.cancelling && !d.done {
		b.WriteString(styles.warn.Render("\n cancelling, waiting for in-flight writes... "))
	} else if d.done {
		b.WriteString(styles.ok.Render("\n done "))
	} else {
		b.WriteString(styles.help.Render("\n q to cancel "))
	}
	b.WriteString("\n")

	return b.String()
}

func (d *Dashboard) gaugeView(idx int, category tasks.Category) string {
	p := d.progressByCat[idx]

	var ratio float64
	var info string
	switch {
	case p == nil:
		info = "waiting..."
	case p.Total > 0:
		ratio = float64(p.Processed) / float64(p.Total)
		info = fmt.Sprintf("%d/%d (%d added, %d skip, %d fail)%s",
			p.Processed, p.Total, p.Added, p.Skipped+p.AlreadyPresent, p.Failed, formatETA(d.eta(idx)))
	case p.Processed > 0:
		// Streaming with unknown total
		info = fmt.Sprintf("%d so far", p.Processed)
	default:
		info = "0 items"
	}
	if ratio > 1 {
		ratio = 1
	}

	return fmt.Sprintf(" %-13s %s %s\n", category, d.gauges[idx].ViewAs(ratio), info)
}

func (d *Dashboard) logView() string {
	visible := 10
	start := 0
	if len(d.log) > visible {
		start = len(d.log) - visible
	}

	var b strings.Builder
	for _, line := range d.log[start:] {
		switch line.level {
		case tasks.LogSuccess:
			fmt.Fprintf(&b, " %s %s\n", styles.ok.Render("+"), line.message)
		case tasks.LogError:
			fmt.Fprintf(&b, " %s %s\n", styles.err.Render("x"), line.message)
		default:
			fmt.Fprintf(&b, " %s %s\n", styles.help.Render("-"), line.message)
		}
	}
	return b.String()
}

func (d *Dashboard) statsView() string {
	var added, skipped, failed int
	for _, p := range d.progressByCat {
		if p == nil {
			continue
		}
		added += p.Added
		skipped += p.AlreadyPresent + p.Skipped
		failed += p.Failed
	}
	return fmt.Sprintf(" %s | %s | %s\n",
		styles.ok.Render(fmt.Sprintf("%d added", added)),
		styles.help.Render(fmt.Sprintf("%d skipped", skipped)),
		styles.err.Render(fmt.Sprintf("%d failed", failed)))
}

func formatETA(eta time.Duration) string {
	secs := int(eta.Seconds())
	switch {
	case secs <= 0:
		return ""
	case secs >= 60:
		return fmt.Sprintf(" | ~%dm%ds left", secs/60, secs%60)
	default:
		return fmt.Sprintf(" | ~%ds left", secs)
	}
}

// Run drives the dashboard until the operation completes or the user quits.
// It returns whether the operation ran to completion.
func Run(opts DashboardOpts) (bool, error) {
	model := NewDashboard(opts)
	program := tea.NewProgram(model, tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return false, fmt.Errorf("running dashboard: %w", err)
	}
	if d, ok := final.(*Dashboard); ok {
		return d.Done(), nil
	}
	return model.Done(), nil
}
