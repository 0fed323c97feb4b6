package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/services"
	"github.com/desertthunder/likeshift/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	WelcomeView ViewState = iota
	ExtractView
	ConfirmView
	TransferView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	view   ViewState
	source services.LibraryService
	dest   services.LibraryService
	engine *tasks.MigrationEngine

	width  int
	height int
	spin   spinner.Model
	bar    progress.Model
	help   help.Model
	keys   keyMap

	sourceUser string
	destUser   string

	eventChan chan tasks.Event
	done      chan tea.Msg

	total       int
	fetched     int
	transferred int
	percent     int
	lastTrack   string
	rateWait    int
	failures    []string

	snapshot *models.Snapshot
	result   *tasks.TransferResult
	err      error
}

type profilesMsg struct {
	source string
	dest   string
	err    error
}

type eventMsg tasks.Event

type extractDoneMsg struct {
	snapshot *models.Snapshot
	err      error
}

type transferDoneMsg struct {
	result *tasks.TransferResult
	err    error
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, source, dest services.LibraryService, engine *tasks.MigrationEngine) *Model {
	return &Model{
		ctx:    ctx,
		view:   WelcomeView,
		source: source,
		dest:   dest,
		engine: engine,
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:    progress.New(progress.WithDefaultGradient()),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init fetches both account profiles for the welcome screen.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.fetchProfiles())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(msg.Width-8, 60)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case WelcomeView:
			return m.handleWelcomeKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		default:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case profilesMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.sourceUser = msg.source
		m.destUser = msg.dest
		return m, nil

	case eventMsg:
		m.applyEvent(tasks.Event(msg))
		return m, m.waitForEvent()

	case extractDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = ResultView
			return m, nil
		}
		m.snapshot = msg.snapshot
		m.view = ConfirmView
		return m, nil

	case transferDoneMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		return m, nil
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case WelcomeView:
		return m.renderWelcome()
	case ExtractView:
		return m.renderExtract()
	case ConfirmView:
		return m.renderConfirm()
	case TransferView:
		return m.renderTransfer()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// applyEvent folds one engine event into the display state.
func (m *Model) applyEvent(ev tasks.Event) {
	// Any non-rate-limit event means the backoff is over.
	if ev.Type != tasks.EventRateLimit {
		m.rateWait = 0
	}

	switch ev.Type {
	case tasks.EventTotal:
		m.total = ev.Total
	case tasks.EventTrack:
		m.fetched++
		if ev.Track != nil {
			m.lastTrack = ev.Track.Name
		}
	case tasks.EventProgress:
		if ev.Transferred > 0 {
			m.transferred = ev.Transferred
			m.percent = ev.Percent
		}
		if ev.CurrentTrack != "" {
			m.lastTrack = ev.CurrentTrack
		}
	case tasks.EventRateLimit:
		m.rateWait = ev.RetryAfter
	case tasks.EventError:
		if ev.Context != "" {
			m.failures = append(m.failures, ev.Context)
		}
	}
}

func (m *Model) handleWelcomeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.view = ExtractView
		return m, m.startExtract()
	}
	return m, nil
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n":
		return m, tea.Quit
	case "y":
		m.view = TransferView
		return m, m.startTransfer()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = WelcomeView
		m.snapshot = nil
		m.result = nil
		m.err = nil
		m.total = 0
		m.fetched = 0
		m.transferred = 0
		m.percent = 0
		m.lastTrack = ""
		m.failures = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) fetchProfiles() tea.Cmd {
	return func() tea.Msg {
		sourceProfile, err := m.source.UserProfile(m.ctx)
		if err != nil {
			return profilesMsg{err: fmt.Errorf("source account: %w", err)}
		}
		destProfile, err := m.dest.UserProfile(m.ctx)
		if err != nil {
			return profilesMsg{err: fmt.Errorf("destination account: %w", err)}
		}
		return profilesMsg{source: sourceProfile.DisplayName, dest: destProfile.DisplayName}
	}
}

func (m *Model) startExtract() tea.Cmd {
	m.eventChan = make(chan tasks.Event, 50)
	m.done = make(chan tea.Msg, 1)

	events, done := m.eventChan, m.done
	go func() {
		snapshot, err := m.engine.Extract(m.ctx, m.source, events)
		close(events)
		done <- extractDoneMsg{snapshot: snapshot, err: err}
	}()

	return tea.Batch(m.spin.Tick, m.waitForEvent())
}

func (m *Model) startTransfer() tea.Cmd {
	m.eventChan = make(chan tasks.Event, 50)
	m.done = make(chan tea.Msg, 1)

	events, done := m.eventChan, m.done
	snapshot := m.snapshot
	go func() {
		result, err := m.engine.Transfer(m.ctx, m.dest, snapshot, true, events)
		close(events)
		done <- transferDoneMsg{result: result, err: err}
	}()

	return tea.Batch(m.spin.Tick, m.waitForEvent())
}

// waitForEvent delivers the next engine event, or the phase's terminal
// message once the event channel closes.
func (m *Model) waitForEvent() tea.Cmd {
	events, done := m.eventChan, m.done
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return <-done
		}
		return eventMsg(ev)
	}
}

func (m *Model) renderWelcome() string {
	title := styles.title.Render("Liked Songs Migration")

	accounts := fmt.Sprintf("Source:      %s\nDestination: %s", m.orPending(m.sourceUser), m.orPending(m.destUser))

	return fmt.Sprintf("%s\n%s\n\n%s", title, accounts,
		styles.help.Render("enter: start extraction • q: quit"))
}

func (m *Model) orPending(name string) string {
	if name == "" {
		return styles.warn.Render("loading...")
	}
	return name
}

func (m *Model) renderExtract() string {
	title := styles.title.Render("Extracting Liked Songs")

	var count string
	if m.total > 0 {
		count = fmt.Sprintf("%d / %d tracks", m.fetched, m.total)
	} else {
		count = fmt.Sprintf("%d tracks", m.fetched)
	}

	status := fmt.Sprintf("%s %s", m.spin.View(), count)
	if m.lastTrack != "" {
		status += fmt.Sprintf("\nLast: %s", m.lastTrack)
	}
	if m.rateWait > 0 {
		status += "\n" + styles.warn.Render(fmt.Sprintf("Rate limited, waiting %ds...", m.rateWait))
	}

	return fmt.Sprintf("%s\n%s", title, status)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Extraction Complete")
	info := fmt.Sprintf("Captured %d tracks.\n\nTransfer to %s in original like order?", m.snapshot.Count(), m.orPending(m.destUser))

	return fmt.Sprintf("%s\n%s\n\n%s", title, info,
		styles.help.Render("y: transfer • n: quit"))
}

func (m *Model) renderTransfer() string {
	title := styles.title.Render("Transferring Liked Songs")

	bar := m.bar.ViewAs(float64(m.percent) / 100)
	status := fmt.Sprintf("%s\n%d / %d transferred", bar, m.transferred, m.snapshot.Count())
	if m.lastTrack != "" {
		status += fmt.Sprintf("\nLast: %s", m.lastTrack)
	}
	if m.rateWait > 0 {
		status += "\n" + styles.warn.Render(fmt.Sprintf("Rate limited, waiting %ds...", m.rateWait))
	}
	if len(m.failures) > 0 {
		status += "\n" + styles.warn.Render(fmt.Sprintf("%d tracks failed so far", len(m.failures)))
	}

	return fmt.Sprintf("%s\n%s", title, status)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Migration failed: %v\n\nPress r to restart, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to restart, q to quit")
	}

	title := styles.ok.Render("✓ Migration Complete!")
	info := fmt.Sprintf("\nTransferred: %d/%d tracks", m.result.Transferred, m.result.Total)

	var failed string
	if m.result.Failed > 0 {
		var lines []string
		for _, name := range m.failures {
			lines = append(lines, fmt.Sprintf("  • %s", name))
		}
		failed = fmt.Sprintf("\n\n%s\n%s",
			styles.warn.Render(fmt.Sprintf("Failed to transfer %d tracks:", m.result.Failed)),
			strings.Join(lines, "\n"))
	}

	return fmt.Sprintf("%s%s%s\n\n%s", title, info, failed,
		styles.help.Render("r: restart • q: quit"))
}
