package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/models"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/tasks"
)

// keyMap defines the [key.Binding] mapping for the watch view.
type keyMap struct {
	quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding { return []key.Binding{k.quit} }

func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.quit}} }

type progressUpdateMsg tasks.ProgressUpdate

type syncDoneMsg struct {
	result *tasks.SyncResult
	err    error
}

// Model renders one engine run: spinner, progress bar, and a terminal summary.
type Model struct {
	ctx    context.Context
	engine tasks.SyncEngine
	opts   tasks.RunOpts

	progressChan chan tasks.ProgressUpdate
	doneChan     chan syncDoneMsg

	update tasks.ProgressUpdate
	result *tasks.SyncResult
	err    error
	done   bool

	spinner spinner.Model
	bar     progress.Model
	width   int
	help    help.Model
	keys    keyMap
}

// NewModel creates a watch view for one run of the provided engine.
func NewModel(ctx context.Context, engine tasks.SyncEngine, opts tasks.RunOpts) *Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = styles.title

	return &Model{
		ctx:          ctx,
		engine:       engine,
		opts:         opts,
		progressChan: make(chan tasks.ProgressUpdate, 50),
		doneChan:     make(chan syncDoneMsg, 1),
		spinner:      sp,
		bar:          progress.New(progress.WithDefaultGradient()),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init starts the engine run and begins consuming progress updates.
func (m *Model) Init() tea.Cmd {
	go func() {
		result, err := m.engine.Run(m.ctx, m.progressChan, m.opts)
		m.doneChan <- syncDoneMsg{result: result, err: err}
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		width := msg.Width - 8
		if width > 60 {
			width = 60
		}
		if width > 0 {
			m.bar.Width = width
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressUpdateMsg:
		m.update = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case syncDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

// View renders the running state or, once the engine returns, the summary.
func (m *Model) View() string {
	if m.done {
		return m.renderSummary()
	}
	return m.renderRunning()
}

// waitForProgress blocks on the next update; the engine's terminal message
// always arrives on doneChan, so the command never stalls forever.
func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		select {
		case update := <-m.progressChan:
			return progressUpdateMsg(update)
		case done := <-m.doneChan:
			return done
		}
	}
}

func (m *Model) renderRunning() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Syncing playlist"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.phaseLine()))

	if m.update.Total > 0 {
		percent := float64(m.update.Step) / float64(m.update.Total)
		b.WriteString(fmt.Sprintf("\n%s\n", m.bar.ViewAs(percent)))
	}

	if m.update.Message != "" {
		b.WriteString(fmt.Sprintf("\n%s\n", m.update.Message))
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) phaseLine() string {
	switch m.update.Phase {
	case tasks.ResumeState:
		return "Loading progress record..."
	case tasks.FetchSource:
		return "Fetching source playlist..."
	case tasks.CreatePlaylist:
		return "Preparing destination playlist..."
	case tasks.SearchTracks, tasks.AttachTrack:
		return fmt.Sprintf("Processing tracks (%d/%d)", m.update.Step+1, m.update.Total)
	default:
		return "Working..."
	}
}

func (m *Model) renderSummary() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v", m.err)) + "\n"
	}
	if m.result == nil {
		return styles.err.Render("Sync produced no result") + "\n"
	}

	var b strings.Builder
	switch m.result.Status {
	case models.RunCompleted:
		b.WriteString(styles.ok.Render("✓ Sync complete"))
	case models.RunPaused:
		b.WriteString(styles.warn.Render(fmt.Sprintf("Sync paused at track %d", m.result.ResumeIndex+1)))
	default:
		b.WriteString(styles.err.Render("Sync failed"))
	}

	b.WriteString(fmt.Sprintf(
		"\n\nPlaylist: %s\nTracks: %d total, %d added, %d unmatched\n",
		m.result.PlaylistID, m.result.TotalItems, m.result.Matched, m.result.Missed,
	))

	if m.result.Status == models.RunPaused && m.result.Cause != nil {
		b.WriteString(styles.warn.Render(fmt.Sprintf("\nCause: %v", m.result.Cause)))
		b.WriteString(styles.help.Render("\nRun the command again to resume where it stopped."))
		b.WriteString("\n")
	}

	return b.String()
}

// Result exposes the terminal outcome after the program exits, so the CLI can
// map it to an exit code.
func (m *Model) Result() (*tasks.SyncResult, error) {
	return m.result, m.err
}
