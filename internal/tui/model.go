// Package tui is the interactive terminal front-end. It is a pure display
// collaborator: every keypress dispatches into the application context and
// the panes redraw from the surfaces' latest snapshots.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gis-qa/reviewer/internal/app"
	"github.com/gis-qa/reviewer/internal/view"
)

// Surfaces bundles the TUI's implementations of the display interfaces.
// Construct them first, hand AppSurfaces() to app.New, then build the Model.
type Surfaces struct {
	Canvas    *StatusCanvas
	Presenter *SessionPresenter
	Toast     *Toast
	confirm   *armedConfirmer
}

// NewSurfaces creates the display surface set.
func NewSurfaces() *Surfaces {
	return &Surfaces{
		Canvas:    NewStatusCanvas(),
		Presenter: &SessionPresenter{},
		Toast:     &Toast{},
		confirm:   &armedConfirmer{},
	}
}

// AutoConfirm disables interactive confirmation; headless commands call it
// since the operator already opted in on the command line.
func (s *Surfaces) AutoConfirm() { s.confirm.autoConfirm() }

// AppSurfaces adapts the set to the engine's surface contract.
func (s *Surfaces) AppSurfaces() app.Surfaces {
	return app.Surfaces{
		Canvas:    s.Canvas,
		Table:     s.Presenter,
		Dashboard: dashboardAdapter{p: s.Presenter},
		Notifier:  s.Toast,
		Confirmer: s.confirm,
	}
}

type engineDoneMsg struct {
	err error
}

type downloadDoneMsg struct {
	path string
	err  error
}

// toastExpiredMsg only triggers a redraw; the Toast clears itself.
type toastExpiredMsg struct{}

// Model is the bubbletea model.
type Model struct {
	app      *app.Context
	surfaces *Surfaces

	tbl    table.Model
	width  int
	height int

	working bool
	err     error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	cardStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	overlayStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("63")).Padding(1, 4)
)

// NewModel builds the model over an already-constructed application context.
func NewModel(a *app.Context, s *Surfaces) Model {
	columns := []table.Column{
		{Title: "QA ID", Width: 12},
		{Title: "Status", Width: 26},
		{Title: "File", Width: 24},
		{Title: "Notes", Width: 36},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	return Model{app: a, surfaces: s, tbl: tbl}
}

// Init kicks off the initial session load.
func (m Model) Init() tea.Cmd {
	return m.engineCmd(func(ctx context.Context) error {
		return m.app.Reload(ctx)
	})
}

func (m Model) engineCmd(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return engineDoneMsg{err: fn(context.Background())}
	}
}

// toastExpiryCmd schedules a redraw for when the current toast expires.
func (m Model) toastExpiryCmd() tea.Cmd {
	d := m.surfaces.Toast.remaining()
	if d <= 0 {
		return nil
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return toastExpiredMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tbl.SetHeight(max(6, m.height-14))

	case engineDoneMsg:
		m.working = false
		m.err = msg.err
		m.refreshTable()
		return m, m.toastExpiryCmd()

	case downloadDoneMsg:
		m.working = false
		if msg.err != nil {
			m.surfaces.Toast.Error(fmt.Sprintf("Download failed: %v", msg.err))
		} else {
			m.surfaces.Toast.Success("Saved " + msg.path)
		}
		return m, m.toastExpiryCmd()

	case toastExpiredMsg:
		return m, nil

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key != "a" {
		m.surfaces.confirm.disarm()
	}
	if m.working && key != "q" && key != "ctrl+c" {
		return nil
	}

	switch key {
	case "q", "ctrl+c":
		return tea.Quit

	case "tab":
		if m.app.Coordinator.Current() == view.StateDashboard {
			m.app.Coordinator.SwitchTo(view.StateGIS)
		} else {
			m.app.Coordinator.SwitchTo(view.StateDashboard)
		}
		return nil

	case "r":
		m.working = true
		return m.engineCmd(m.app.Reload)

	case "enter":
		qaID := m.selectedQaID()
		if qaID == "" {
			return nil
		}
		m.working = true
		return m.engineCmd(func(ctx context.Context) error {
			return m.app.SelectRow(ctx, qaID)
		})

	case "c":
		qaID := m.selectedQaID()
		if qaID == "" {
			return nil
		}
		m.working = true
		return m.engineCmd(func(ctx context.Context) error {
			return m.app.Convert.ConvertOne(ctx, qaID)
		})

	case "a":
		// First press surfaces the confirmation prompt (the workflow's
		// Confirm call stores it and declines); the second press arms the
		// confirmer so the same call goes through.
		if m.surfaces.confirm.pending() != "" {
			m.surfaces.confirm.arm()
		}
		m.working = true
		return m.engineCmd(m.app.Convert.ConvertAll)

	case "d":
		m.working = true
		return func() tea.Msg {
			path, err := m.app.Download(context.Background())
			return downloadDoneMsg{path: path, err: err}
		}

	case "x":
		m.working = true
		return func() tea.Msg {
			path, err := m.app.Consolidate(context.Background())
			return downloadDoneMsg{path: path, err: err}
		}
	}
	return nil
}

func (m *Model) selectedQaID() string {
	row := m.tbl.SelectedRow()
	if row == nil {
		return ""
	}
	return row[0]
}

func (m *Model) refreshTable() {
	sess, _ := m.surfaces.Presenter.snapshot()
	if sess == nil {
		return
	}
	rows := make([]table.Row, 0, len(sess.DetailRows))
	for i := range sess.DetailRows {
		r := &sess.DetailRows[i]
		rows = append(rows, table.Row{r.QaID, r.FinalStatus, r.OriginalFilename, r.ReasonNotes})
	}
	m.tbl.SetRows(rows)
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading review session..."
	}

	_, _, overlay := m.surfaces.Toast.snapshot()
	if overlay != "" {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			overlayStyle.Render(overlay))
	}

	var body string
	if m.app.Coordinator.Current() == view.StateDashboard {
		body = m.renderDashboard()
	} else {
		body = m.renderGIS()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderToast(),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	sess, _ := m.surfaces.Presenter.snapshot()
	id := "-"
	if sess != nil {
		id = sess.ID
	}
	return titleStyle.Render("gis-qa reviewer") +
		mutedStyle.Render(fmt.Sprintf("  session=%s  view=%s", id, m.app.Coordinator.Current()))
}

func (m Model) renderDashboard() string {
	sess, counts := m.surfaces.Presenter.snapshot()

	if sess == nil || !sess.Loaded || counts.Total == 0 {
		msg := "No report data available for this session."
		if sess != nil && sess.HasError {
			msg = dangerStyle.Render("Session data could not be loaded. Press r to retry.")
		}
		return cardStyle.Render(msg)
	}

	cards := []string{
		cardStyle.Render(fmt.Sprintf("Features\n%d", counts.Total)),
		cardStyle.Render(warnStyle.Render(fmt.Sprintf("Review\n%d", counts.Review))),
		cardStyle.Render(fmt.Sprintf("Candidates\n%d", counts.Candidate)),
		cardStyle.Render(okStyle.Render(fmt.Sprintf("Valid\n%d", counts.Valid))),
		cardStyle.Render(fmt.Sprintf("Auto-fixed\n%d", counts.Fixed)),
		cardStyle.Render(fmt.Sprintf("Clean files\n%d", sess.CleanFileCount)),
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, cards...)

	if counts.Candidate == 0 {
		banner := okStyle.Render("All clear: no features are awaiting conversion.")
		return lipgloss.JoinVertical(lipgloss.Left, row, banner)
	}
	return row
}

func (m Model) renderGIS() string {
	left := m.tbl.View()
	right := m.renderMapPane()
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

func (m Model) renderMapPane() string {
	layers, popup, viewport := m.surfaces.Canvas.snapshot()

	lines := []string{titleStyle.Render("Map")}
	if len(layers) == 0 {
		lines = append(lines, mutedStyle.Render("no layers attached"))
	}
	for id, l := range layers {
		emphasized := 0
		for _, on := range l.emphasized {
			if on {
				emphasized++
			}
		}
		line := fmt.Sprintf("%s: %d features (%s)", id, l.featureCount, l.style.Color)
		if emphasized > 0 {
			line += warnStyle.Render(" *")
		}
		lines = append(lines, line)
	}
	if viewport != "" {
		lines = append(lines, mutedStyle.Render("viewport: "+viewport))
	}
	if popup != "" {
		lines = append(lines, "", cardStyle.Render(popup))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderToast() string {
	level, message, _ := m.surfaces.Toast.snapshot()
	if prompt := m.surfaces.confirm.pending(); prompt != "" {
		return warnStyle.Render(prompt + " Press a again to confirm.")
	}
	if message == "" {
		return ""
	}
	switch level {
	case "ok":
		return okStyle.Render(message)
	case "error":
		return dangerStyle.Render(message)
	default:
		return mutedStyle.Render(message)
	}
}

func (m Model) renderFooter() string {
	parts := []string{
		"tab view", "enter show on map", "c convert", "a convert all",
		"d download", "x consolidate", "r reload", "q quit",
	}
	if m.working {
		parts = append([]string{warnStyle.Render("working...")}, parts...)
	}
	return mutedStyle.Render(strings.Join(parts, " | "))
}
