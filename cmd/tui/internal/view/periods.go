package view

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

type periodsState int

const (
	periodsStateBrowse periodsState = iota
	periodsStateClose
	periodsStateReopen
)

type PeriodsModel struct {
	CommonModel
	periodService *period.Service
	user          string

	state    periodsState
	year     int
	table    table.Model
	statuses []*period.Status
	form     *huh.Form

	loading bool
	err     error
	status  string

	// Form bindings
	formNotes   string
	formReason  string
	formConfirm bool
}

func NewPeriodsModel(periodSvc *period.Service, user string) PeriodsModel {
	columns := []table.Column{
		{Title: "Period", Width: 9},
		{Title: "Status", Width: 8},
		{Title: "Opening", Width: 14},
		{Title: "Income", Width: 14},
		{Title: "Expense", Width: 14},
		{Title: "Closing", Width: 14},
		{Title: "Closed by", Width: 14},
	}

	return PeriodsModel{
		periodService: periodSvc,
		user:          user,
		year:          time.Now().Year(),
		table:         newTable(columns, 12),
		loading:       true,
	}
}

func newTable(columns []table.Column, height int) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

func (m PeriodsModel) Title() string { return "Periods" }

func (m PeriodsModel) ShortHelp() string {
	if m.state != periodsStateBrowse {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | [/]: year | c: close | o: reopen | r: refresh"
}

func (m PeriodsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m PeriodsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadPeriodsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.statuses = msg.statuses
		m.refreshTable()

		return m, nil

	case periodActionMsg:
		m.state = periodsStateBrowse
		m.form = nil
		m.table.Focus()

		if msg.err != nil {
			m.status = errorStyle.Render(fmt.Sprintf("Error: %v", msg.err))
		} else {
			m.status = successStyle.Render(msg.done)
		}

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(min(msg.Height-10, 12))
		return m, nil
	}

	if m.state == periodsStateBrowse {
		return m.updateBrowse(msg)
	}

	return m.updateForm(msg)
}

func (m PeriodsModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "[":
			m.year--
			m.loading = true

			return m, m.loadCmd()
		case "]":
			m.year++
			m.loading = true

			return m, m.loadCmd()
		case "c":
			return m.enterClose()
		case "o":
			return m.enterReopen()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m PeriodsModel) selected() *period.Status {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.statuses) {
		return nil
	}

	return m.statuses[idx]
}

func (m PeriodsModel) enterClose() (tea.Model, tea.Cmd) {
	st := m.selected()
	if st == nil {
		return m, nil
	}

	if st.Period.Closed {
		m.status = warningStyle.Render(fmt.Sprintf("%s is already closed", st.Period.Key))
		return m, nil
	}

	m.formNotes = ""
	m.formConfirm = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title(fmt.Sprintf("Close %s", st.Period.Key)).
				Description(fmt.Sprintf("Closing balance %s will be frozen.", FormatAmount(st.Live.Closing))),
			huh.NewInput().
				Key("notes").
				Title("Notes").
				Value(&m.formNotes),
			huh.NewConfirm().
				Title("Close the period?").
				Value(&m.formConfirm),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = periodsStateClose
	m.table.Blur()

	return m, m.form.Init()
}

func (m PeriodsModel) enterReopen() (tea.Model, tea.Cmd) {
	st := m.selected()
	if st == nil {
		return m, nil
	}

	if !st.Period.Closed {
		m.status = warningStyle.Render(fmt.Sprintf("%s is not closed", st.Period.Key))
		return m, nil
	}

	m.formReason = ""
	m.formConfirm = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("reason").
				Title(fmt.Sprintf("Why reopen %s?", st.Period.Key)).
				Value(&m.formReason).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("a reason is required")
					}

					return nil
				}),
			huh.NewConfirm().
				Title("Discard the closing snapshot?").
				Value(&m.formConfirm),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = periodsStateReopen
	m.table.Blur()

	return m, m.form.Init()
}

func (m PeriodsModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = periodsStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if !m.formConfirm {
		m.state = periodsStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	if m.state == periodsStateClose {
		return m, m.closeCmd()
	}

	return m, m.reopenCmd()
}

func (m PeriodsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading periods...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	header := fmt.Sprintf("Year: %s", activeStyle(fmt.Sprint(m.year)))

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.state != periodsStateBrowse && m.form != nil {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(54).
			Render(m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = m.status + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *PeriodsModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.statuses))
	for _, st := range m.statuses {
		rows = append(rows, periodRow(st))
	}

	m.table.SetRows(rows)
}

// periodRow shows the frozen figures of a closed period and the live ones otherwise.
func periodRow(st *period.Status) table.Row {
	f := st.Live
	state := "open"
	closedBy := ""

	if st.Period.Closed && st.Period.Figures != nil {
		f = *st.Period.Figures
		state = "closed"
		closedBy = st.Period.ClosedBy
	}

	return table.Row{
		st.Period.Key.String(),
		state,
		FormatAmount(f.Opening),
		FormatAmount(f.Income),
		FormatAmount(f.Expense),
		FormatAmount(f.Closing),
		closedBy,
	}
}

// Messages

type loadPeriodsMsg struct {
	statuses []*period.Status
	err      error
}

func (m PeriodsModel) loadCmd() tea.Cmd {
	year := m.year

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		statuses := make([]*period.Status, 0, 12)

		for month := time.January; month <= time.December; month++ {
			st, err := m.periodService.Status(ctx, period.Key{Year: year, Month: month})
			if err != nil {
				return loadPeriodsMsg{err: err}
			}

			statuses = append(statuses, st)
		}

		return loadPeriodsMsg{statuses: statuses}
	}
}

type periodActionMsg struct {
	done string
	err  error
}

func (m PeriodsModel) closeCmd() tea.Cmd {
	st := m.selected()
	if st == nil {
		return nil
	}

	key := st.Period.Key
	notes := m.formNotes

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		p, err := m.periodService.Close(ctx, key, m.user, notes)
		if err != nil {
			return periodActionMsg{err: err}
		}

		return periodActionMsg{done: fmt.Sprintf("Closed %s at %s", key, FormatAmount(p.Figures.Closing))}
	}
}

func (m PeriodsModel) reopenCmd() tea.Cmd {
	st := m.selected()
	if st == nil {
		return nil
	}

	key := st.Period.Key
	reason := m.formReason

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if _, err := m.periodService.Reopen(ctx, key, reason, m.user); err != nil {
			return periodActionMsg{err: err}
		}

		return periodActionMsg{done: fmt.Sprintf("Reopened %s", key)}
	}
}
