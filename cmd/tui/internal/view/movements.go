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

	"github.com/MrJamesThe3rd/tesouraria/internal/matching"
	"github.com/MrJamesThe3rd/tesouraria/internal/movement"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

type movementsState int

const (
	movementsStateBrowse movementsState = iota
	movementsStateCategory
	movementsStateAnnul
	movementsStateDelete
)

type MovementsModel struct {
	CommonModel
	movementService *movement.Service
	matchingService *matching.Service

	state     movementsState
	key       period.Key
	annulled  bool
	table     table.Model
	movements []*movement.Movement
	form      *huh.Form

	loading bool
	err     error
	status  string

	// Form bindings
	formCategory string
	formLearn    bool
	formReason   string
	formConfirm  bool
}

func NewMovementsModel(movementSvc *movement.Service, matchingSvc *matching.Service) MovementsModel {
	columns := []table.Column{
		{Title: "Date", Width: 12},
		{Title: "Kind", Width: 9},
		{Title: "Amount", Width: 14},
		{Title: "Description", Width: 36},
		{Title: "Category", Width: 16},
		{Title: "State", Width: 9},
	}

	return MovementsModel{
		movementService: movementSvc,
		matchingService: matchingSvc,
		key:             period.KeyOf(time.Now()),
		table:           newTable(columns, 15),
		loading:         true,
	}
}

func (m MovementsModel) Title() string { return "Movements" }

func (m MovementsModel) ShortHelp() string {
	if m.state != movementsStateBrowse {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | [/]: month | v: annulled | e: category | x: annul | d: delete | r: refresh"
}

func (m MovementsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m MovementsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadMovementsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.movements = msg.movements
		m.refreshTable()

		return m, nil

	case movementActionMsg:
		m.state = movementsStateBrowse
		m.form = nil
		m.table.Focus()

		if msg.err != nil {
			m.status = errorStyle.Render(fmt.Sprintf("Error: %v", msg.err))
		} else {
			m.status = successStyle.Render(msg.done)
		}

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	if m.state == movementsStateBrowse {
		return m.updateBrowse(msg)
	}

	return m.updateForm(msg)
}

func (m MovementsModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "[":
			m.key = period.KeyOf(m.key.Start().AddDate(0, -1, 0))
			m.loading = true

			return m, m.loadCmd()
		case "]":
			m.key = period.KeyOf(m.key.End())
			m.loading = true

			return m, m.loadCmd()
		case "v":
			m.annulled = !m.annulled
			m.loading = true

			return m, m.loadCmd()
		case "e":
			return m.enterCategory()
		case "x":
			return m.enterAnnul()
		case "d":
			return m.enterDelete()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m MovementsModel) selected() *movement.Movement {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.movements) {
		return nil
	}

	return m.movements[idx]
}

func (m MovementsModel) enterCategory() (tea.Model, tea.Cmd) {
	mv := m.selected()
	if mv == nil {
		return m, nil
	}

	m.formCategory = mv.Category
	m.formLearn = false

	if m.formCategory == "" {
		ctx, cancel := DbCtx()
		defer cancel()

		m.formCategory, _ = m.matchingService.Suggest(ctx, mv.Description)
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("category").
				Title("Category").
				Value(&m.formCategory).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("category cannot be empty")
					}

					return nil
				}),
			huh.NewConfirm().
				Key("learn").
				Title("Use it for similar descriptions?").
				Affirmative("Yes").
				Negative("No").
				Value(&m.formLearn),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = movementsStateCategory
	m.table.Blur()

	return m, m.form.Init()
}

func (m MovementsModel) enterAnnul() (tea.Model, tea.Cmd) {
	mv := m.selected()
	if mv == nil || mv.Annulled() {
		return m, nil
	}

	m.formReason = ""
	m.formConfirm = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("reason").
				Title("Reason").
				Value(&m.formReason).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("a reason is required")
					}

					return nil
				}),
			huh.NewConfirm().
				Title("Annul the movement?").
				Value(&m.formConfirm),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = movementsStateAnnul
	m.table.Blur()

	return m, m.form.Init()
}

func (m MovementsModel) enterDelete() (tea.Model, tea.Cmd) {
	if m.selected() == nil {
		return m, nil
	}

	m.formConfirm = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Delete the movement?").
				Description("Deleted movements no longer count towards any balance.").
				Value(&m.formConfirm),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = movementsStateDelete
	m.table.Blur()

	return m, m.form.Init()
}

func (m MovementsModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = movementsStateBrowse
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

	switch m.state {
	case movementsStateCategory:
		return m, m.categoryCmd()
	case movementsStateAnnul:
		if m.formConfirm {
			return m, m.annulCmd()
		}
	case movementsStateDelete:
		if m.formConfirm {
			return m, m.deleteCmd()
		}
	}

	m.state = movementsStateBrowse
	m.form = nil
	m.table.Focus()

	return m, nil
}

func (m MovementsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading movements...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	annulled := "hidden"
	if m.annulled {
		annulled = "shown"
	}

	header := fmt.Sprintf("Period: %s | [v] Annulled: %s", activeStyle(m.key.String()), activeStyle(annulled))

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.state != movementsStateBrowse && m.form != nil {
		desc := ""
		if mv := m.selected(); mv != nil {
			desc = mv.Description
		}

		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(54).
			Render(fmt.Sprintf("%s\n\n%s", desc, m.form.View()))

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = m.status + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *MovementsModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.movements))
	for _, mv := range m.movements {
		state := ""
		if mv.Annulled() {
			state = "annulled"
		}

		rows = append(rows, table.Row{
			FormatDate(mv.Date),
			string(mv.Kind),
			FormatAmount(mv.Signed()),
			mv.Description,
			mv.Category,
			state,
		})
	}

	m.table.SetRows(rows)
}

// Messages

type loadMovementsMsg struct {
	movements []*movement.Movement
	err       error
}

func (m MovementsModel) loadCmd() tea.Cmd {
	filter := movement.ListFilter{Period: &m.key, IncludeAnnulled: m.annulled}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		ms, err := m.movementService.List(ctx, filter)

		return loadMovementsMsg{movements: ms, err: err}
	}
}

type movementActionMsg struct {
	done string
	err  error
}

func (m MovementsModel) categoryCmd() tea.Cmd {
	mv := m.selected()
	if mv == nil {
		return nil
	}

	id := mv.ID
	description := mv.Description
	category := strings.TrimSpace(m.formCategory)
	learn := m.formLearn

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if _, err := m.movementService.Update(ctx, id, movement.UpdateParams{Category: &category}); err != nil {
			return movementActionMsg{err: err}
		}

		if learn {
			if err := m.matchingService.Learn(ctx, description, category); err != nil {
				return movementActionMsg{err: err}
			}
		}

		return movementActionMsg{done: fmt.Sprintf("Category set to %s", category)}
	}
}

func (m MovementsModel) annulCmd() tea.Cmd {
	mv := m.selected()
	if mv == nil {
		return nil
	}

	id := mv.ID
	reason := m.formReason

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if err := m.movementService.Annul(ctx, id, reason); err != nil {
			return movementActionMsg{err: err}
		}

		return movementActionMsg{done: "Movement annulled"}
	}
}

func (m MovementsModel) deleteCmd() tea.Cmd {
	mv := m.selected()
	if mv == nil {
		return nil
	}

	id := mv.ID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if err := m.movementService.Delete(ctx, id); err != nil {
			return movementActionMsg{err: err}
		}

		return movementActionMsg{done: "Movement deleted"}
	}
}
