package main

import (
	"log/slog"
	"os"
	"os/user"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/tesouraria/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/tesouraria/internal/app"
	"github.com/MrJamesThe3rd/tesouraria/internal/config"
	"github.com/MrJamesThe3rd/tesouraria/internal/database"
)

type model struct {
	app  *app.App
	user string

	currentView View

	periodsView   view.PeriodsModel
	importView    view.ImportModel
	movementsView view.MovementsModel
}

type View int

const (
	ViewMenu      View = 0
	ViewPeriods   View = 1
	ViewImport    View = 2
	ViewMovements View = 3
)

func initialModel() (model, func()) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	a, err := app.New(db, cfg)
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	view.SetCurrency(a.Currency)

	name := "local"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}

	cleanup := func() {
		a.Audit.Wait()
		db.Close()
	}

	return model{
		app:           a,
		user:          name,
		currentView:   ViewMenu,
		periodsView:   view.NewPeriodsModel(a.Periods, name),
		importView:    view.NewImportModel(a.Import),
		movementsView: view.NewMovementsModel(a.Movements, a.Matching),
	}, cleanup
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewPeriods
				m.periodsView = view.NewPeriodsModel(m.app.Periods, m.user)

				return m, m.periodsView.Init()
			case "2":
				m.currentView = ViewImport
				m.importView = view.NewImportModel(m.app.Import)

				return m, m.importView.Init()
			case "3":
				m.currentView = ViewMovements
				m.movementsView = view.NewMovementsModel(m.app.Movements, m.app.Matching)

				return m, m.movementsView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewPeriods:
		var newModel tea.Model
		newModel, cmd = m.periodsView.Update(msg)
		m.periodsView = newModel.(view.PeriodsModel)
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	case ViewMovements:
		var newModel tea.Model
		newModel, cmd = m.movementsView.Update(msg)
		m.movementsView = newModel.(view.MovementsModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"Tesouraria\n\n" +
				"1. Periods\n" +
				"2. Import Spreadsheet\n" +
				"3. Movements\n\n" +
				"q. Quit",
		)
	case ViewPeriods:
		return m.periodsView.View()
	case ViewImport:
		return m.importView.View()
	case ViewMovements:
		return m.movementsView.View()
	}

	return "Unknown View"
}

func main() {
	m, cleanup := initialModel()
	defer cleanup()

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		cleanup()
		os.Exit(1)
	}
}
