package view

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/tesouraria/internal/importer"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateFormatSelect importState = iota
	importStateFilePick
	importStateImporting
	importStatePreview
	importStateResult
)

type ImportModel struct {
	CommonModel
	importService *importer.Service

	state          importState
	filePicker     filepicker.Model
	path           string
	selectedFormat importer.Format
	formatOptions  []importer.Format
	formatCursor   int

	report  importer.Report
	dryRun  bool
	runList list.Model

	status string
	err    error
}

func NewImportModel(impSvc *importer.Service) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ImportModel{
		importService: impSvc,
		filePicker:    fp,
		formatOptions: impSvc.Formats(),
	}
}

func (m ImportModel) Title() string { return "Import Spreadsheet" }

func (m ImportModel) ShortHelp() string {
	switch m.state {
	case importStatePreview:
		if m.dryRun {
			return "y: commit | Esc: cancel"
		}

		return "Esc: back"
	}

	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.filePicker.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

		if m.state == importStateFormatSelect {
			return m.updateFormatSelect(msg)
		}

		if m.state == importStatePreview {
			return m.updatePreview(msg)
		}

	case importResultMsg:
		if msg.report == nil {
			m.state = importStateResult
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		m.err = msg.err
		m.report = msg.report
		m.dryRun = msg.dryRun
		m.state = importStatePreview
		m.runList = newRunList(msg.report)

		totals := msg.report.Totals()
		switch {
		case msg.err != nil:
			m.status = fmt.Sprintf("Import interrupted: %v", msg.err)
		case msg.dryRun:
			m.status = fmt.Sprintf("Preview: %d rows read, %d new, %d duplicates, %d in closed periods.",
				totals.Read, totals.New, totals.Duplicate, totals.RejectedClosed)
		default:
			m.status = fmt.Sprintf("Imported %d movements, %d duplicates skipped.", totals.Inserted, totals.Duplicate)
		}

		if failed := len(msg.report.Failed()); failed > 0 && !msg.dryRun {
			m.status += fmt.Sprintf(" %d periods rolled back.", failed)
		}

		return m, nil
	}

	if m.state != importStateFilePick {
		return m, nil
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.path = path
		m.state = importStateImporting
		m.status = fmt.Sprintf("Reading %s...", path)

		return m, m.importCmd(path, true)
	}

	return m, cmd
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStateFilePick:
		m.state = importStateFormatSelect
		return m, nil
	case importStatePreview, importStateResult:
		m.state = importStateFormatSelect
		m.report = nil
		m.err = nil
		m.status = ""

		return m, nil
	}

	return m, Back
}

func (m ImportModel) updateFormatSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.formatCursor > 0 {
			m.formatCursor--
		}
	case tea.KeyDown:
		if m.formatCursor < len(m.formatOptions)-1 {
			m.formatCursor++
		}
	case tea.KeyEnter:
		if len(m.formatOptions) == 0 {
			return m, nil
		}

		m.selectedFormat = m.formatOptions[m.formatCursor]
		m.state = importStateFilePick

		return m, m.filePicker.Init()
	}

	return m, nil
}

func (m ImportModel) updatePreview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "y" && m.dryRun && m.err == nil {
		m.state = importStateImporting
		m.status = fmt.Sprintf("Importing %s...", m.path)

		return m, m.importCmd(m.path, false)
	}

	var cmd tea.Cmd
	m.runList, cmd = m.runList.Update(msg)

	return m, cmd
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateFormatSelect:
		return m.viewFormatSelect()
	case importStateFilePick:
		return m.viewFilePick()
	case importStateImporting:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case importStatePreview:
		return m.viewPreview()
	case importStateResult:
		return m.viewResult()
	}

	return ""
}

func (m ImportModel) viewFormatSelect() string {
	s := "Select format:\n\n"

	for i, f := range m.formatOptions {
		cursor := " "
		if i == m.formatCursor {
			cursor = ">"
		}

		s += fmt.Sprintf("%s %s\n", cursor, string(f))
	}

	return lipgloss.NewStyle().Padding(2).Render(s)
}

func (m ImportModel) viewFilePick() string {
	return lipgloss.NewStyle().Padding(1).Render(
		fmt.Sprintf("Select file to import (%s):\n\n%s", m.selectedFormat, m.filePicker.View()),
	)
}

func (m ImportModel) viewPreview() string {
	status := successStyle.Render(m.status)
	if m.err != nil || (!m.dryRun && len(m.report.Failed()) > 0) {
		status = errorStyle.Render(m.status)
	}

	footer := "(Esc to go back)"
	if m.dryRun && m.err == nil {
		footer = "Nothing was written. Press y to import, Esc to cancel."
	}

	return lipgloss.NewStyle().Padding(1).Render(
		lipgloss.JoinVertical(lipgloss.Left, status, "", m.runList.View(), footer),
	)
}

func (m ImportModel) viewResult() string {
	return lipgloss.NewStyle().Padding(2).Render(errorStyle.Render(m.status) + "\n\n(Esc to go back)")
}

// Messages

type importResultMsg struct {
	report importer.Report
	dryRun bool
	err    error
}

func (m ImportModel) importCmd(path string, dryRun bool) tea.Cmd {
	format := m.selectedFormat

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return importResultMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		report, err := m.importService.Import(ctx, format, f, dryRun)

		return importResultMsg{report: report, dryRun: dryRun, err: err}
	}
}

// Run list

type runItem struct {
	run *importer.Run
}

func (i runItem) Title() string       { return i.run.Period.String() }
func (i runItem) Description() string { return "" }
func (i runItem) FilterValue() string { return i.run.Period.String() }

func newRunList(report importer.Report) list.Model {
	items := make([]list.Item, 0, len(report))
	for _, k := range report.Keys() {
		items = append(items, runItem{run: report[k]})
	}

	l := list.New(items, runDelegate{}, 90, 20)
	l.Title = "Periods"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return l
}

type runDelegate struct{}

func (d runDelegate) Height() int                             { return 3 }
func (d runDelegate) Spacing() int                            { return 0 }
func (d runDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d runDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(runItem)
	if !ok {
		return
	}

	run := item.run

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
	}

	line1 := fmt.Sprintf("%s%s  read %d  new %d  dup %d  closed %d  errors %d",
		cursor, activeStyle(run.Period.String()),
		run.Read, run.New, run.Duplicate, run.RejectedClosed, len(run.RowErrors),
	)

	var notes []string

	switch {
	case run.Err != nil:
		notes = append(notes, errorStyle.Render("rolled back: "+run.Err.Error()))
	case run.Figures != nil:
		notes = append(notes, fmt.Sprintf("closing %s", FormatAmount(run.Figures.Closing)))
	}

	if run.Warning != nil {
		notes = append(notes, warningStyle.Render(fmt.Sprintf("source states %s (difference %s)",
			FormatAmount(run.Warning.Expected), FormatAmount(run.Warning.Delta))))
	}

	if run.CheckErr != nil {
		notes = append(notes, warningStyle.Render("balance not checked: "+run.CheckErr.Error()))
	}

	fmt.Fprintf(w, "%s\n      %s\n", line1, strings.Join(notes, "  "))
}
