package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/rowarena/tbl"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#666666"))

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateBrowse modelState = iota
	stateFilter
)

type interactiveModel struct {
	filename string
	columns  []table.Column
	rows     []table.Row
	table    table.Model
	filter   textinput.Model
	state    modelState
}

// tableData renders every row of t as strings, with column widths matching Tbl.Print.
func tableData(t *tbl.Tbl) ([]table.Column, []table.Row, error) {
	l, err := t.Layout(0)
	if err != nil {
		return nil, nil, err
	}
	fields := l.Fields.Slice()

	cols := make([]table.Column, len(fields))
	for i, f := range fields {
		d, _ := t.Def(f.Def)
		name := t.DefName(f.Def)
		cols[i] = table.Column{Title: name, Width: max(d.DisplayLen, len(name))}
	}

	rows := make([]table.Row, t.Rows())
	for r := range rows {
		row := make(table.Row, len(fields))
		for c := range fields {
			if row[c], err = t.GetCellStr(r, c); err != nil {
				return nil, nil, err
			}
		}
		rows[r] = row
	}
	return cols, rows, nil
}

// filterRows keeps the rows with any cell containing q.
func filterRows(rows []table.Row, q string) []table.Row {
	if q == "" {
		return rows
	}
	var out []table.Row
	for _, r := range rows {
		for _, c := range r {
			if strings.Contains(c, q) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func newInteractiveModel(filename string, t *tbl.Tbl, height int) (*interactiveModel, error) {
	cols, rows, err := tableData(t)
	if err != nil {
		return nil, err
	}

	tm := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#666666")).
		BorderBottom(true).
		Bold(true)
	st.Selected = st.Selected.
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4"))
	tm.SetStyles(st)

	fi := textinput.New()
	fi.Prompt = "/"
	fi.Width = 40

	return &interactiveModel{
		filename: filename,
		columns:  cols,
		rows:     rows,
		table:    tm,
		filter:   fi,
		state:    stateBrowse,
	}, nil
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if key, ok := msg.(tea.KeyMsg); ok {
		switch m.state {
		case stateBrowse:
			switch key.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "/":
				m.state = stateFilter
				m.table.Blur()
				return m, m.filter.Focus()
			}

		case stateFilter:
			switch key.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "enter", "esc":
				if key.String() == "esc" {
					m.filter.SetValue("")
					m.table.SetRows(m.rows)
				}
				m.state = stateBrowse
				m.filter.Blur()
				m.table.Focus()
				return m, nil
			}
			m.filter, cmd = m.filter.Update(msg)
			m.table.SetRows(filterRows(m.rows, m.filter.Value()))
			m.table.SetCursor(0)
			return m, cmd
		}
	}

	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.table.SetHeight(max(size.Height-8, 3))
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Table"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")
	b.WriteString(baseStyle.Render(m.table.View()))
	b.WriteString("\n")

	if sel := m.table.SelectedRow(); sel != nil {
		var parts []string
		for i, c := range sel {
			parts = append(parts, m.columns[i].Title+"="+c)
		}
		b.WriteString(detailStyle.Render(strings.Join(parts, "  ")))
	}
	b.WriteString("\n")

	if m.state == stateFilter {
		b.WriteString(m.filter.View())
	} else {
		b.WriteString(helpStyle.Render(fmt.Sprintf("%d/%d rows • ↑/↓ move • / filter • q quit",
			len(m.table.Rows()), len(m.rows))))
	}
	return b.String()
}

func runInteractive(filename string, t *tbl.Tbl) error {
	height := 20
	if _, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		height = max(h-8, 3)
	}
	m, err := newInteractiveModel(filename, t, height)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
