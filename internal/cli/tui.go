package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/render"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	detailKeyStyle    = lipgloss.NewStyle().Foreground(colorGray).Width(12)
)

// =============================================================================
// PackageListModel - Interactive tree browser
// =============================================================================

// PackageListModel is the bubbletea model for browsing a resolved tree.
// Enter toggles a detail pane with the discovery path of the package under
// the cursor.
type PackageListModel struct {
	Title    string
	Packages []*deps.ResolvedPackage
	Cursor   int
	Height   int
	Offset   int
	Detail   bool
}

// NewPackageListModel creates a browser over the packages of tree, root first.
func NewPackageListModel(title string, tree deps.Tree) PackageListModel {
	return PackageListModel{
		Title:    title,
		Packages: tree.Sorted(),
		Height:   15,
	}
}

func (m PackageListModel) Init() tea.Cmd {
	return nil
}

func (m PackageListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			m.move(-1)
		case "down", "j":
			m.move(1)
		case "pgup":
			m.move(-m.Height)
		case "pgdown":
			m.move(m.Height)
		case "home", "g":
			m.move(-len(m.Packages))
		case "end", "G":
			m.move(len(m.Packages))
		case "enter", " ":
			m.Detail = !m.Detail
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-12, 5)
		m.move(0)
	}
	return m, nil
}

// move shifts the cursor by delta, clamped to the list, and scrolls so the
// cursor stays visible.
func (m *PackageListModel) move(delta int) {
	if len(m.Packages) == 0 {
		return
	}
	m.Cursor = min(max(m.Cursor+delta, 0), len(m.Packages)-1)
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m PackageListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Packages))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		p := m.Packages[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, p.Name, p.Version, string(p.Depth), render.FormatSize(p.Size), notes(p)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Package", "Version", "Depth", "Size", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			idx := m.Offset + row
			if idx >= len(m.Packages) {
				return lipgloss.NewStyle()
			}
			p := m.Packages[idx]
			base := lipgloss.NewStyle()
			switch {
			case p.Deprecated != "":
				base = styleDeprecated
			case p.Optional:
				base = styleOptional
			}
			if idx == m.Cursor {
				return base.Bold(true).Foreground(colorCyan)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(m.Packages)), len(m.Packages))))

	if m.Detail && m.Cursor < len(m.Packages) {
		b.WriteString("\n\n")
		b.WriteString(m.detailView(m.Packages[m.Cursor]))
	}
	return b.String()
}

func (m PackageListModel) detailView(p *deps.ResolvedPackage) string {
	var b strings.Builder
	line := func(key, value string) {
		b.WriteString(detailKeyStyle.Render(key) + " " + StyleValue.Render(value) + "\n")
	}

	b.WriteString(listSelectedStyle.Render(p.Key()) + "\n")
	if len(p.Path) > 0 {
		line("path", strings.Join(p.Path, " "+iconArrow+" "))
	}
	line("size", render.FormatSize(p.Size))
	if p.Optional {
		line("optional", "yes")
	}
	if p.Deprecated != "" {
		b.WriteString(detailKeyStyle.Render("deprecated") + " " + styleDeprecated.Render(p.Deprecated) + "\n")
	}
	return b.String()
}

// browseTree runs the interactive browser until the user quits.
func browseTree(title string, tree deps.Tree) error {
	_, err := tea.NewProgram(NewPackageListModel(title, tree)).Run()
	return err
}
