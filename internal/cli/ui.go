package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/render"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleHeader     = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleOptional   = lipgloss.NewStyle().Foreground(colorGray).Italic(true)
	styleDeprecated = lipgloss.NewStyle().Foreground(colorRed)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+msg)
}

// printWarning prints a warning message.
func printWarning(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+msg)
}

// printDetail prints a detail line (indented).
func printDetail(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, "  "+StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(w io.Writer, path string) {
	fmt.Fprintln(w, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

// =============================================================================
// Tree Output
// =============================================================================

// printTree writes a resolved tree as a table followed by a summary line
// and any deprecation notices.
func printTree(w io.Writer, tree deps.Tree, showDepth bool) {
	pkgs := tree.Sorted()

	headers := []string{"Package", "Version"}
	if showDepth {
		headers = append(headers, "Depth")
	}
	headers = append(headers, "Size", "")

	rows := make([][]string, 0, len(pkgs))
	for _, p := range pkgs {
		row := []string{p.Name, p.Version}
		if showDepth {
			row = append(row, string(p.Depth))
		}
		rows = append(rows, append(row, render.FormatSize(p.Size), notes(p)))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			p := pkgs[row]
			switch {
			case p.Deprecated != "":
				return styleDeprecated
			case p.Optional:
				return styleOptional
			}
			return lipgloss.NewStyle()
		})

	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, summary(tree))

	for _, p := range tree.Deprecated() {
		printWarning(w, "%s is deprecated: %s", p.Key(), p.Deprecated)
	}
}

// notes lists the flags of a package for the last table column.
func notes(p *deps.ResolvedPackage) string {
	var n []string
	if p.Optional {
		n = append(n, "optional")
	}
	if p.Deprecated != "" {
		n = append(n, "deprecated")
	}
	return strings.Join(n, ", ")
}

// summary renders "12 packages · 3.4 MiB · 1 deprecated".
func summary(tree deps.Tree) string {
	parts := []string{
		fmt.Sprintf("%d packages", len(tree)),
		render.FormatSize(tree.TotalSize()),
	}
	if n := len(tree.Deprecated()); n > 0 {
		parts = append(parts, fmt.Sprintf("%d deprecated", n))
	}
	return "  " + StyleDim.Render(strings.Join(parts, " · "))
}
