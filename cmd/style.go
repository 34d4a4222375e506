package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"

	"checkup/internal/diag"
)

var (
	styleFile    = lipgloss.NewStyle().Bold(true).Underline(true)
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// styled reports whether output should be colorized. Pipes get plain text.
func styled() bool {
	return term.IsTerminal(os.Stdout.Fd())
}

func render(s lipgloss.Style, text string) string {
	if !styled() {
		return text
	}
	return s.Render(text)
}

func renderFileHeader(file string) string {
	return render(styleFile, file)
}

func renderDiagnostic(d diag.Diagnostic) string {
	sev := d.Severity.String()
	switch d.Severity {
	case diag.SeverityError:
		sev = render(styleError, sev)
	case diag.SeverityWarning:
		sev = render(styleWarning, sev)
	default:
		sev = render(styleInfo, sev)
	}
	pos := render(styleMuted, fmt.Sprintf("%d:%d", d.Line, d.Column))
	return fmt.Sprintf("  %s  %s  %s", pos, sev, d.Message)
}

func renderSummary(text string, ok bool) string {
	if ok {
		return render(styleOK, text)
	}
	return render(styleError, text)
}
