// Package notify is the boundary to the external UI layer. Notifications are
// fire-and-forget, at most once per state-transition intent; the core never
// renders anything itself.
package notify

import (
	"log"

	"checkup/internal/diag"
)

// Notifier receives structured notifications from the analysis core.
type Notifier interface {
	// Status delivers a short status-bar text update.
	Status(text string)
	// RequireLogin signals that the pro session needs authentication.
	RequireLogin()
	// PortDiscovered signals the pro session's listening port.
	PortDiscovered(port int)
	// Diagnostics delivers the filtered diagnostics for one file.
	Diagnostics(file string, diags []diag.Diagnostic)
}

// LogNotifier writes every notification to a logger. It is the default sink
// when no UI layer is attached.
type LogNotifier struct {
	Logger *log.Logger
}

func (n *LogNotifier) Status(text string) {
	n.logf("status: %s", text)
}

func (n *LogNotifier) RequireLogin() {
	n.logf("login required")
}

func (n *LogNotifier) PortDiscovered(port int) {
	n.logf("port discovered: %d", port)
}

func (n *LogNotifier) Diagnostics(file string, diags []diag.Diagnostic) {
	n.logf("%s: %d diagnostic(s)", file, len(diags))
}

func (n *LogNotifier) logf(format string, args ...any) {
	l := n.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf(format, args...)
}
