package notify

import (
	"strings"

	"github.com/kokistudios/nudge/internal/alert"
)

// TerminalNotifier drives the terminal-notifier CLI. Notifications are
// grouped by alert id so they can be retracted, and clicking one runs
// `nudge done <id> --run`.
type TerminalNotifier struct {
	Path      string
	Self      string
	SoundName string
	Run       Runner
}

func (n *TerminalNotifier) Deliver(a alert.Alert) error {
	return runnerOr(n.Run)(n.Path, n.deliverArgs(a)...)
}

func (n *TerminalNotifier) Retract(id string) error {
	return runnerOr(n.Run)(n.Path, "-remove", id)
}

func (n *TerminalNotifier) deliverArgs(a alert.Alert) []string {
	args := []string{
		"-title", a.Title,
		"-message", escapeLeadingBracket(a.Message),
		"-group", a.ID,
	}
	if a.Source != "" {
		args = append(args, "-subtitle", a.Source)
	}
	if n.Self != "" {
		args = append(args, "-execute", shellQuote(n.Self)+" done "+shellQuote(a.ID)+" --run")
	}
	if a.Sound {
		name := n.SoundName
		if name == "" {
			name = "default"
		}
		args = append(args, "-sound", name)
	}
	if a.Icon != "" {
		args = append(args, "-appIcon", a.Icon)
	}
	return args
}

// terminal-notifier treats a message starting with "[" as a list.
func escapeLeadingBracket(s string) string {
	if strings.HasPrefix(s, "[") {
		return `\` + s
	}
	return s
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
