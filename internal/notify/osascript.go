package notify

import (
	"fmt"
	"strings"

	"github.com/kokistudios/nudge/internal/alert"
)

// OSAScript posts notifications through AppleScript. It cannot retract or
// handle clicks, so Retract is a no-op.
type OSAScript struct {
	SoundName string
	Run       Runner
}

func (n *OSAScript) Deliver(a alert.Alert) error {
	return runnerOr(n.Run)("osascript", "-e", n.script(a))
}

func (n *OSAScript) Retract(string) error { return nil }

func (n *OSAScript) script(a alert.Alert) string {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`,
		escapeAppleScript(a.Message), escapeAppleScript(a.Title))
	if a.Source != "" {
		script += fmt.Sprintf(` subtitle "%s"`, escapeAppleScript(a.Source))
	}
	if a.Sound {
		name := n.SoundName
		if name == "" || name == "default" {
			name = "Glass"
		}
		script += fmt.Sprintf(` sound name "%s"`, escapeAppleScript(name))
	}
	return script
}

// escapeAppleScript escapes characters that could break AppleScript strings.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
