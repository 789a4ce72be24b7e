package notify

import "github.com/kokistudios/nudge/internal/alert"

// NotifySend posts desktop notifications on Linux via notify-send.
type NotifySend struct {
	Run Runner
}

func (n *NotifySend) Deliver(a alert.Alert) error {
	return runnerOr(n.Run)("notify-send", n.args(a)...)
}

// Retract is a no-op; notify-send has no stable handle to close by id.
func (n *NotifySend) Retract(string) error { return nil }

func (n *NotifySend) args(a alert.Alert) []string {
	args := []string{"--app-name", "nudge", "--urgency", "normal"}
	if a.Icon != "" {
		args = append(args, "--icon", a.Icon)
	}
	if a.Kind != "" {
		args = append(args, "--category", a.Kind)
	}
	return append(args, "--", a.Title, a.Message)
}
