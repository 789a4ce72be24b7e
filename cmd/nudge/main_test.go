package main

import (
	"strings"
	"testing"

	"github.com/kokistudios/nudge/internal/notify"
	"github.com/kokistudios/nudge/internal/store"
	"github.com/kokistudios/nudge/internal/ui"
)

func TestCollaboratorStatus(t *testing.T) {
	ui.Init(true)
	defer ui.Init(false)

	cfg := store.DefaultConfig()
	cfg.Notifications = store.NotificationsConfig{Enabled: false}
	cfg.Trigger.Enabled = false
	n, trig := collaboratorStatus(cfg)
	if n != "disabled" || trig != "disabled" {
		t.Errorf("disabled collaborators = %q, %q", n, trig)
	}

	cfg.Notifications = store.NotificationsConfig{Enabled: true, Backend: notify.BackendAuto}
	cfg.Trigger = store.TriggerConfig{Enabled: true, SketchybarPath: "/definitely/not/sketchybar", Event: "nudge_changed"}
	n, trig = collaboratorStatus(cfg)
	if n != "auto" {
		t.Errorf("auto backend = %q", n)
	}
	if !strings.Contains(trig, "(missing)") || !strings.Contains(trig, "nudge_changed") {
		t.Errorf("missing sketchybar = %q", trig)
	}
}
