package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	ossignal "os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kokistudios/nudge/internal/alert"
	nudgemcp "github.com/kokistudios/nudge/internal/mcp"
	"github.com/kokistudios/nudge/internal/notify"
	"github.com/kokistudios/nudge/internal/service"
	"github.com/kokistudios/nudge/internal/signal"
	"github.com/kokistudios/nudge/internal/store"
	"github.com/kokistudios/nudge/internal/ui"
	"github.com/kokistudios/nudge/internal/watch"
)

// Set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func buildVersion() string {
	if commit == "none" {
		return version
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

func main() {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "nudge",
		Short: "nudge — pending alerts for agents and scripts",
		Long: "A small CLI that keeps file-backed alerts for things that need your attention, " +
			"mirrors them to the desktop notification center, and pings status-bar integrations when they change.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(noColor)
		},
	}

	rootCmd.Version = buildVersion()
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Alert Commands:"},
		&cobra.Group{ID: "config", Title: "Configuration:"},
	)

	for _, c := range []*cobra.Command{addCmd(), listCmd(), doneCmd(), countCmd(), clearCmd(), showCmd(), watchCmd()} {
		c.GroupID = "core"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{configCmd(), doctorCmd()} {
		c.GroupID = "config"
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(completionCmd())
	rootCmd.AddCommand(mcpServeCmd())

	if err := rootCmd.Execute(); err != nil {
		ui.Error(service.Describe(err))
		os.Exit(service.ExitCode(err))
	}
}

func loadStore() (*store.Store, error) {
	s, err := store.Load(store.ReadEnv(os.Getenv))
	if err != nil {
		if errors.Is(err, store.ErrInvalidConfig) {
			return nil, fmt.Errorf("%w (run 'nudge doctor --fix')", err)
		}
		return nil, err
	}
	return s, nil
}

func openService() (*service.Service, error) {
	s, err := loadStore()
	if err != nil {
		return nil, err
	}
	self, err := os.Executable()
	if err != nil {
		self = "nudge"
	}
	return service.New(s, self, ui.Logger)
}

// filterFlags are the repeatable metadata filters shared by list, count and
// clear.
type filterFlags struct {
	tags       []string
	sources    []string
	sessions   []string
	kinds      []string
	dedupeKeys []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.tags, "tag", nil, "Match alerts with this tag (repeatable; any tag matches)")
	cmd.Flags().StringArrayVar(&f.sources, "source", nil, "Match alerts from this source (repeatable)")
	cmd.Flags().StringArrayVar(&f.sessions, "session", nil, "Match alerts from this session (repeatable)")
	cmd.Flags().StringArrayVar(&f.kinds, "kind", nil, "Match alerts of this kind (repeatable)")
	cmd.Flags().StringArrayVar(&f.dedupeKeys, "dedupe-key", nil, "Match alerts with this dedupe key (repeatable)")
}

func (f *filterFlags) query() alert.Query {
	return alert.Query{
		Tags:       f.tags,
		Sources:    f.sources,
		Sessions:   f.sessions,
		Kinds:      f.kinds,
		DedupeKeys: f.dedupeKeys,
	}
}

func addCmd() *cobra.Command {
	var a alert.Alert
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "add [title] [message]",
		Short: "Create a pending alert",
		Long: "Create a pending alert and post a desktop notification. Title and message may be given as flags or positional arguments.\n\n" +
			"With --dedupe-key, earlier alerts with the same key are replaced. Adding --session limits the replacement to alerts from that session.",
		Example: `  nudge add "Build finished" "api: all tests passed"
  nudge add -t "Pi task update" -m "step 2 of 5" --source pi-agent --session S1 --kind update --dedupe-key pi:update:S1
  nudge add -t "Review ready" -m "PR #42" --on-click "open https://github.com/org/repo/pull/42" --tag work`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && a.Title == "" {
				a.Title = args[0]
			}
			if len(args) > 1 && a.Message == "" {
				a.Message = args[1]
			}
			if err := a.Validate(); err != nil {
				return err
			}

			svc, err := openService()
			if err != nil {
				return err
			}
			res, err := svc.Add(a)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(jsonAlert(res.Alert))
			}
			fmt.Println(res.Alert.ID)
			if len(res.Replaced) > 0 {
				ui.Info(fmt.Sprintf("Replaced %d earlier alert(s)", len(res.Replaced)))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&a.Title, "title", "t", "", "Alert title")
	cmd.Flags().StringVarP(&a.Message, "message", "m", "", "Alert message")
	cmd.Flags().StringVar(&a.OnClick, "on-click", "", "Shell command to run when the alert is completed with --run")
	cmd.Flags().StringVar(&a.Icon, "icon", "", "Notification icon (name, path or URL)")
	cmd.Flags().BoolVar(&a.Sound, "sound", false, "Play the configured notification sound")
	cmd.Flags().StringArrayVar(&a.Tags, "tag", nil, "Tag for filtering (repeatable)")
	cmd.Flags().StringVar(&a.Source, "source", "", "Producer of the alert (e.g. pi-agent)")
	cmd.Flags().StringVar(&a.Session, "session", "", "Run identifier; narrows dedupe to this session")
	cmd.Flags().StringVar(&a.Kind, "kind", "", "Category such as update, question or error")
	cmd.Flags().StringVar(&a.DedupeKey, "dedupe-key", "", "Replace earlier alerts with the same key")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored alert as JSON instead of its id")
	return cmd
}

func listCmd() *cobra.Command {
	var f filterFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List pending alerts, oldest first",
		Example: `  nudge list
  nudge list --tag claude --tag work
  nudge list --source pi-agent --session S1 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			alerts, err := svc.List(f.query())
			if err != nil {
				return err
			}

			if asJSON {
				out := make([]alert.Alert, 0, len(alerts))
				for _, a := range alerts {
					out = append(out, jsonAlert(a))
				}
				return printJSON(out)
			}
			if len(alerts) == 0 {
				ui.EmptyState("No pending alerts.")
				return nil
			}
			var rows [][]string
			for _, a := range alerts {
				rows = append(rows, []string{
					a.ID,
					humanize.Time(a.CreatedAt),
					dash(a.Source),
					dash(a.Kind),
					dash(strings.Join(a.Tags, ",")),
					a.Title,
				})
			}
			ui.Table([]string{"ID", "AGE", "SOURCE", "KIND", "TAGS", "TITLE"}, rows)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print alerts as a JSON array")
	return cmd
}

func doneCmd() *cobra.Command {
	var run bool
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Complete a pending alert",
		Long: "Remove a pending alert and retract its notification. With --run, the alert's on-click command " +
			"is launched in the background using NUDGE_SHELL, SHELL or /bin/sh, in NUDGE_CWD when set.",
		Example: "  nudge done 20261016T091500.123-1a2b3c4d\n  nudge done 20261016T091500.123-1a2b3c4d --run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			res, err := svc.Done(args[0], run)
			if err != nil {
				return err
			}
			msg := "Done " + ui.Bold(res.Alert.ID)
			if res.Alert.Title != "" {
				msg += " " + ui.Dim("("+res.Alert.Title+")")
			}
			ui.Success(msg)
			if res.Launched {
				ui.Detail("Launched:", res.Alert.OnClick)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&run, "run", false, "Also launch the alert's on-click command")
	return cmd
}

func countCmd() *cobra.Command {
	var f filterFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "count",
		Short:   "Print the number of pending alerts",
		Example: "  nudge count\n  nudge count --kind question --json",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			n, err := svc.Count(f.query())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSONLine(map[string]int{"count": n})
			}
			fmt.Println(n)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, `Print {"count": n}`)
	return cmd
}

func clearCmd() *cobra.Command {
	var f filterFlags
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove pending alerts matching the filters",
		Long:  "Remove every pending alert matching the filters and retract their notifications. Without filters, all alerts are removed; an interactive terminal asks first unless --yes is given.",
		Example: `  nudge clear --source pi-agent --session S1
  nudge clear --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := f.query()
			if q.Empty() && !yes && ui.Interactive() {
				proceed, err := ui.Confirm("Clear ALL pending alerts?")
				if err != nil {
					return err
				}
				if !proceed {
					ui.Info("Cancelled.")
					return nil
				}
			}

			svc, err := openService()
			if err != nil {
				return err
			}
			removed, err := svc.Clear(q)
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				ui.EmptyState("Nothing to clear.")
				return nil
			}
			ui.Success(fmt.Sprintf("Cleared %d alert(s)", len(removed)))
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func showCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one pending alert without completing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			a, err := svc.Show(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(jsonAlert(a))
			}
			ui.RenderMarkdown(os.Stdout, alertMarkdown(a), ui.AlertWrap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the alert as JSON")
	return cmd
}

func alertMarkdown(a alert.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", a.Title, a.Message)
	fmt.Fprintf(&b, "- **id:** `%s`\n", a.ID)
	fmt.Fprintf(&b, "- **created:** %s (%s)\n", a.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(a.CreatedAt))
	for _, kv := range [][2]string{
		{"source", a.Source},
		{"session", a.Session},
		{"kind", a.Kind},
		{"dedupe key", a.DedupeKey},
		{"icon", a.Icon},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&b, "- **%s:** %s\n", kv[0], kv[1])
		}
	}
	if len(a.Tags) > 0 {
		fmt.Fprintf(&b, "- **tags:** %s\n", strings.Join(a.Tags, ", "))
	}
	if a.Sound {
		b.WriteString("- **sound:** yes\n")
	}
	if a.OnClick != "" {
		fmt.Fprintf(&b, "\n```sh\n%s\n```\n", a.OnClick)
	}
	return b.String()
}

func watchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the pending count whenever it changes",
		Long:  "Print the number of pending alerts, then print it again each time it changes, until interrupted. Suitable as a long-running status-bar data source.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := ui.Logger
			if !svc.Env.DebugActions {
				logger = nil
			}
			w := &watch.Watcher{
				Dir:   svc.Alerts.Dir,
				Count: func() (int, error) { return svc.Count(alert.Query{}) },
				Log:   logger,
			}
			return w.Run(ctx, func(n int) {
				if asJSON {
					printJSONLine(map[string]int{"count": n})
					return
				}
				fmt.Println(n)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, `Print {"count": n} lines`)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and edit nudge configuration",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configSetCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(s.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Set a nudge configuration value. Valid keys: notifications.enabled, notifications.backend, notifications.sound_name, trigger.enabled, trigger.sketchybar_path, trigger.event.",
		Example: `  nudge config set notifications.backend terminal-notifier
  nudge config set trigger.enabled false
  nudge config set trigger.event nudge_changed`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if err := s.SetConfigValue(args[0], args[1]); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Set %s = %s", args[0], args[1]))
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check health of the nudge home and alert records",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := store.ReadEnv(os.Getenv)
			home := env.Home
			alertsDir := filepath.Join(home, "alerts")

			if fix {
				ui.SectionHeader("DOCTOR · repair")
				fixed := store.FixIssues(home)
				fixed = append(fixed, repairRecords(alertsDir, filepath.Join(home, "quarantine"))...)
				for _, f := range fixed {
					ui.Success(fmt.Sprintf("[FIXED] %s", f))
				}
				if len(fixed) == 0 {
					ui.EmptyState("Nothing to fix.")
				}
			} else {
				ui.SectionHeader("DOCTOR · health check")
			}

			ui.Detail("Home:", home)
			issues := store.CheckHealth(home)

			if alerts, err := alert.Open(alertsDir, nil); err == nil {
				report, err := alerts.Scan()
				if err != nil {
					issues = append(issues, store.Issue{Severity: "error", Message: err.Error()})
				} else {
					ui.Detail("Pending:", fmt.Sprintf("%d", report.Records))
					for _, c := range report.Corrupt {
						issues = append(issues, store.Issue{
							Severity: "warning",
							Message:  fmt.Sprintf("unreadable record %s: %v (run 'nudge doctor --fix' to quarantine)", filepath.Base(c.Path), c.Err),
						})
					}
					for _, p := range report.StaleTemp {
						issues = append(issues, store.Issue{
							Severity: "warning",
							Message:  fmt.Sprintf("stale temp file %s (run 'nudge doctor --fix' to remove)", filepath.Base(p)),
						})
					}
				}
			}

			if stamp, err := signal.ReadStamp(home); err == nil && stamp != nil {
				ui.Detail("Last change:", fmt.Sprintf("%s (%d pending then)", humanize.Time(stamp.At), stamp.Count))
			}

			if s, err := store.Load(env); err == nil {
				fmt.Fprintln(os.Stderr)
				notifications, trigger := collaboratorStatus(s.Config)
				ui.KeyValue("backend", notifications)
				ui.KeyValue("trigger", trigger)
				fmt.Fprintln(os.Stderr)
				issues = append(issues, checkCollaborators(s.Config)...)
			}

			if len(issues) == 0 {
				ui.Success("Everything looks good")
				os.Exit(0)
			}

			hasError := false
			for _, issue := range issues {
				if issue.Severity == "error" {
					ui.Error(fmt.Sprintf("[ERR]  %s", issue.Message))
					hasError = true
				} else {
					ui.Warning(fmt.Sprintf("[WARN] %s", issue.Message))
				}
			}

			if hasError {
				os.Exit(2)
			}
			os.Exit(1)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Repair config, quarantine unreadable records and remove stale temp files")
	return cmd
}

// repairRecords quarantines corrupt records and removes stale temp files.
func repairRecords(alertsDir, quarantineDir string) []string {
	alerts, err := alert.Open(alertsDir, nil)
	if err != nil {
		return nil
	}
	report, err := alerts.Scan()
	if err != nil {
		return nil
	}
	var fixed []string
	for _, c := range report.Corrupt {
		dest, err := alert.Quarantine(c.Path, quarantineDir)
		if err != nil {
			ui.Warning(fmt.Sprintf("Failed to quarantine %s: %v", filepath.Base(c.Path), err))
			continue
		}
		fixed = append(fixed, fmt.Sprintf("quarantined %s -> %s", filepath.Base(c.Path), dest))
	}
	for _, p := range report.StaleTemp {
		if err := os.Remove(p); err == nil {
			fixed = append(fixed, fmt.Sprintf("removed stale temp file %s", filepath.Base(p)))
		}
	}
	return fixed
}

// collaboratorStatus describes the configured notification backend and
// status-bar trigger for the doctor summary.
func collaboratorStatus(cfg store.Config) (notifications, trigger string) {
	n := cfg.Notifications
	switch {
	case !n.Enabled || n.Backend == notify.BackendNone:
		notifications = ui.Yellow("disabled")
	case n.Backend == notify.BackendAuto:
		notifications = ui.Green("auto")
	default:
		notifications = presence(n.Backend)
	}
	if cfg.Trigger.Enabled {
		trigger = presence(cfg.Trigger.SketchybarPath) + ui.Dim(" --trigger "+cfg.Trigger.Event)
	} else {
		trigger = ui.Yellow("disabled")
	}
	return notifications, trigger
}

func presence(program string) string {
	if _, err := exec.LookPath(program); err != nil {
		return ui.Red(program + " (missing)")
	}
	return ui.Green(program)
}

// checkCollaborators warns when a configured external program is missing.
func checkCollaborators(cfg store.Config) []store.Issue {
	var issues []store.Issue
	n := cfg.Notifications
	if n.Enabled && n.Backend != notify.BackendAuto && n.Backend != notify.BackendNone {
		if _, err := exec.LookPath(n.Backend); err != nil {
			issues = append(issues, store.Issue{Severity: "warning", Message: fmt.Sprintf("notification backend %s not found on PATH", n.Backend)})
		}
	}
	if cfg.Trigger.Enabled {
		if _, err := exec.LookPath(cfg.Trigger.SketchybarPath); err != nil {
			issues = append(issues, store.Issue{
				Severity: "warning",
				Message:  fmt.Sprintf("%s not found; set trigger.enabled false to stop triggering it", cfg.Trigger.SketchybarPath),
			})
		}
	}
	return issues
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish]",
		Short:     "Generate shell completion scripts",
		Long:      "Generate shell completion scripts for bash, zsh, or fish. Output the script to stdout for sourcing in your shell profile.",
		Example:   "  nudge completion bash > ~/.bashrc.d/nudge\n  nudge completion zsh > ~/.zfunc/_nudge\n  nudge completion fish > ~/.config/fish/completions/nudge.fish",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", args[0])
			}
		},
	}
}

func mcpServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "mcp-serve",
		Short:  "Run nudge as an MCP server",
		Long:   "Start nudge as a Model Context Protocol (MCP) server over stdio, so coding agents can add, list and complete alerts directly.",
		Hidden: true, // Not typically called directly by users
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := nudgemcp.NewServer(svc, version)
			return server.Run(ctx)
		},
	}
}

// jsonAlert normalizes a for JSON output so tags is always an array.
func jsonAlert(a alert.Alert) alert.Alert {
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return a
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJSONLine(v interface{}) error {
	return json.NewEncoder(os.Stdout).Encode(v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
