package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kokistudios/nudge/internal/alert"
	"github.com/kokistudios/nudge/internal/service"
)

// Server exposes the nudge command layer over MCP.
type Server struct {
	svc    *service.Service
	server *mcp.Server
}

// NewServer creates a new nudge MCP server.
func NewServer(svc *service.Service, version string) *Server {
	s := &Server{svc: svc}

	impl := &mcp.Implementation{
		Name:    "nudge",
		Version: version,
	}

	s.server = mcp.NewServer(impl, nil)
	s.registerTools()

	return s
}

// Run starts the MCP server on stdio.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "nudge_add",
		Description: "Create a pending alert for the user and post a desktop notification. " +
			"Use dedupe_key for progress updates so each new update replaces the previous one; " +
			"add session to limit replacement to the current run. " +
			"on_click is a shell command run when the user completes the alert from the notification.",
	}, s.handleAdd)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "nudge_list",
		Description: "List pending alerts, oldest first. Filters are optional; values within one filter are OR'ed and different filters are AND'ed.",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "nudge_count",
		Description: "Count pending alerts matching the optional filters.",
	}, s.handleCount)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "nudge_done",
		Description: "Complete a pending alert by id, removing it and its notification. Set run=true to also launch its on_click command.",
	}, s.handleDone)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "nudge_clear",
		Description: "Remove every pending alert matching the filters. " +
			"With no filters this removes ALL alerts: BEFORE CALLING without filters you MUST ask the user " +
			"and only then call with user_confirmed=true.",
	}, s.handleClear)
}

// FilterArgs selects alerts by metadata. It is the input of nudge_list and
// nudge_count.
type FilterArgs struct {
	Tags       []string `json:"tags,omitempty" jsonschema:"Match alerts carrying any of these tags"`
	Sources    []string `json:"sources,omitempty" jsonschema:"Match alerts from any of these sources (e.g. pi-agent)"`
	Sessions   []string `json:"sessions,omitempty" jsonschema:"Match alerts from any of these sessions"`
	Kinds      []string `json:"kinds,omitempty" jsonschema:"Match alerts of any of these kinds"`
	DedupeKeys []string `json:"dedupe_keys,omitempty" jsonschema:"Match alerts with any of these dedupe keys"`
}

func (f FilterArgs) query() alert.Query {
	return alert.Query{
		Tags:       f.Tags,
		Sources:    f.Sources,
		Sessions:   f.Sessions,
		Kinds:      f.Kinds,
		DedupeKeys: f.DedupeKeys,
	}
}

// AlertSummary is the MCP view of a pending alert.
type AlertSummary struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	OnClick   string   `json:"on_click,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Source    string   `json:"source,omitempty"`
	Session   string   `json:"session,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	DedupeKey string   `json:"dedupe_key,omitempty"`
	CreatedAt string   `json:"created_at"`
	Age       string   `json:"age"`
}

func summarize(a alert.Alert) AlertSummary {
	return AlertSummary{
		ID:        a.ID,
		Title:     a.Title,
		Message:   a.Message,
		OnClick:   a.OnClick,
		Tags:      a.Tags,
		Source:    a.Source,
		Session:   a.Session,
		Kind:      a.Kind,
		DedupeKey: a.DedupeKey,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		Age:       humanize.Time(a.CreatedAt),
	}
}

// AddArgs defines input for nudge_add.
type AddArgs struct {
	Title     string   `json:"title" jsonschema:"REQUIRED. Short headline shown in the notification"`
	Message   string   `json:"message" jsonschema:"REQUIRED. Notification body"`
	OnClick   string   `json:"on_click,omitempty" jsonschema:"Shell command to run when the alert is completed with run"`
	Icon      string   `json:"icon,omitempty" jsonschema:"Icon name or path for the notification"`
	Sound     bool     `json:"sound,omitempty" jsonschema:"Play the configured notification sound"`
	Tags      []string `json:"tags,omitempty" jsonschema:"Free-form labels for filtering"`
	Source    string   `json:"source,omitempty" jsonschema:"Producer name (e.g. pi-agent)"`
	Session   string   `json:"session,omitempty" jsonschema:"Run identifier; narrows dedupe to this session"`
	Kind      string   `json:"kind,omitempty" jsonschema:"Category such as update, question or error"`
	DedupeKey string   `json:"dedupe_key,omitempty" jsonschema:"Replace earlier alerts with the same key"`
}

// AddResult is the output of nudge_add.
type AddResult struct {
	Alert    AlertSummary `json:"alert"`
	Replaced []string     `json:"replaced,omitempty"`
}

func (s *Server) handleAdd(ctx context.Context, req *mcp.CallToolRequest, args AddArgs) (*mcp.CallToolResult, any, error) {
	res, err := s.svc.Add(alert.Alert{
		Title:     args.Title,
		Message:   args.Message,
		OnClick:   args.OnClick,
		Icon:      args.Icon,
		Sound:     args.Sound,
		Tags:      args.Tags,
		Source:    args.Source,
		Session:   args.Session,
		Kind:      args.Kind,
		DedupeKey: args.DedupeKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to add alert: %w", err)
	}

	out := AddResult{Alert: summarize(res.Alert)}
	for _, old := range res.Replaced {
		out.Replaced = append(out.Replaced, old.ID)
	}
	return nil, out, nil
}

// ListResult is the output of nudge_list.
type ListResult struct {
	Alerts  []AlertSummary `json:"alerts"`
	Count   int            `json:"count"`
	Message string         `json:"message,omitempty"`
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest, args FilterArgs) (*mcp.CallToolResult, any, error) {
	alerts, err := s.svc.List(args.query())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	out := ListResult{Alerts: []AlertSummary{}, Count: len(alerts)}
	for _, a := range alerts {
		out.Alerts = append(out.Alerts, summarize(a))
	}
	if len(alerts) == 0 {
		out.Message = "No pending alerts."
	}
	return nil, out, nil
}

// CountResult is the output of nudge_count.
type CountResult struct {
	Count int `json:"count"`
}

func (s *Server) handleCount(ctx context.Context, req *mcp.CallToolRequest, args FilterArgs) (*mcp.CallToolResult, any, error) {
	n, err := s.svc.Count(args.query())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	return nil, CountResult{Count: n}, nil
}

// DoneArgs defines input for nudge_done.
type DoneArgs struct {
	ID  string `json:"id" jsonschema:"REQUIRED. Alert id from nudge_list or nudge_add"`
	Run bool   `json:"run,omitempty" jsonschema:"Also launch the alert's on_click command"`
}

// DoneResult is the output of nudge_done.
type DoneResult struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Launched bool   `json:"launched"`
}

func (s *Server) handleDone(ctx context.Context, req *mcp.CallToolRequest, args DoneArgs) (*mcp.CallToolResult, any, error) {
	if args.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}
	res, err := s.svc.Done(args.ID, args.Run)
	if err != nil {
		return nil, nil, err
	}
	return nil, DoneResult{ID: res.Alert.ID, Title: res.Alert.Title, Launched: res.Launched}, nil
}

// ClearArgs defines input for nudge_clear.
type ClearArgs struct {
	Tags          []string `json:"tags,omitempty" jsonschema:"Match alerts carrying any of these tags"`
	Sources       []string `json:"sources,omitempty" jsonschema:"Match alerts from any of these sources"`
	Sessions      []string `json:"sessions,omitempty" jsonschema:"Match alerts from any of these sessions"`
	Kinds         []string `json:"kinds,omitempty" jsonschema:"Match alerts of any of these kinds"`
	DedupeKeys    []string `json:"dedupe_keys,omitempty" jsonschema:"Match alerts with any of these dedupe keys"`
	UserConfirmed bool     `json:"user_confirmed,omitempty" jsonschema:"Required when no filter is given. Set true ONLY after the user approved clearing every alert."`
}

// ClearResult is the output of nudge_clear.
type ClearResult struct {
	Removed []string `json:"removed"`
	Count   int      `json:"count"`
}

func (s *Server) handleClear(ctx context.Context, req *mcp.CallToolRequest, args ClearArgs) (*mcp.CallToolResult, any, error) {
	q := FilterArgs{
		Tags:       args.Tags,
		Sources:    args.Sources,
		Sessions:   args.Sessions,
		Kinds:      args.Kinds,
		DedupeKeys: args.DedupeKeys,
	}.query()
	if q.Empty() && !args.UserConfirmed {
		return nil, nil, fmt.Errorf("clearing all alerts requires user_confirmed=true; ask the user first or pass a filter")
	}
	removed, err := s.svc.Clear(q)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to clear alerts: %w", err)
	}

	out := ClearResult{Removed: []string{}, Count: len(removed)}
	for _, a := range removed {
		out.Removed = append(out.Removed, a.ID)
	}
	return nil, out, nil
}
