// wisp-mcp exposes the running agent to MCP clients over stdio: inject a
// thought, schedule an agenda item, and inspect state. Thoughts go through
// the inbox file the daemon polls; reads go straight to the shared sqlite
// store (WAL keeps cross-process access safe).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wisp-agent/wisp/internal/senses"
	"github.com/wisp-agent/wisp/internal/store"
)

var statePath string

func main() {
	// Log to stderr so stdout is clean for JSON-RPC
	log.SetOutput(os.Stderr)
	log.SetPrefix("[wisp-mcp] ")

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	statePath = os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}

	s := server.NewMCPServer(
		"wisp-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(injectThoughtTool(), handleInjectThought)
	s.AddTool(addAgendaItemTool(), handleAddAgendaItem)
	s.AddTool(agentStateTool(), handleAgentState)
	s.AddTool(recentWakesTool(), handleRecentWakes)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func injectThoughtTool() mcp.Tool {
	return mcp.NewTool("inject_thought",
		mcp.WithDescription("Inject a thought into the agent. The agent picks it up within a few seconds and decides whether to act on it."),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The thought text"),
		),
		mcp.WithNumber("pressure",
			mcp.Description("How insistent the thought is, 0-1 (default 0.5)"),
		),
	)
}

func handleInjectThought(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	content, _ := args["content"].(string)
	if content == "" {
		return mcp.NewToolResultError("content is required"), nil
	}
	pressure := 0.5
	if p, ok := args["pressure"].(float64); ok {
		pressure = p
	}
	if pressure < 0 || pressure > 1 {
		return mcp.NewToolResultError("pressure must be between 0 and 1"), nil
	}

	if err := senses.AppendInboxEntry(statePath, senses.InboxEntry{
		Kind:     "thought",
		Content:  content,
		Pressure: pressure,
	}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to write inbox: %v", err)), nil
	}

	log.Printf("injected thought (pressure %.2f)", pressure)
	return mcp.NewToolResultText("Thought queued, the agent will pick it up shortly"), nil
}

func addAgendaItemTool() mcp.Tool {
	return mcp.NewTool("add_agenda_item",
		mcp.WithDescription("Schedule a reminder or follow-up. When it comes due, the agent wakes and decides what to do about it."),
		mcp.WithString("event",
			mcp.Required(),
			mcp.Description("What should happen (e.g. 'check in about the deploy')"),
		),
		mcp.WithString("due_at",
			mcp.Required(),
			mcp.Description("Due time, RFC3339 (e.g. 2026-09-01T15:00:00Z)"),
		),
		mcp.WithString("channel_id",
			mcp.Description("Channel to act in when the item fires"),
		),
	)
}

func handleAddAgendaItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	event, _ := args["event"].(string)
	dueStr, _ := args["due_at"].(string)
	if event == "" {
		return mcp.NewToolResultError("event is required"), nil
	}
	dueAt, err := time.Parse(time.RFC3339, dueStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid due_at: %v", err)), nil
	}

	item := store.AgendaItem{
		ID:    uuid.NewString(),
		Event: event,
		DueAt: dueAt,
	}
	if ch, ok := args["channel_id"].(string); ok && ch != "" {
		item.Payload = map[string]any{"channel_id": ch}
	}

	st, err := store.Open(statePath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to open store: %v", err)), nil
	}
	defer st.Close()

	if err := st.AddAgendaItem(item); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add item: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Scheduled %q for %s (id %s)", event, dueAt.Format(time.RFC3339), item.ID)), nil
}

func agentStateTool() mcp.Tool {
	return mcp.NewTool("agent_state",
		mcp.WithDescription("Read the agent's current drive state (energy, social debt, curiosity, ...)."),
	)
}

func handleAgentState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := store.Open(statePath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to open store: %v", err)), nil
	}
	defer st.Close()

	state, err := st.Snapshot()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read state: %v", err)), nil
	}
	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal state: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func recentWakesTool() mcp.Tool {
	return mcp.NewTool("recent_wakes",
		mcp.WithDescription("List the agent's recent wake decisions, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum records to return (default 20)"),
		),
	)
}

func handleRecentWakes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	limit := 20
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	st, err := store.Open(statePath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to open store: %v", err)), nil
	}
	defer st.Close()

	wakes, err := st.RecentWakes(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read wakes: %v", err)), nil
	}
	out, err := json.MarshalIndent(wakes, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal wakes: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
