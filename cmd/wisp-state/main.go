// wisp-state inspects the daemon's persisted state from the command line.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wisp-agent/wisp/internal/journal"
	"github.com/wisp-agent/wisp/internal/store"
)

func main() {
	godotenv.Load()

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	cmd := os.Args[1]
	switch cmd {
	case "state":
		handleState(statePath)
	case "wakes":
		handleWakes(statePath, os.Args[2:])
	case "agenda":
		handleAgenda(statePath)
	case "messages":
		handleMessages(statePath, os.Args[2:])
	case "journal":
		handleJournal(statePath, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`wisp-state - Inspect wisp's persisted state

Usage: wisp-state <command> [options]

Commands:
  state                Current drive state (energy, social debt, ...)
  wakes [-n 20]        Recent wake decisions, newest first
  agenda               Open agenda items, soonest first
  messages [-n 20]     Recent conversation log
  journal [-n 20]      Recent journal entries

Environment:
  STATE_PATH           State directory (default: state)`)
}

func openStore(statePath string) *store.Store {
	st, err := store.Open(statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	return st
}

func handleState(statePath string) {
	st := openStore(statePath)
	defer st.Close()

	state, err := st.Snapshot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read state: %v\n", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(state, "", "  ")
	fmt.Println(string(out))
}

func handleWakes(statePath string, args []string) {
	n := limitFlag("wakes", args)
	st := openStore(statePath)
	defer st.Close()

	wakes, err := st.RecentWakes(n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read wakes: %v\n", err)
		os.Exit(1)
	}
	if len(wakes) == 0 {
		fmt.Println("No wake records")
		return
	}
	for _, w := range wakes {
		verdict := "sleep"
		if w.Decision.ShouldWake {
			verdict = fmt.Sprintf("WAKE %s", w.Decision.Trigger)
		}
		fmt.Printf("%s  %-22s %s\n", w.CreatedAt.Format("2006-01-02 15:04:05"), verdict, w.Decision.Reason)
	}
}

func handleAgenda(statePath string) {
	st := openStore(statePath)
	defer st.Close()

	items, err := st.OpenItems()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read agenda: %v\n", err)
		os.Exit(1)
	}
	if len(items) == 0 {
		fmt.Println("Agenda is empty")
		return
	}
	for _, item := range items {
		fmt.Printf("%s  %-36s %s\n", item.DueAt.Format(time.RFC3339), item.ID, item.Event)
	}
}

func handleMessages(statePath string, args []string) {
	n := limitFlag("messages", args)
	st := openStore(statePath)
	defer st.Close()

	msgs, err := st.RecentMessages(n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read messages: %v\n", err)
		os.Exit(1)
	}
	for _, m := range msgs {
		fmt.Printf("%s  [%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), m.Role, m.Author, m.Content)
	}
}

func handleJournal(statePath string, args []string) {
	n := limitFlag("journal", args)
	j := journal.New(statePath)

	entries, err := j.Recent(n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read journal: %v\n", err)
		os.Exit(1)
	}
	for _, e := range entries {
		parts := []string{string(e.Type)}
		if e.Summary != "" {
			parts = append(parts, e.Summary)
		}
		if e.Reason != "" {
			parts = append(parts, e.Reason)
		}
		if e.Outcome != "" {
			parts = append(parts, e.Outcome)
		}
		fmt.Printf("%s  %s\n", e.Timestamp.Format("15:04:05"), strings.Join(parts, " | "))
	}
}

func limitFlag(name string, args []string) int {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	n := fs.Int("n", 20, "number of records")
	fs.Parse(args)
	return *n
}
