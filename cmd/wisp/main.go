package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wisp-agent/wisp/internal/agenda"
	"github.com/wisp-agent/wisp/internal/aggregate"
	"github.com/wisp-agent/wisp/internal/backend"
	"github.com/wisp-agent/wisp/internal/cognition"
	"github.com/wisp-agent/wisp/internal/config"
	"github.com/wisp-agent/wisp/internal/conversation"
	"github.com/wisp-agent/wisp/internal/effectors"
	"github.com/wisp-agent/wisp/internal/journal"
	"github.com/wisp-agent/wisp/internal/neuron"
	"github.com/wisp-agent/wisp/internal/reflex"
	"github.com/wisp-agent/wisp/internal/scheduler"
	"github.com/wisp-agent/wisp/internal/senses"
	"github.com/wisp-agent/wisp/internal/store"
	"github.com/wisp-agent/wisp/internal/threshold"
	"github.com/wisp-agent/wisp/internal/tools"
	"github.com/wisp-agent/wisp/internal/types"
)

func main() {
	log.Println("wisp - always-on agent daemon")
	log.Println("=============================")

	// Load .env file (optional - won't error if missing)
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	} else {
		log.Println("[config] Loaded .env file")
	}

	cfgPath := os.Getenv("WISP_CONFIG")
	if cfgPath == "" {
		cfgPath = "wisp.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Discord.Token == "" {
		log.Fatal("DISCORD_TOKEN environment variable required")
	}
	if cfg.Backend.APIKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable required")
	}

	st, err := store.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	jrnl := journal.New(cfg.StatePath)
	conv := conversation.NewTracker()

	// Decision core
	neurons := neuron.NewEngine()
	registerNeurons(neurons, conv)

	agg := aggregate.New(aggregate.Config{})

	thresh := threshold.New(threshold.Config{}, conv)
	if cfg.Discord.OwnerID != "" {
		thresh.SetPrimaryRecipient(cfg.Discord.OwnerID)
	}

	// Reasoning tiers
	tiers, err := backend.NewTierSet(cfg.Backend.APIKey, cfg.Backend.BaseURL,
		backend.TierConfig{Model: cfg.Backend.StandardModel, Timeout: cfg.Backend.StandardTimeout.Std()},
		backend.TierConfig{Model: cfg.Backend.EscalatedModel, Timeout: cfg.Backend.EscalatedTimeout.Std()})
	if err != nil {
		log.Fatalf("backend: %v", err)
	}

	ag := agenda.New(st)

	registry := tools.NewRegistry()
	registry.Register(tools.Builtins(tools.Deps{
		DefaultChannel: cfg.Discord.ChannelID,
		Recipient:      cfg.Discord.OwnerID,
		RecentMessages: func(n int) []string {
			msgs, err := st.RecentMessages(n)
			if err != nil {
				return nil
			}
			out := make([]string, 0, len(msgs))
			for _, m := range msgs {
				out = append(out, m.Author+": "+m.Content)
			}
			return out
		},
		AgendaItems: ag.Summaries,
	})...)

	orch := cognition.New(cognition.Config{}, tiers, registry)

	sched := scheduler.New(scheduler.Config{
		TickInterval:  cfg.Tick.Interval.Std(),
		PruneInterval: cfg.Tick.PruneInterval.Std(),
		Identity:      cfg.Identity,
		ChannelID:     cfg.Discord.ChannelID,
		Recipient:     cfg.Discord.OwnerID,
	}, neurons, agg, thresh, orch, st, conv, ag, jrnl, senses.NewSystemSense())

	// the rate watcher reads intake telemetry, so it registers after the
	// scheduler exists
	neurons.Register(neuron.RateSpike(sched.IntakeRates, 10*time.Minute))

	// Reflexes answer trivial messages before they reach the scheduler
	reflexes := reflex.New()
	if err := reflexes.Load(cfg.ReflexDir); err != nil {
		log.Printf("Warning: reflex load failed: %v", err)
	}

	// Chat transport
	var effector *effectors.DiscordEffector
	sense, err := senses.NewDiscordSense(senses.DiscordConfig{
		Token:     cfg.Discord.Token,
		ChannelID: cfg.Discord.ChannelID,
		OwnerID:   cfg.Discord.OwnerID,
	}, func(sig *types.Signal) {
		channelID, _ := sig.Data["channel_id"].(string)
		author, _ := sig.Data["author_name"].(string)
		content, _ := sig.Data["content"].(string)

		conv.NoteUserMessage(channelID, time.Now())
		if err := st.RecordMessage(channelID, author, "user", content); err != nil {
			log.Printf("Warning: failed to record message: %v", err)
		}

		if hit := reflexes.Match(content, time.Now()); hit != nil {
			jrnl.LogReflex(hit.Rule, hit.Reply, map[string]any{"channel_id": channelID})
			effector.Enqueue(types.Intent{
				Kind:      types.IntentSendMessage,
				ChannelID: channelID,
				Message:   hit.Reply,
			})
			return
		}

		sched.Push(sig)
	})
	if err != nil {
		log.Fatalf("Failed to create Discord sense: %v", err)
	}

	// effector must exist before the sense connects: the message handler's
	// reflex path enqueues replies
	effector = effectors.NewDiscordEffector(sense.Session(), func(channelID, content string) {
		conv.NoteAgentMessage(channelID, time.Now())
		if err := st.RecordMessage(channelID, "wisp", "agent", content); err != nil {
			log.Printf("Warning: failed to record message: %v", err)
		}
	})
	effector.Start()

	sched.OnIntent = func(intent types.Intent) {
		if err := effector.Enqueue(intent); err != nil {
			log.Printf("Warning: dropped intent: %v", err)
		}
	}

	if err := sense.Start(); err != nil {
		log.Fatalf("Failed to start Discord sense: %v", err)
	}

	// Injected thoughts from wisp-mcp
	inbox := senses.NewInboxSense(cfg.StatePath, cfg.Tick.InboxInterval.Std(), sched.Push)
	inbox.Start()

	sched.Start()

	log.Println("[main] All subsystems started. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[main] Shutting down...")

	sched.Stop()
	inbox.Stop()
	effector.Stop()
	sense.Stop()

	log.Println("[main] Goodbye!")
}

// registerNeurons wires the drive set, the alertness mode neuron, and the
// two pattern watchers
func registerNeurons(engine *neuron.Engine, conv *conversation.Tracker) {
	cfg := neuron.DefaultConfig()
	engine.Register(neuron.SocialDebt(cfg))
	engine.Register(neuron.ThoughtPressure(cfg))
	engine.Register(neuron.TaskPressure(cfg))
	engine.Register(neuron.Curiosity(cfg))
	engine.Register(neuron.SystemStress(cfg))
	engine.Register(neuron.Alertness(5*time.Minute, 0.1))
	engine.Register(neuron.SuddenSilence(conv, 5*time.Minute, 30*time.Minute, 15*time.Minute))
}
