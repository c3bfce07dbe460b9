// Package effectors applies MessageIntents to the outside world. The
// Discord effector drains a queue the scheduler fills with send_message
// intents; the rest of an intent batch (state, agenda) is applied by the
// scheduler itself.
package effectors

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/wisp-agent/wisp/internal/logging"
	"github.com/wisp-agent/wisp/internal/types"
)

// Discord's hard message size limit
const maxMessageLen = 2000

// sender is the slice of discordgo the effector needs, kept narrow so
// tests can fake it
type sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// DiscordEffector sends queued message intents to Discord
type DiscordEffector struct {
	session      sender
	pollInterval time.Duration
	onSent       func(channelID, content string)

	mu    sync.Mutex
	queue []types.Intent

	stopChan chan struct{}
}

// NewDiscordEffector wraps a session shared with the sense. onSent fires
// after each successful delivery so the conversation tracker and the
// message log stay current.
func NewDiscordEffector(session *discordgo.Session, onSent func(channelID, content string)) *DiscordEffector {
	return &DiscordEffector{
		session:      session,
		pollInterval: 100 * time.Millisecond,
		onSent:       onSent,
		stopChan:     make(chan struct{}),
	}
}

// Enqueue accepts a send_message intent for delivery
func (e *DiscordEffector) Enqueue(intent types.Intent) error {
	if intent.Kind != types.IntentSendMessage {
		return fmt.Errorf("discord effector only handles send_message, got %s", intent.Kind)
	}
	if intent.ChannelID == "" {
		return fmt.Errorf("send_message intent missing channel_id")
	}
	if intent.Message == "" {
		return fmt.Errorf("send_message intent missing message")
	}
	e.mu.Lock()
	e.queue = append(e.queue, intent)
	e.mu.Unlock()
	return nil
}

// Start begins draining the queue
func (e *DiscordEffector) Start() {
	go e.pollLoop()
	logging.Info("discord-effector", "started")
}

// Stop halts the effector
func (e *DiscordEffector) Stop() {
	close(e.stopChan)
}

func (e *DiscordEffector) pollLoop() {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.drain()
		}
	}
}

func (e *DiscordEffector) drain() {
	e.mu.Lock()
	pending := e.queue
	e.queue = nil
	e.mu.Unlock()

	for _, intent := range pending {
		if err := e.deliver(intent); err != nil {
			logging.Warn("discord-effector", "failed to send to %s: %v", intent.ChannelID, err)
			continue
		}
		if e.onSent != nil {
			e.onSent(intent.ChannelID, intent.Message)
		}
	}
}

func (e *DiscordEffector) deliver(intent types.Intent) error {
	// typing indicator makes long sends feel less abrupt; failure is harmless
	if err := e.session.ChannelTyping(intent.ChannelID); err != nil {
		logging.Debug("discord-effector", "typing indicator failed: %v", err)
	}

	for _, chunk := range chunkMessage(intent.Message, maxMessageLen) {
		if _, err := e.session.ChannelMessageSend(intent.ChannelID, chunk); err != nil {
			return err
		}
	}
	logging.Info("discord-effector", "sent %d chars to %s", len(intent.Message), intent.ChannelID)
	return nil
}

// chunkMessage splits a message at the size limit, preferring newline then
// space boundaries so words and paragraphs survive intact
func chunkMessage(content string, limit int) []string {
	if len(content) <= limit {
		return []string{content}
	}

	var chunks []string
	for len(content) > limit {
		cut := limit
		if i := lastIndexByte(content[:limit], '\n'); i > limit/2 {
			cut = i
		} else if i := lastIndexByte(content[:limit], ' '); i > limit/2 {
			cut = i
		}
		chunks = append(chunks, content[:cut])
		content = trimLeadingSpace(content[cut:])
	}
	if len(content) > 0 {
		chunks = append(chunks, content)
	}
	return chunks
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func trimLeadingSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\n') {
		s = s[1:]
	}
	return s
}
