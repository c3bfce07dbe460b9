// Package agenda turns persisted scheduled items into wake signals. The
// scheduler runs DueScan each tick; every open item past its due time is
// emitted exactly once as a scheduled_event signal and marked fired.
package agenda

import (
	"fmt"
	"time"

	"github.com/wisp-agent/wisp/internal/logging"
	"github.com/wisp-agent/wisp/internal/store"
	"github.com/wisp-agent/wisp/internal/types"
)

// Agenda wraps the store's agenda tables with the due-scan behavior
type Agenda struct {
	store *store.Store
}

func New(s *store.Store) *Agenda {
	return &Agenda{store: s}
}

// Schedule adds an item
func (a *Agenda) Schedule(item store.AgendaItem) error {
	return a.store.AddAgendaItem(item)
}

// Cancel cancels an open item
func (a *Agenda) Cancel(id string) error {
	return a.store.CancelItem(id)
}

// Open returns every open item, soonest first
func (a *Agenda) Open() ([]store.AgendaItem, error) {
	return a.store.OpenItems()
}

// Summaries renders open items for the review_agenda tool
func (a *Agenda) Summaries() []string {
	items, err := a.store.OpenItems()
	if err != nil {
		logging.Warn("agenda", "failed to list open items: %v", err)
		return nil
	}
	var out []string
	for _, item := range items {
		out = append(out, fmt.Sprintf("[%s] %s (due %s)", item.ID, item.Event, item.DueAt.Format(time.RFC3339)))
	}
	return out
}

// DueScan emits one scheduled_event signal per due item and closes each
// so it never fires twice
func (a *Agenda) DueScan(now time.Time, correlationID string) []*types.Signal {
	due, err := a.store.DueItems(now)
	if err != nil {
		logging.Warn("agenda", "due scan failed: %v", err)
		return nil
	}

	var signals []*types.Signal
	for _, item := range due {
		if err := a.store.MarkFired(item.ID); err != nil {
			// another scan beat us to it
			logging.Debug("agenda", "could not mark %s fired: %v", item.ID, err)
			continue
		}
		data := map[string]any{
			"event":    item.Event,
			"event_id": item.ID,
			"due_at":   item.DueAt.Format(time.RFC3339),
		}
		for k, v := range item.Payload {
			data[k] = v
		}
		signals = append(signals, &types.Signal{
			Type:          types.SignalScheduledEvent,
			Source:        "agenda",
			Metrics:       map[string]float64{types.MetricValue: 1.0, types.MetricConfidence: 1.0},
			Priority:      types.PriorityNormal,
			CorrelationID: correlationID,
			Data:          data,
			Timestamp:     now,
		})
		logging.Info("agenda", "item due: %s (%s)", item.Event, item.ID)
	}
	return signals
}
