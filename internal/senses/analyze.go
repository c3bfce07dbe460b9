package senses

import (
	"strings"

	"github.com/tsawler/prose/v3"
)

// Analysis is the shallow NLP read of an inbound message, attached to the
// signal payload so the cognition prompt and the threshold rules can use it
// without re-parsing
type Analysis struct {
	Entities   []string `json:"entities,omitempty"`
	IsQuestion bool     `json:"is_question"`
	WordCount  int      `json:"word_count"`
}

var questionOpeners = []string{
	"who", "what", "when", "where", "why", "how",
	"can you", "could you", "would you", "do you", "did you", "is it", "are you",
}

// Analyze extracts named entities and question-ness from message text.
// Returns a zero Analysis on parse failure rather than an error; the
// message still wakes the agent without it.
func Analyze(text string) Analysis {
	a := Analysis{
		IsQuestion: isQuestion(text),
		WordCount:  len(strings.Fields(text)),
	}

	doc, err := prose.NewDocument(text)
	if err != nil {
		return a
	}
	seen := make(map[string]bool)
	for _, ent := range doc.Entities() {
		if seen[ent.Text] {
			continue
		}
		seen[ent.Text] = true
		a.Entities = append(a.Entities, ent.Text)
	}
	return a
}

func isQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, opener := range questionOpeners {
		if strings.HasPrefix(lower, opener+" ") {
			return true
		}
	}
	return false
}
