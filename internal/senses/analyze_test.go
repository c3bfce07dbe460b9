package senses

import "testing"

func TestQuestionDetection(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"are you around?", true},
		{"What happened to the deploy", true},
		{"could you take a look at this", true},
		{"the deploy finished", false},
		{"ok", false},
	}
	for _, tc := range cases {
		a := Analyze(tc.text)
		if a.IsQuestion != tc.want {
			t.Errorf("%q: expected is_question=%v, got %v", tc.text, tc.want, a.IsQuestion)
		}
	}
}

func TestEntityExtraction(t *testing.T) {
	a := Analyze("Alice flew to Paris on Tuesday to meet the Acme team")
	if len(a.Entities) == 0 {
		t.Skip("model found no entities in sample text")
	}
	seen := make(map[string]bool)
	for _, e := range a.Entities {
		if seen[e] {
			t.Errorf("duplicate entity %q", e)
		}
		seen[e] = true
	}
	t.Logf("entities: %v", a.Entities)
}

func TestWordCount(t *testing.T) {
	a := Analyze("three word message")
	if a.WordCount != 3 {
		t.Errorf("expected word count 3, got %d", a.WordCount)
	}
}
