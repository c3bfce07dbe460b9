// Package reflex answers trivial messages without waking cognition.
// Rules are pattern-reply pairs defined in YAML files; a hit sends the
// canned reply and the message never reaches the threshold engine.
package reflex

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wisp-agent/wisp/internal/logging"
)

// Duration accepts "30s"/"5m" strings in YAML
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Rule is one pattern-reply pair defined in YAML
type Rule struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Pattern     string   `yaml:"pattern"`  // regex, matched case-insensitively against the whole message
	Reply       string   `yaml:"reply"`    // canned response; $1..$n expand capture groups
	Priority    int      `yaml:"priority"` // higher fires first when multiple match
	Cooldown    Duration `yaml:"cooldown"` // minimum gap between fires, 0 = none

	compiled  *regexp.Regexp
	lastFired time.Time
	fireCount int
}

// Hit is a matched rule with its expanded reply
type Hit struct {
	Rule  string
	Reply string
}

// Engine holds the loaded rules
type Engine struct {
	mu    sync.Mutex
	rules []*Rule
}

// New creates an empty engine; call Load to populate it
func New() *Engine {
	return &Engine{}
}

// Load reads every *.yaml/*.yml file in dir. Each file holds one rule.
// A missing directory is fine, the agent just has no reflexes.
func (e *Engine) Load(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return err
	}
	ymlFiles, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return err
	}
	files = append(files, ymlFiles...)

	var rules []*Rule
	for _, file := range files {
		rule, err := loadRule(file)
		if err != nil {
			logging.Warn("reflex", "skipping %s: %v", filepath.Base(file), err)
			continue
		}
		rules = append(rules, rule)
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})

	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()

	logging.Info("reflex", "loaded %d rules from %s", len(rules), dir)
	return nil
}

// Add registers a rule directly. Used by tests and programmatic setup.
func (e *Engine) Add(rule Rule) error {
	compiled, err := compilePattern(rule.Pattern)
	if err != nil {
		return err
	}
	rule.compiled = compiled

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, &rule)
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority > e.rules[j].Priority
	})
	return nil
}

// Match returns the highest-priority rule hit for a message, or nil.
// A hit advances the rule's cooldown clock.
func (e *Engine) Match(content string, now time.Time) *Hit {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rule := range e.rules {
		if rule.Cooldown > 0 && now.Sub(rule.lastFired) < time.Duration(rule.Cooldown) {
			continue
		}
		m := rule.compiled.FindStringSubmatchIndex(content)
		if m == nil {
			continue
		}
		rule.lastFired = now
		rule.fireCount++
		reply := string(rule.compiled.ExpandString(nil, rule.Reply, content, m))
		return &Hit{Rule: rule.Name, Reply: reply}
	}
	return nil
}

// Stats reports fire counts per rule name
func (e *Engine) Stats() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int)
	for _, rule := range e.rules {
		out[rule.Name] = rule.fireCount
	}
	return out
}

func loadRule(path string) (*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rule Rule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if rule.Name == "" {
		rule.Name = filepath.Base(path)
	}
	if rule.Reply == "" {
		return nil, fmt.Errorf("rule %s has no reply", rule.Name)
	}
	rule.compiled, err = compilePattern(rule.Pattern)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("rule has no pattern")
	}
	return regexp.Compile("(?i)" + pattern)
}
