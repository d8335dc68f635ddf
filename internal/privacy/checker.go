package privacy

import (
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/nao1215/politecrawl/internal/metrics"
)

// Ruleset bundles the classifier and collection rules used by a Checker.
// A Ruleset is immutable; reloading configuration swaps in a new one.
type Ruleset struct {
	classifier    *Classifier
	rules         map[Category]CollectionRule
	denyByDefault bool
}

// NewRuleset creates a Ruleset. A nil classifier uses the built-in rules.
// Rule categories are matched case-insensitively. For duplicate categories
// the later rule wins.
func NewRuleset(classifier *Classifier, rules []CollectionRule, denyByDefault bool) *Ruleset {
	if classifier == nil {
		classifier = NewDefaultClassifier()
	}
	m := make(map[Category]CollectionRule, len(rules))
	for _, r := range rules {
		if cat, err := ParseCategory(string(r.Category)); err == nil {
			r.Category = cat
		}
		m[r.Category] = r
	}
	return &Ruleset{classifier: classifier, rules: m, denyByDefault: denyByDefault}
}

// FieldDecision records how one field of a record was handled.
type FieldDecision struct {
	Field     string   `json:"field"`
	Rule      string   `json:"rule,omitempty"`
	Category  Category `json:"category"`
	Allowed   bool     `json:"allowed"`
	Anonymize bool     `json:"anonymized"`
}

// Report lists the decisions for one evaluated record, sorted by field name.
type Report struct {
	Decisions []FieldDecision `json:"decisions"`
}

// Denied returns the names of fields removed from the record.
func (r Report) Denied() []string {
	var out []string
	for _, d := range r.Decisions {
		if !d.Allowed {
			out = append(out, d.Field)
		}
	}
	return out
}

// Anonymized returns the names of fields whose value was replaced.
func (r Report) Anonymized() []string {
	var out []string
	for _, d := range r.Decisions {
		if d.Allowed && d.Anonymize {
			out = append(out, d.Field)
		}
	}
	return out
}

// Merge appends the decisions of other.
func (r *Report) Merge(other Report) {
	r.Decisions = append(r.Decisions, other.Decisions...)
}

// Checker evaluates collected fields against the active Ruleset.
// It is safe for concurrent use; SetRuleset may be called at any time.
type Checker struct {
	ruleset    atomic.Pointer[Ruleset]
	anonymizer *Anonymizer
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithAnonymizer sets the anonymizer used for fields requiring anonymization.
func WithAnonymizer(a *Anonymizer) CheckerOption {
	return func(c *Checker) {
		c.anonymizer = a
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) CheckerOption {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) CheckerOption {
	return func(c *Checker) {
		c.metrics = m
	}
}

// NewChecker creates a Checker. A nil ruleset allows every category and
// uses the built-in classifier.
func NewChecker(rs *Ruleset, opts ...CheckerOption) *Checker {
	if rs == nil {
		rs = NewRuleset(nil, nil, false)
	}
	c := &Checker{logger: slog.Default()}
	c.ruleset.Store(rs)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetRuleset atomically replaces the active ruleset.
func (c *Checker) SetRuleset(rs *Ruleset) {
	if rs != nil {
		c.ruleset.Store(rs)
	}
}

// Anonymizer returns the configured anonymizer.
func (c *Checker) Anonymizer() *Anonymizer {
	return c.anonymizer
}

// Classify returns the category of a field value under the active ruleset.
func (c *Checker) Classify(field, value string) Category {
	return c.ruleset.Load().classifier.Classify(field, value)
}

// EvaluateCollection looks up the collection rule for cat. Without a rule
// the category is allowed without anonymization, unless the ruleset denies
// by default.
func (c *Checker) EvaluateCollection(cat Category) Decision {
	return c.ruleset.Load().evaluate(cat)
}

func (rs *Ruleset) evaluate(cat Category) Decision {
	rule, ok := rs.rules[cat]
	if !ok {
		return Decision{Category: cat, Allowed: !rs.denyByDefault}
	}
	return Decision{
		Category:  cat,
		Allowed:   rule.Allowed,
		Anonymize: rule.Allowed && rule.RequiresAnonymization,
	}
}

// EvaluateRecord classifies every field, drops denied fields and
// anonymizes fields that require it. Denials are reported, never returned
// as errors. fields is not modified.
func (c *Checker) EvaluateRecord(fields map[string]string) (map[string]string, Report) {
	rs := c.ruleset.Load()

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	filtered := make(map[string]string, len(fields))
	report := Report{Decisions: make([]FieldDecision, 0, len(names))}

	for _, name := range names {
		value := fields[name]
		cat, ruleName := rs.classifier.ClassifyRule(name, value)
		d := rs.evaluate(cat)

		report.Decisions = append(report.Decisions, FieldDecision{
			Field:     name,
			Rule:      ruleName,
			Category:  cat,
			Allowed:   d.Allowed,
			Anonymize: d.Anonymize,
		})
		c.metrics.RecordPrivacyDecision(string(cat), d.Allowed, d.Anonymize)

		switch {
		case !d.Allowed:
			c.logger.Debug("field dropped by collection rule", "field", name, "category", string(cat))
		case d.Anonymize:
			filtered[name] = c.anonymizer.Anonymize(cat, value)
		default:
			filtered[name] = value
		}
	}
	return filtered, report
}

// Collect evaluates fields collected from sourceURL and returns the
// permitted ones as items stamped with collectedAt.
func (c *Checker) Collect(sourceURL string, fields map[string]string, collectedAt time.Time) ([]Item, Report) {
	filtered, report := c.EvaluateRecord(fields)

	items := make([]Item, 0, len(filtered))
	for _, d := range report.Decisions {
		if !d.Allowed {
			continue
		}
		item := NewItem(sourceURL, d.Field, filtered[d.Field], d.Category, collectedAt)
		item.Anonymized = d.Anonymize
		items = append(items, item)
	}
	return items, report
}

// Retention applies policies to items at now with the checker's anonymizer.
func (c *Checker) Retention(items []Item, policies map[Category]RetentionPolicy, now time.Time) SweepResult {
	res := Sweep(items, policies, now, c.anonymizer)
	c.metrics.RecordRetention(string(Purge), len(res.Purged))
	c.metrics.RecordRetention(string(Anonymize), len(res.Anonymized))
	if len(res.Purged) > 0 || len(res.Anonymized) > 0 {
		c.logger.Info("retention applied",
			"purged", len(res.Purged),
			"anonymized", len(res.Anonymized),
			"kept", len(res.Kept),
		)
	}
	return res
}
