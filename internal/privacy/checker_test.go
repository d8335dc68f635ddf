package privacy

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestEvaluateRecordDropsDeniedContactField(t *testing.T) {
	t.Parallel()

	checker := NewChecker(NewRuleset(nil, []CollectionRule{
		{Category: Contact, Allowed: false},
	}, false))

	filtered, report := checker.EvaluateRecord(map[string]string{
		"author_email": "jane@example.com",
		"title":        "Release notes",
	})

	if _, ok := filtered["author_email"]; ok {
		t.Error("denied field was kept")
	}
	if filtered["title"] != "Release notes" {
		t.Errorf("title = %q", filtered["title"])
	}

	denied := report.Denied()
	if len(denied) != 1 || denied[0] != "author_email" {
		t.Fatalf("Denied() = %v", denied)
	}
	d := report.Decisions[0]
	if d.Field != "author_email" || d.Category != Contact || d.Allowed || d.Rule != "email" {
		t.Errorf("decision = %+v", d)
	}
}

func TestCollectionRuleCategoryIgnoresCase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		category Category
	}{
		{name: "capitalized", category: "Contact"},
		{name: "upper case", category: "CONTACT"},
		{name: "padded", category: " contact "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			checker := NewChecker(NewRuleset(nil, []CollectionRule{
				{Category: tt.category, Allowed: false},
			}, false))

			if d := checker.EvaluateCollection(Contact); d.Allowed {
				t.Errorf("rule for %q not applied: %+v", tt.category, d)
			}
			filtered, report := checker.EvaluateRecord(map[string]string{"email": "jane@example.com"})
			if _, ok := filtered["email"]; ok {
				t.Errorf("contact field kept with rule %q: %v", tt.category, filtered)
			}
			if denied := report.Denied(); len(denied) != 1 || denied[0] != "email" {
				t.Errorf("Denied() = %v", denied)
			}
		})
	}
}

func TestEvaluateCollection(t *testing.T) {
	t.Parallel()

	rules := []CollectionRule{
		{Category: Contact, Allowed: true, RequiresAnonymization: true},
		{Category: Financial, Allowed: false, RequiresAnonymization: true},
	}

	tests := []struct {
		name          string
		denyByDefault bool
		cat           Category
		want          Decision
	}{
		{name: "anonymized category", cat: Contact, want: Decision{Category: Contact, Allowed: true, Anonymize: true}},
		{name: "denied category never anonymizes", cat: Financial, want: Decision{Category: Financial}},
		{name: "missing rule allows", cat: Personal, want: Decision{Category: Personal, Allowed: true}},
		{name: "missing rule denies by default", denyByDefault: true, cat: Personal, want: Decision{Category: Personal}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			checker := NewChecker(NewRuleset(nil, rules, tt.denyByDefault))
			if got := checker.EvaluateCollection(tt.cat); got != tt.want {
				t.Errorf("EvaluateCollection(%q) = %+v, want %+v", tt.cat, got, tt.want)
			}
		})
	}
}

func TestEvaluateRecordAnonymizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		strategy Strategy
		check    func(string) bool
	}{
		{strategy: StrategyRedact, check: func(v string) bool { return v == "[REDACTED:contact]" }},
		{strategy: StrategyHash, check: func(v string) bool { return strings.HasPrefix(v, "sha3:") && len(v) == len("sha3:")+64 }},
		{strategy: StrategyDrop, check: func(v string) bool { return v == "" }},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			t.Parallel()

			anon, err := NewAnonymizer(tt.strategy, "salt")
			if err != nil {
				t.Fatal(err)
			}
			checker := NewChecker(
				NewRuleset(nil, []CollectionRule{{Category: Contact, Allowed: true, RequiresAnonymization: true}}, false),
				WithAnonymizer(anon),
			)

			input := map[string]string{"email": "jane@example.com"}
			filtered, report := checker.EvaluateRecord(input)

			v, ok := filtered["email"]
			if !ok {
				t.Fatal("anonymized field must be kept")
			}
			if !tt.check(v) {
				t.Errorf("anonymized value = %q", v)
			}
			if got := report.Anonymized(); len(got) != 1 || got[0] != "email" {
				t.Errorf("Anonymized() = %v", got)
			}
			if input["email"] != "jane@example.com" {
				t.Error("input record was modified")
			}
		})
	}
}

func TestHashIsSaltedAndStable(t *testing.T) {
	t.Parallel()

	a, _ := NewAnonymizer(StrategyHash, "one")
	b, _ := NewAnonymizer(StrategyHash, "two")

	if a.Anonymize(Contact, "x") != a.Anonymize(Contact, "x") {
		t.Error("hash is not stable")
	}
	if a.Anonymize(Contact, "x") == b.Anonymize(Contact, "x") {
		t.Error("salt has no effect")
	}
	if _, err := NewAnonymizer("shred", ""); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestCheckerCollect(t *testing.T) {
	t.Parallel()

	checker := NewChecker(NewRuleset(nil, []CollectionRule{
		{Category: Contact, Allowed: true, RequiresAnonymization: true},
		{Category: Financial, Allowed: false},
	}, false))
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	items, report := checker.Collect("https://example.com/about", map[string]string{
		"email": "jane@example.com",
		"card":  "4111111111111111",
		"title": "About",
	}, now)

	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if len(report.Decisions) != 3 {
		t.Errorf("decisions = %d, want 3", len(report.Decisions))
	}
	for _, it := range items {
		if it.ID == "" || it.SourceURL != "https://example.com/about" || !it.CollectedAt.Equal(now) {
			t.Errorf("item metadata = %+v", it)
		}
		if it.Field == "email" && (!it.Anonymized || it.Value != "[REDACTED:contact]") {
			t.Errorf("email item = %+v", it)
		}
	}
}

func TestSetRulesetConcurrent(t *testing.T) {
	t.Parallel()

	allow := NewRuleset(nil, nil, false)
	deny := NewRuleset(nil, nil, true)
	checker := NewChecker(allow)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				checker.SetRuleset(deny)
			} else {
				checker.SetRuleset(allow)
			}
		}()
		go func() {
			defer wg.Done()
			// Each call sees one complete ruleset: the decision is either
			// all-allow or all-deny for the record.
			_, report := checker.EvaluateRecord(map[string]string{"a": "1", "b": "2"})
			if report.Decisions[0].Allowed != report.Decisions[1].Allowed {
				t.Error("record evaluated against two rulesets")
			}
		}()
	}
	wg.Wait()
}
