package privacy

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// ClassificationRule maps matching fields to a category.
type ClassificationRule struct {
	// Name identifies the rule in reports.
	Name string

	// Match reports whether the rule applies to a field name and value.
	// It must be pure.
	Match func(field, value string) bool

	// Category is assigned when Match returns true.
	Category Category
}

// PatternRule is a configurable rule built from regular expressions.
// An empty pattern matches anything; at least one pattern must be set.
type PatternRule struct {
	Name     string   `yaml:"name"`
	Field    string   `yaml:"field"`
	Value    string   `yaml:"value"`
	Category Category `yaml:"category"`
}

// Compile turns the pattern rule into a ClassificationRule.
func (p PatternRule) Compile() (ClassificationRule, error) {
	if p.Field == "" && p.Value == "" {
		return ClassificationRule{}, fmt.Errorf("%w: rule %q has neither field nor value pattern", ErrInvalidPattern, p.Name)
	}
	if _, err := ParseCategory(string(p.Category)); err != nil {
		return ClassificationRule{}, fmt.Errorf("rule %q: %w", p.Name, err)
	}

	var fieldRe, valueRe *regexp.Regexp
	var err error
	if p.Field != "" {
		if fieldRe, err = regexp.Compile(p.Field); err != nil {
			return ClassificationRule{}, fmt.Errorf("%w: rule %q field: %w", ErrInvalidPattern, p.Name, err)
		}
	}
	if p.Value != "" {
		if valueRe, err = regexp.Compile(p.Value); err != nil {
			return ClassificationRule{}, fmt.Errorf("%w: rule %q value: %w", ErrInvalidPattern, p.Name, err)
		}
	}

	name := p.Name
	if name == "" {
		name = "custom"
	}
	return ClassificationRule{
		Name:     name,
		Category: Category(strings.ToLower(string(p.Category))),
		Match: func(field, value string) bool {
			if fieldRe != nil && !fieldRe.MatchString(field) {
				return false
			}
			if valueRe != nil && !valueRe.MatchString(value) {
				return false
			}
			return true
		},
	}, nil
}

// CompilePatternRules compiles rules in order.
func CompilePatternRules(patterns []PatternRule) ([]ClassificationRule, error) {
	rules := make([]ClassificationRule, 0, len(patterns))
	for _, p := range patterns {
		r, err := p.Compile()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Classifier assigns categories using an ordered rule list.
// It is immutable and safe for concurrent use.
type Classifier struct {
	rules []ClassificationRule
}

// NewClassifier creates a classifier evaluating rules in the given order.
func NewClassifier(rules ...ClassificationRule) *Classifier {
	return &Classifier{rules: slices.Clone(rules)}
}

// NewDefaultClassifier creates a classifier that evaluates custom rules
// before the built-in rules.
func NewDefaultClassifier(custom ...ClassificationRule) *Classifier {
	return NewClassifier(append(slices.Clone(custom), DefaultRules()...)...)
}

// Classify returns the category of the first matching rule, or Public.
func (c *Classifier) Classify(field, value string) Category {
	cat, _ := c.ClassifyRule(field, value)
	return cat
}

// ClassifyRule is like Classify and also returns the name of the matching rule.
func (c *Classifier) ClassifyRule(field, value string) (Category, string) {
	for _, r := range c.rules {
		if r.Match(field, value) {
			return r.Category, r.Name
		}
	}
	return Public, ""
}

// Rules returns a copy of the rule list.
func (c *Classifier) Rules() []ClassificationRule {
	return slices.Clone(c.rules)
}

// DefaultRules returns the built-in rules. Order matters: more sensitive
// categories are checked first.
func DefaultRules() []ClassificationRule {
	return []ClassificationRule{
		{Name: "financial-field", Category: Financial, Match: fieldHas(financialFields)},
		{Name: "card-number", Category: Financial, Match: valueIs(isCardNumber)},
		{Name: "iban", Category: Financial, Match: valueIs(isIBAN)},
		{Name: "sensitive-field", Category: Sensitive, Match: fieldHas(sensitiveFields)},
		{Name: "ssn", Category: Sensitive, Match: valueIs(ssnPattern.MatchString)},
		{Name: "email", Category: Contact, Match: valueIs(isEmail)},
		{Name: "contact-field", Category: Contact, Match: fieldHas(contactFields)},
		{Name: "phone", Category: Contact, Match: valueIs(isPhone)},
		{Name: "personal-field", Category: Personal, Match: fieldHas(personalFields)},
		{Name: "proper-name", Category: Personal, Match: func(field, value string) bool {
			return hasToken(field, personHints) && isProperName(value)
		}},
	}
}

var (
	financialFields = []string{
		"card", "cc", "ccnum", "cardnumber", "credit", "cvv", "cvc", "iban", "bic", "swift",
		"bank", "account", "routing", "salary", "income", "tax", "payment",
	}
	sensitiveFields = []string{
		"ssn", "social", "passport", "license", "health", "medical", "diagnosis",
		"religion", "ethnicity", "race", "sexual", "orientation", "political",
		"biometric", "password", "passwd", "secret",
	}
	contactFields = []string{
		"email", "mail", "phone", "telephone", "tel", "mobile", "fax", "contact",
	}
	personalFields = []string{
		"name", "firstname", "lastname", "fullname", "surname", "username",
		"address", "street", "city", "zip", "zipcode", "postcode", "postal",
		"birth", "birthday", "dob", "birthdate", "age", "gender",
	}
	personHints = []string{
		"author", "by", "owner", "person", "editor", "writer", "creator", "member", "speaker",
	}

	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9 ().\-]{7,24}$`)
	ssnPattern   = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	datePattern  = regexp.MustCompile(`^(\d{4}[./-]\d{1,2}[./-]\d{1,2}|\d{1,2}[./-]\d{1,2}[./-]\d{2,4})$`)
	ibanPattern  = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)
)

// fieldTokens lower-cases a field name and splits it on separators.
// "author_email", "Author-Email", "meta:author" and "author.email" all
// yield their words.
func fieldTokens(field string) []string {
	return strings.FieldsFunc(strings.ToLower(field), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasToken(field string, words []string) bool {
	for _, tok := range fieldTokens(field) {
		if slices.Contains(words, tok) {
			return true
		}
	}
	return false
}

func fieldHas(words []string) func(field, value string) bool {
	return func(field, _ string) bool {
		return hasToken(field, words)
	}
}

func valueIs(pred func(string) bool) func(field, value string) bool {
	return func(_, value string) bool {
		return pred(strings.TrimSpace(value))
	}
}

func isEmail(v string) bool {
	return emailPattern.MatchString(v)
}

// isPhone accepts international (+) or separated numbers with 7 to 15
// digits. Bare digit runs and dates are rejected.
func isPhone(v string) bool {
	if !phonePattern.MatchString(v) || datePattern.MatchString(v) {
		return false
	}
	if !strings.HasPrefix(v, "+") && !strings.ContainsAny(v, " ()-.") {
		return false
	}
	digits := 0
	for _, r := range v {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

// isCardNumber reports whether v is a 13-19 digit number passing the Luhn
// check. Spaces and dashes are ignored.
func isCardNumber(v string) bool {
	var digits []int
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == ' ' || r == '-':
		default:
			return false
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// isIBAN validates format and the ISO 13616 mod-97 checksum.
func isIBAN(v string) bool {
	v = strings.ToUpper(strings.ReplaceAll(v, " ", ""))
	if !ibanPattern.MatchString(v) {
		return false
	}
	rearranged := v[4:] + v[:4]
	rem := 0
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			rem = (rem*10 + int(r-'0')) % 97
		default:
			n := int(r-'A') + 10
			rem = (rem*100 + n) % 97
		}
	}
	return rem == 1
}

// isProperName reports whether v looks like a person name: two to four
// capitalised words of letters, apostrophes or hyphens.
func isProperName(v string) bool {
	words := strings.Fields(v)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		runes := []rune(w)
		if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
			return false
		}
		for _, r := range runes[1:] {
			if !unicode.IsLower(r) && r != '\'' && r != '-' {
				return false
			}
		}
	}
	return true
}
