package privacy

import (
	"fmt"
	"strings"
	"time"
)

// Category is the data category of a field value.
type Category string

// Data categories, from least to most sensitive.
const (
	Public    Category = "public"
	Contact   Category = "contact"
	Personal  Category = "personal"
	Sensitive Category = "sensitive"
	Financial Category = "financial"
)

// Categories returns all categories in ascending sensitivity.
func Categories() []Category {
	return []Category{Public, Contact, Personal, Sensitive, Financial}
}

// ParseCategory converts a case-insensitive name into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case Public, Contact, Personal, Sensitive, Financial:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}

// CollectionRule says whether fields of a category may be collected.
type CollectionRule struct {
	Category              Category `json:"category" yaml:"category"`
	Allowed               bool     `json:"allowed" yaml:"allowed"`
	RequiresAnonymization bool     `json:"requires_anonymization" yaml:"requires_anonymization"`
}

// Decision is the result of evaluating a category against the collection rules.
type Decision struct {
	Category  Category `json:"category"`
	Allowed   bool     `json:"allowed"`
	Anonymize bool     `json:"anonymize"`
}

// ExpiryAction is what happens to an item older than its retention age.
type ExpiryAction string

const (
	// Purge removes the item.
	Purge ExpiryAction = "purge"
	// Anonymize replaces the item value using the configured strategy.
	Anonymize ExpiryAction = "anonymize"
)

// ParseExpiryAction converts "purge" or "anonymize" into an ExpiryAction.
func ParseExpiryAction(s string) (ExpiryAction, error) {
	a := ExpiryAction(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case Purge, Anonymize:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// RetentionPolicy bounds how long items of a category are kept.
type RetentionPolicy struct {
	Category Category      `json:"category"`
	MaxAge   time.Duration `json:"max_age"`
	Action   ExpiryAction  `json:"action"`
}
