package privacy

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Strategy is how an anonymized value is replaced.
type Strategy string

const (
	// StrategyRedact replaces the value with a category marker.
	StrategyRedact Strategy = "redact"
	// StrategyHash replaces the value with a salted SHA3-256 digest.
	StrategyHash Strategy = "hash"
	// StrategyDrop replaces the value with an empty string, keeping the record.
	StrategyDrop Strategy = "drop"
)

// ParseStrategy converts a case-insensitive name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StrategyRedact, StrategyHash, StrategyDrop:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
	}
}

// Anonymizer replaces values according to a strategy.
type Anonymizer struct {
	strategy Strategy
	salt     []byte
}

// NewAnonymizer creates an Anonymizer. salt is only used by StrategyHash.
func NewAnonymizer(strategy Strategy, salt string) (*Anonymizer, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	return &Anonymizer{strategy: strategy, salt: []byte(salt)}, nil
}

// Strategy returns the configured strategy.
func (a *Anonymizer) Strategy() Strategy {
	if a == nil {
		return StrategyRedact
	}
	return a.strategy
}

// Anonymize returns the replacement for value. A nil Anonymizer redacts.
func (a *Anonymizer) Anonymize(cat Category, value string) string {
	switch a.Strategy() {
	case StrategyHash:
		h := sha3.New256()
		h.Write(a.salt)
		h.Write([]byte(value))
		return "sha3:" + hex.EncodeToString(h.Sum(nil))
	case StrategyDrop:
		return ""
	default:
		return "[REDACTED:" + string(cat) + "]"
	}
}
