package privacy

import "errors"

var (
	// ErrInvalidCategory is returned for an unknown data category name.
	ErrInvalidCategory = errors.New("invalid data category")

	// ErrInvalidStrategy is returned for an unknown anonymization strategy.
	ErrInvalidStrategy = errors.New("invalid anonymization strategy: must be redact, hash or drop")

	// ErrInvalidAction is returned for an unknown retention expiry action.
	ErrInvalidAction = errors.New("invalid expiry action: must be purge or anonymize")

	// ErrInvalidPattern is returned when a configured classification pattern does not compile.
	ErrInvalidPattern = errors.New("invalid classification pattern")
)
