package privacy

import (
	"time"

	"github.com/google/uuid"
)

// Item is one collected field value.
type Item struct {
	ID          string    `json:"id"`
	SourceURL   string    `json:"source_url"`
	Field       string    `json:"field"`
	Value       string    `json:"value"`
	Category    Category  `json:"category"`
	CollectedAt time.Time `json:"collected_at"`
	Anonymized  bool      `json:"anonymized"`
}

// NewItem creates an Item with a random ID.
func NewItem(sourceURL, field, value string, cat Category, collectedAt time.Time) Item {
	return Item{
		ID:          uuid.NewString(),
		SourceURL:   sourceURL,
		Field:       field,
		Value:       value,
		Category:    cat,
		CollectedAt: collectedAt,
	}
}
