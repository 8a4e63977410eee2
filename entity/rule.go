package entity

import (
	"time"

	"github.com/google/uuid"
)

// Rule is a stored rule string. Its tree is derived on demand and never
// persisted.
type Rule struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	RuleString string    `json:"rule_string"`
	CreatedAt  time.Time `json:"created_at"`
}
