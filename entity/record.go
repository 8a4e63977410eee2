package entity

import (
	"time"

	"github.com/google/uuid"
)

// Record is a single data record received from a record source.
// RawData holds the bytes as read; Data is filled by processors.
type Record struct {
	ID         uuid.UUID      `json:"id"`
	Source     string         `json:"source"`
	RawData    []byte         `json:"raw_data"`
	Data       map[string]any `json:"data"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Evaluation is the outcome of evaluating one rule against one record.
type Evaluation struct {
	ID          uuid.UUID `json:"id"`
	RecordID    uuid.UUID `json:"record_id"`
	Source      string    `json:"source"`
	RuleName    string    `json:"rule_name"`
	Eligible    bool      `json:"eligible"`
	Error       string    `json:"error,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}
