package engine

import (
	"context"

	"github.com/thisisjab/rulezilla/entity"
)

// RecordSource is an interface that defines the contract for record sources (providers).
// Provide returns once the source is exhausted or ctx is cancelled.
type RecordSource interface {
	Name() string
	Provide(ctx context.Context, recordChan chan<- entity.Record) error
	ProcessorNames() []string
}
