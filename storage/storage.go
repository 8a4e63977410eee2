package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/thisisjab/rulezilla/entity"
)

// Storage is implemented by every backend rules and evaluations can be
// persisted to.
type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	CreateRule(ctx context.Context, rule entity.Rule) error
	// GetRule returns a fault with fault.NotFoundCode when no rule has the
	// given id.
	GetRule(ctx context.Context, id uuid.UUID) (entity.Rule, error)
	// ListRules returns all rules ordered by creation time.
	ListRules(ctx context.Context) ([]entity.Rule, error)

	StoreEvaluations(ctx context.Context, evaluations ...entity.Evaluation) error
}

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Storage = (*ClickHouseStorage)(nil)
)
