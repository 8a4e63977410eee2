package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/thisisjab/rulezilla/entity"
	"github.com/thisisjab/rulezilla/fault"
)

// MemoryStorage keeps everything in process memory. Nothing survives a
// restart.
type MemoryStorage struct {
	mu          sync.RWMutex
	rules       map[uuid.UUID]entity.Rule
	order       []uuid.UUID
	evaluations []entity.Evaluation
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{rules: make(map[uuid.UUID]entity.Rule)}
}

func (s *MemoryStorage) Connect(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) Close(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) CreateRule(ctx context.Context, rule entity.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.ID]; ok {
		return fmt.Errorf("rule `%s` already exists", rule.ID)
	}

	s.rules[rule.ID] = rule
	s.order = append(s.order, rule.ID)

	return nil
}

func (s *MemoryStorage) GetRule(ctx context.Context, id uuid.UUID) (entity.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return entity.Rule{}, fault.NotFound("Rule", id)
	}

	return r, nil
}

func (s *MemoryStorage) ListRules(ctx context.Context) ([]entity.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]entity.Rule, 0, len(s.order))
	for _, id := range s.order {
		rules = append(rules, s.rules[id])
	}

	return rules, nil
}

func (s *MemoryStorage) StoreEvaluations(ctx context.Context, evaluations ...entity.Evaluation) error {
	if len(evaluations) == 0 {
		return nil
	}

	s.mu.Lock()
	s.evaluations = append(s.evaluations, evaluations...)
	s.mu.Unlock()

	return nil
}

// Evaluations returns a copy of every stored evaluation.
func (s *MemoryStorage) Evaluations() []entity.Evaluation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.evaluations)
}
