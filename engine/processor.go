package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thisisjab/rulezilla/entity"
	"github.com/thisisjab/rulezilla/rule"
	"github.com/thisisjab/rulezilla/rule/ast"
)

// RecordProcessor is an interface that defines the contract for record processors.
type RecordProcessor interface {
	Process(record entity.Record) (entity.Record, error)
}

// Rule is a compiled rule the engine evaluates every record against.
type Rule struct {
	Name string
	Node ast.Node
}

type workerPool struct {
	sources      map[string]RecordSource
	processors   map[string]RecordProcessor
	rules        []Rule
	logger       *slog.Logger
	workersCount uint
	wg           sync.WaitGroup
}

func newWorkerPool(logger *slog.Logger, sources map[string]RecordSource, processors map[string]RecordProcessor, rules []Rule, workersCount uint) *workerPool {
	return &workerPool{
		sources:      sources,
		processors:   processors,
		rules:        rules,
		logger:       logger,
		workersCount: workersCount,
	}
}

// run fans records out to the workers and returns once records is drained
// or ctx is cancelled.
func (wp *workerPool) run(ctx context.Context, records <-chan entity.Record, results chan<- entity.Evaluation) {
	spawnWorker := func(workerId uint) {
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-records:
				if !ok {
					// The records channel is closed and empty. No more work.
					return
				}

				for _, e := range wp.evaluateRecord(r) {
					wp.logger.Debug("evaluated record", "worker_id", workerId, "record_id", e.RecordID, "rule", e.RuleName, "eligible", e.Eligible)

					select {
					case results <- e:
					case <-ctx.Done():
						// If we can't send because context is cancelled, exit.
						return
					}
				}
			}
		}
	}

	for i := range wp.workersCount {
		wp.wg.Go(func() {
			spawnWorker(i)
		})
	}

	wp.wg.Wait()
}

// evaluateRecord processes r and evaluates every rule against it. A record
// that cannot be processed yields one failed evaluation per rule.
func (wp *workerPool) evaluateRecord(r entity.Record) []entity.Evaluation {
	processed, procErr := wp.processRecord(r)

	evaluations := make([]entity.Evaluation, 0, len(wp.rules))
	for _, rl := range wp.rules {
		e := entity.Evaluation{
			ID:       uuid.New(),
			RecordID: r.ID,
			Source:   r.Source,
			RuleName: rl.Name,
		}

		if procErr != nil {
			e.Error = procErr.Error()
		} else if ok, err := rule.Evaluate(rl.Node, processed.Data); err != nil {
			e.Error = err.Error()
		} else {
			e.Eligible = ok
		}

		e.EvaluatedAt = time.Now()
		evaluations = append(evaluations, e)
	}

	return evaluations
}

func (wp *workerPool) processRecord(r entity.Record) (entity.Record, error) {
	src, ok := wp.sources[r.Source]
	if !ok {
		wp.logger.Error("Source not found", "source", r.Source)
		return r, fmt.Errorf("source `%s` not found", r.Source)
	}

	for _, pName := range src.ProcessorNames() {
		p := wp.processors[pName]
		if p == nil {
			wp.logger.Warn("Processor not found", "processor", pName)
			continue
		}

		processed, err := p.Process(r)
		if err != nil {
			wp.logger.Error("Failed to process record", "processor", pName, "record_id", r.ID, "error", err)
			return r, fmt.Errorf("processor `%s`: %w", pName, err)
		}

		r = processed
	}

	return r, nil
}
