package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thisisjab/rulezilla/entity"
	"github.com/thisisjab/rulezilla/rule/ast"
)

type Config struct {
	Sources                  map[string]RecordSource
	Processors               map[string]RecordProcessor
	Rules                    []Rule
	Storage                  Storage
	StorageFlushInterval     time.Duration
	RecordsBufferMaxSize     uint
	EvaluationsBufferMaxSize uint
	WorkersCount             uint
}

// Engine orchestrates record sources, processors and rule evaluation, and
// hands the resulting evaluations to storage.
type Engine struct {
	cfg            Config
	logger         *slog.Logger
	storageManager *storageManager
}

func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Engine{
		cfg:            cfg,
		logger:         logger,
		storageManager: newStorageManager(logger, cfg.Storage, cfg.EvaluationsBufferMaxSize, cfg.StorageFlushInterval)}, nil
}

func (c Config) validate() error {
	if len(c.Sources) == 0 {
		return errors.New("no record sources are configured")
	}

	for name, src := range c.Sources {
		for _, pName := range src.ProcessorNames() {
			if _, ok := c.Processors[pName]; !ok {
				return fmt.Errorf("source `%s` uses undefined processor `%s`", name, pName)
			}
		}
	}

	if len(c.Rules) == 0 {
		return errors.New("no rules are configured")
	}

	seen := make(map[string]struct{}, len(c.Rules))
	for _, r := range c.Rules {
		if r.Name == "" {
			return errors.New("rule name cannot be empty")
		}
		if _, ok := seen[r.Name]; ok {
			return fmt.Errorf("rule `%s` is defined more than once", r.Name)
		}
		seen[r.Name] = struct{}{}

		if !ast.IsValid(r.Node) {
			return fmt.Errorf("rule `%s` has an invalid tree", r.Name)
		}
	}

	if c.Storage == nil {
		return errors.New("no evaluation storage is configured")
	}

	if c.EvaluationsBufferMaxSize == 0 && c.StorageFlushInterval == 0 {
		return errors.New("buffer max size and storage flush interval cannot both be zero")
	}

	if c.WorkersCount == 0 {
		return errors.New("workers count cannot be zero")
	}

	return nil
}

// Run evaluates records until every source is exhausted, in which case it
// returns nil, or until ctx is cancelled. Buffered evaluations are flushed
// before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	// Start consuming records from all sources.
	// records will contain all records from all sources.
	records := e.consumeRecords(ctx)

	evaluations := make(chan entity.Evaluation, e.cfg.EvaluationsBufferMaxSize)

	wp := newWorkerPool(e.logger, e.cfg.Sources, e.cfg.Processors, e.cfg.Rules, e.cfg.WorkersCount)

	// The storage manager outlives ctx so that pending evaluations still get flushed.
	storageCtx, stopStorage := context.WithCancel(context.WithoutCancel(ctx))
	defer stopStorage()

	var wg sync.WaitGroup

	// Storage manager handles buffering, and periodic saves.
	wg.Go(func() { e.storageManager.run(storageCtx) })
	// Worker pool handles fan-out pattern.
	go func() {
		wp.run(ctx, records, evaluations)
		close(evaluations)
	}()

	for ev := range evaluations {
		e.storageManager.add(storageCtx, ev)
	}

	stopStorage()
	wg.Wait()

	return ctx.Err()
}

func (e *Engine) consumeRecords(ctx context.Context) <-chan entity.Record {
	records := make(chan entity.Record, e.cfg.RecordsBufferMaxSize)
	e.logger.Info("created incoming records channel.", "size", e.cfg.RecordsBufferMaxSize)

	var sourceWg sync.WaitGroup

	// Spawn sources
	for n, s := range e.cfg.Sources {
		sourceWg.Add(1)
		go func(name string, src RecordSource) {
			defer sourceWg.Done()
			err := src.Provide(ctx, records)

			if err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("record source stopped with error.", "name", name, "error", err)
			}
		}(n, s)
	}

	go func() {
		sourceWg.Wait()
		close(records)
	}()

	return records
}
