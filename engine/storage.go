package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/thisisjab/rulezilla/entity"
)

// Storage represents a storage interface for the engine.
type Storage interface {
	StoreEvaluations(ctx context.Context, evaluations ...entity.Evaluation) error
}

// storageManager manages storage operations like inserting, buffering, and flushing evaluations.
// Note that you should never disable buffering and scheduled flushing together.
type storageManager struct {
	storage     Storage
	logger      *slog.Logger
	buffer      []entity.Evaluation
	bufferMutex sync.Mutex
	wg          sync.WaitGroup

	// bufferMaxSize defines the maximum items that buffer holds before flushing.
	// If value is reached, buffer will be flushed immediately.
	// Setting this to zero will disable buffering.
	bufferMaxSize uint

	// flushInterval defines the interval at which buffer will be flushed.
	// Setting flushInterval to 0 will disable scheduled flushing.
	flushInterval time.Duration
}

func newStorageManager(logger *slog.Logger, storage Storage, bufferMaxSize uint, flushInterval time.Duration) *storageManager {
	return &storageManager{
		logger:        logger,
		storage:       storage,
		bufferMaxSize: bufferMaxSize,
		buffer:        make([]entity.Evaluation, 0, bufferMaxSize),
		flushInterval: flushInterval,
	}
}

// run flushes the buffer on every tick until ctx is done, then flushes what
// is left and waits for in-flight flushes.
func (sm *storageManager) run(ctx context.Context) {
	// A nil channel blocks forever, which disables scheduled flushing.
	var tick <-chan time.Time

	if sm.flushInterval > 0 {
		ticker := time.NewTicker(sm.flushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			// The final flush must not be cancelled together with ctx.
			sm.flush(context.WithoutCancel(ctx))
			sm.wg.Wait()
			return
		case <-tick:
			sm.flush(ctx)
		}
	}
}

func (sm *storageManager) flush(ctx context.Context) {
	var toFlush []entity.Evaluation

	// Swap buffer
	sm.bufferMutex.Lock()
	if len(sm.buffer) > 0 {
		toFlush = sm.buffer
		sm.buffer = make([]entity.Evaluation, 0, sm.bufferMaxSize)
	}
	sm.bufferMutex.Unlock()

	if len(toFlush) > 0 {
		sm.store(ctx, toFlush)
	}
}

func (sm *storageManager) store(ctx context.Context, toFlush []entity.Evaluation) {
	sm.wg.Go(func() {
		if err := sm.storage.StoreEvaluations(ctx, toFlush...); err != nil {
			sm.logger.Error("failed to flush evaluations", "count", len(toFlush), "error", err)
			return
		}

		sm.logger.Debug("flushed evaluations successfully", "count", len(toFlush))
	})
}

func (sm *storageManager) add(ctx context.Context, evaluations ...entity.Evaluation) {
	if len(evaluations) == 0 {
		return
	}

	var toFlush []entity.Evaluation

	sm.bufferMutex.Lock()
	sm.buffer = append(sm.buffer, evaluations...)

	// Check if buffer reached flush size
	if uint(len(sm.buffer)) >= sm.bufferMaxSize {
		toFlush = sm.buffer
		sm.buffer = make([]entity.Evaluation, 0, sm.bufferMaxSize)
	}
	sm.bufferMutex.Unlock()

	// Flush asynchronously if needed
	if toFlush != nil {
		sm.store(ctx, toFlush)
	}
}
