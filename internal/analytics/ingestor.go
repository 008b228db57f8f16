package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/nulzo/atlas-api/internal/store"
	"github.com/nulzo/atlas-api/internal/store/model"
	"go.uber.org/zap"
)

// Ingestor persists request logs off the request path.
type Ingestor interface {
	// Log enqueues a record. It never blocks; records are dropped when the
	// buffer is full.
	Log(log *model.RequestLog)
	Start(ctx context.Context)
	// Stop flushes what is buffered and waits for the worker to exit.
	Stop()
}

// IngestorOptions tune batching. Zero fields take the defaults; a zero
// Retention disables pruning.
type IngestorOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	Retention     time.Duration
	PruneInterval time.Duration
}

func DefaultIngestorOptions() IngestorOptions {
	return IngestorOptions{
		BufferSize:    10000,
		BatchSize:     50,
		FlushInterval: 5 * time.Second,
		PruneInterval: time.Hour,
	}
}

// writeTimeout bounds each batch insert and prune. Request contexts are
// long gone by the time a batch is written.
const writeTimeout = 10 * time.Second

type ingestor struct {
	logger   *zap.Logger
	repo     store.Repository
	opts     IngestorOptions
	queue    chan *model.RequestLog
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time

	// mu guards stopped and is held across sends so Stop never closes
	// the queue under a sender.
	mu      sync.RWMutex
	stopped bool
}

func NewIngestor(logger *zap.Logger, repo store.Repository, opts IngestorOptions) Ingestor {
	d := DefaultIngestorOptions()
	if opts.BufferSize <= 0 {
		opts.BufferSize = d.BufferSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = d.BatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = d.FlushInterval
	}
	if opts.PruneInterval <= 0 {
		opts.PruneInterval = d.PruneInterval
	}

	return &ingestor{
		logger: logger,
		repo:   repo,
		opts:   opts,
		queue:  make(chan *model.RequestLog, opts.BufferSize),
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

// Log queues a log without blocking. Logs arriving after Stop are dropped.
func (i *ingestor) Log(log *model.RequestLog) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.stopped {
		i.logger.Warn("analytics stopped, dropping log", zap.String("request_id", log.ID))
		return
	}

	select {
	case i.queue <- log:
	default:
		i.logger.Warn("analytics buffer full, dropping log", zap.String("request_id", log.ID))
	}
}

func (i *ingestor) Start(ctx context.Context) {
	go i.run(ctx)
}

func (i *ingestor) Stop() {
	i.stopOnce.Do(func() {
		i.mu.Lock()
		i.stopped = true
		close(i.queue)
		i.mu.Unlock()
	})
	<-i.done
}

func (i *ingestor) run(ctx context.Context) {
	defer close(i.done)

	batch := make([]model.RequestLog, 0, i.opts.BatchSize)
	flush := func() {
		i.write(batch)
		batch = batch[:0]
	}

	flushTick := time.NewTicker(i.opts.FlushInterval)
	defer flushTick.Stop()

	var pruneTick <-chan time.Time
	if i.opts.Retention > 0 {
		i.prune()
		t := time.NewTicker(i.opts.PruneInterval)
		defer t.Stop()
		pruneTick = t.C
	}

	for {
		select {
		case log, ok := <-i.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, *log)
			if len(batch) >= i.opts.BatchSize {
				flush()
			}
		case <-flushTick.C:
			flush()
		case <-pruneTick:
			i.prune()
		case <-ctx.Done():
			batch = i.drain(batch)
			flush()
			return
		}
	}
}

// drain moves whatever is already queued into batch without waiting.
func (i *ingestor) drain(batch []model.RequestLog) []model.RequestLog {
	for {
		select {
		case log, ok := <-i.queue:
			if !ok {
				return batch
			}
			batch = append(batch, *log)
		default:
			return batch
		}
	}
}

func (i *ingestor) write(batch []model.RequestLog) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := i.repo.Requests().LogBatch(ctx, batch); err != nil {
		i.logger.Error("failed to persist request logs", zap.Int("count", len(batch)), zap.Error(err))
		return
	}
	i.logger.Debug("persisted request logs", zap.Int("count", len(batch)))
}

func (i *ingestor) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	cutoff := i.now().Add(-i.opts.Retention)
	n, err := i.repo.Requests().Prune(ctx, cutoff)
	if err != nil {
		i.logger.Warn("failed to prune request logs", zap.Error(err))
		return
	}
	if n > 0 {
		i.logger.Info("pruned request logs", zap.Int64("deleted", n), zap.Time("before", cutoff))
	}
}
