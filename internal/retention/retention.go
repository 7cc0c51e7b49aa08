package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/internal/queue"
	"github.com/openfleet/delivery-tracker/pkg/logger"
	"github.com/openfleet/delivery-tracker/pkg/prom"
	"github.com/openfleet/delivery-tracker/pkg/redis"
	"github.com/openfleet/delivery-tracker/pkg/worker"
)

// DeliveryPurgeLister finds terminal deliveries that still carry fixes
// older than the retention boundary.
type DeliveryPurgeLister interface {
	ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
}

// FixPurger bulk-deletes a delivery's fixes before the cutoff.
type FixPurger interface {
	DeleteOlderThan(ctx context.Context, deliveryID int64, cutoff time.Time) (int64, error)
}

// CompletionSource is the queue carrying delivery-completed notices,
// normally a queue.Queue.
type CompletionSource interface {
	Consume(handler queue.Handler) error
	Stop(timeout time.Duration) error
}

type Config struct {
	// RetentionDays is how long a terminal delivery's fixes are kept.
	RetentionDays int
	// SweepInterval is the cadence of the periodic catch-up sweep that
	// picks up deliveries whose completion notice was lost.
	SweepInterval time.Duration
	// BatchLimit caps how many deliveries one sweep pass enqueues.
	BatchLimit int
	// Workers sizes the purge pool.
	Workers int
	// ProcessedTTL is how long a completion notice's processed marker
	// lives; redeliveries inside the window are acked without work.
	ProcessedTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		RetentionDays: 30,
		SweepInterval: time.Hour,
		BatchLimit:    100,
		Workers:       4,
		ProcessedTTL:  24 * time.Hour,
	}
}

const processedKeyPrefix = "retention:processed:"

type purgeJob struct {
	deliveryID int64
	cutoff     time.Time
}

// Worker purges location history past the retention boundary. Two
// triggers feed the same purge pool: completion notices from the queue
// and a periodic sweep that catches deliveries whose notice was lost.
// Only terminal deliveries are ever purged; active trips keep their
// full trail.
type Worker struct {
	deliveries  DeliveryPurgeLister
	fixes       FixPurger
	completions CompletionSource
	adapter     redis.RedisAdapter
	config      Config

	pool   *worker.WorkerManager
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(deliveries DeliveryPurgeLister, fixes FixPurger, completions CompletionSource, adapter redis.RedisAdapter, config Config) *Worker {
	defaults := DefaultConfig()
	if config.RetentionDays <= 0 {
		config.RetentionDays = defaults.RetentionDays
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaults.SweepInterval
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = defaults.BatchLimit
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.ProcessedTTL <= 0 {
		config.ProcessedTTL = defaults.ProcessedTTL
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		deliveries:  deliveries,
		fixes:       fixes,
		completions: completions,
		adapter:     adapter,
		config:      config,
		ctx:         ctx,
		cancel:      cancel,
	}

	w.pool = worker.NewWorkerManager(config.BatchLimit*2, config.Workers, nil)
	w.pool.SetWorker(w.handlePurgeJob)

	return w
}

// Start launches the purge pool, the completion consumer and the sweep
// ticker. It returns once everything is running.
func (w *Worker) Start() error {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		_ = w.pool.Start()
	}()

	if w.completions != nil {
		if err := w.completions.Consume(w.handleCompletion); err != nil {
			return fmt.Errorf("failed to start completion consumer: %w", err)
		}
	}

	w.wg.Add(1)
	go w.sweepLoop()

	logger.Info("retention worker started",
		"retention_days", w.config.RetentionDays,
		"sweep_interval", w.config.SweepInterval,
		"workers", w.config.Workers)
	return nil
}

// Stop drains the consumer and the pool. In-flight purges finish.
func (w *Worker) Stop(timeout time.Duration) {
	w.cancel()
	if w.completions != nil {
		if err := w.completions.Stop(timeout); err != nil {
			logger.Warn("completion consumer did not stop cleanly", "error", err)
		}
	}
	w.pool.Exit()
	w.wg.Wait()
	logger.Info("retention worker stopped")
}

// Cutoff is the retention boundary as of now: fixes recorded before it
// are eligible for purging once their delivery is terminal.
func (w *Worker) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(w.config.RetentionDays) * 24 * time.Hour)
}

// handleCompletion reacts to one delivery-completed notice. The notice
// only marks the delivery as a purge candidate; the actual deletion
// respects the same age cutoff as the sweep.
func (w *Worker) handleCompletion(ctx context.Context, msg *queue.Message) error {
	var notice model.DeliveryCompletedMessage
	if err := json.Unmarshal(msg.Data, &notice); err != nil {
		logger.Error("unparseable completion notice dropped", "message_id", msg.ID, "error", err)
		return msg.Ack()
	}

	// Consumer-group redelivery makes duplicates normal; the processed
	// marker keeps the purge single-shot.
	processedKey := fmt.Sprintf("%s%d:%d", processedKeyPrefix, notice.DeliveryID, notice.CompletedAt.Unix())
	acquired, err := w.adapter.SetNX(processedKey, []byte("1"), w.config.ProcessedTTL)
	if err != nil {
		logger.Warn("processed marker check failed, continuing", "delivery_id", notice.DeliveryID, "error", err)
	} else if !acquired {
		logger.Debug("completion notice already handled", "delivery_id", notice.DeliveryID)
		return msg.Ack()
	}

	w.pool.Enqueue(purgeJob{
		deliveryID: notice.DeliveryID,
		cutoff:     w.Cutoff(time.Now().UTC()),
	})

	return msg.Ack()
}

func (w *Worker) sweepLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(w.ctx); err != nil && w.ctx.Err() == nil {
				logger.Error("retention sweep failed", "error", err)
			}
		}
	}
}

// Sweep enqueues a purge job for every terminal delivery still holding
// fixes past the boundary. One pass handles at most BatchLimit
// deliveries; the next tick picks up the rest.
func (w *Worker) Sweep(ctx context.Context) error {
	start := time.Now()
	cutoff := w.Cutoff(start.UTC())

	ids, err := w.deliveries.ListPurgeable(ctx, cutoff, w.config.BatchLimit)
	if err != nil {
		return fmt.Errorf("failed to list purgeable deliveries: %w", err)
	}

	for _, id := range ids {
		w.pool.Enqueue(purgeJob{deliveryID: id, cutoff: cutoff})
	}

	prom.ObserveRetentionSweepDuration(time.Since(start).Seconds())
	if len(ids) > 0 {
		logger.Info("retention sweep enqueued purges", "deliveries", len(ids), "cutoff", cutoff)
	}
	return nil
}

func (w *Worker) handlePurgeJob(workerIndex int, job interface{}) {
	p, ok := job.(purgeJob)
	if !ok {
		logger.Error("unexpected job type on purge pool", "worker", workerIndex)
		return
	}

	purged, err := w.fixes.DeleteOlderThan(w.ctx, p.deliveryID, p.cutoff)
	if err != nil {
		prom.RecordFixesPurged("error", 0)
		logger.Error("purge failed", "delivery_id", p.deliveryID, "error", err)
		return
	}

	prom.RecordFixesPurged("ok", float64(purged))
	if purged > 0 {
		logger.Info("purged location history",
			"delivery_id", p.deliveryID,
			"fixes", purged,
			"cutoff", p.cutoff,
			"worker", workerIndex)
	}
}
