package retention

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/internal/queue"
	"github.com/openfleet/delivery-tracker/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	// Use unique connection name per test to avoid global adapter caching issues
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

type MockPurgeLister struct {
	mock.Mock
}

func (m *MockPurgeLister) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

// countingPurger records every purge call; plain struct instead of a
// testify mock because the pool calls it from multiple goroutines.
type countingPurger struct {
	mu    sync.Mutex
	calls map[int64]int
}

func newCountingPurger() *countingPurger {
	return &countingPurger{calls: make(map[int64]int)}
}

func (p *countingPurger) DeleteOlderThan(ctx context.Context, deliveryID int64, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[deliveryID]++
	return 3, nil
}

func (p *countingPurger) count(deliveryID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[deliveryID]
}

func testConfig() Config {
	return Config{
		RetentionDays: 30,
		SweepInterval: time.Hour, // ticker stays quiet during tests
		BatchLimit:    10,
		Workers:       2,
		ProcessedTTL:  time.Minute,
	}
}

func TestWorker_SweepPurgesEligibleDeliveries(t *testing.T) {
	_, adapter := setupTestRedis(t)

	lister := new(MockPurgeLister)
	purger := newCountingPurger()

	lister.On("ListPurgeable", mock.Anything, mock.Anything, 10).Return([]int64{1, 2}, nil)

	w := New(lister, purger, nil, adapter, testConfig())
	require.NoError(t, w.Start())
	defer w.Stop(time.Second)

	require.NoError(t, w.Sweep(context.Background()))

	require.Eventually(t, func() bool {
		return purger.count(1) == 1 && purger.count(2) == 1
	}, 2*time.Second, 10*time.Millisecond)

	lister.AssertExpectations(t)
}

func TestWorker_SweepCutoffIsThirtyDays(t *testing.T) {
	_, adapter := setupTestRedis(t)

	w := New(new(MockPurgeLister), newCountingPurger(), nil, adapter, testConfig())

	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	cutoff := w.Cutoff(now)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), cutoff)
}

func TestWorker_CompletionNoticeTriggersPurgeOnce(t *testing.T) {
	_, adapter := setupTestRedis(t)

	completions, err := queue.New(adapter, queue.Config{
		Name:              "tracking:completed",
		ConsumerGroup:     "retention",
		ConsumerName:      "retention-1",
		PollInterval:      50 * time.Millisecond,
		VisibilityTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	lister := new(MockPurgeLister)
	purger := newCountingPurger()

	w := New(lister, purger, completions, adapter, testConfig())
	require.NoError(t, w.Start())
	defer w.Stop(time.Second)

	notice := model.DeliveryCompletedMessage{
		DeliveryID:  42,
		Status:      model.DeliveryStatusDelivered,
		CompletedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	_, err = completions.PublishJSON(context.Background(), notice, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return purger.count(42) == 1
	}, 3*time.Second, 10*time.Millisecond)

	// a duplicate notice hits the processed marker and purges nothing
	_, err = completions.PublishJSON(context.Background(), notice, nil)
	require.NoError(t, err)

	assert.Never(t, func() bool {
		return purger.count(42) > 1
	}, 500*time.Millisecond, 25*time.Millisecond)
}

func TestWorker_UnparseableNoticeIsDropped(t *testing.T) {
	_, adapter := setupTestRedis(t)

	completions, err := queue.New(adapter, queue.Config{
		Name:              "tracking:completed",
		ConsumerGroup:     "retention",
		ConsumerName:      "retention-1",
		PollInterval:      50 * time.Millisecond,
		VisibilityTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	purger := newCountingPurger()
	w := New(new(MockPurgeLister), purger, completions, adapter, testConfig())
	require.NoError(t, w.Start())
	defer w.Stop(time.Second)

	_, err = completions.Publish(context.Background(), []byte("not json"), nil)
	require.NoError(t, err)

	// the garbage entry is acked away instead of looping forever
	assert.Eventually(t, func() bool {
		stats, err := completions.GetStats()
		return err == nil && stats.PendingMessages == 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWorker_SweepListFailureSurfaces(t *testing.T) {
	_, adapter := setupTestRedis(t)

	lister := new(MockPurgeLister)
	lister.On("ListPurgeable", mock.Anything, mock.Anything, 10).Return(nil, assert.AnError)

	w := New(lister, newCountingPurger(), nil, adapter, testConfig())
	require.NoError(t, w.Start())
	defer w.Stop(time.Second)

	assert.Error(t, w.Sweep(context.Background()))
}
