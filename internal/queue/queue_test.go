package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/openfleet/delivery-tracker/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Use unique connection name per test to avoid global adapter caching issues
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func TestQueue_PublishAndConsume(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := Config{
		Name:              "tracking:completed",
		ConsumerGroup:     "retention",
		ConsumerName:      "retention-1",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}

	q, err := New(adapter, config)
	require.NoError(t, err)

	ctx := context.Background()
	payload := map[string]int64{"delivery_id": 42}

	_, err = q.PublishJSON(ctx, payload, map[string]string{"reason": "delivered"})
	require.NoError(t, err)

	received := make(chan bool, 1)
	handler := func(ctx context.Context, msg *Message) error {
		var data map[string]int64
		err := json.Unmarshal(msg.Data, &data)
		assert.NoError(t, err)
		assert.Equal(t, int64(42), data["delivery_id"])
		assert.Equal(t, "delivered", msg.Metadata["reason"])
		received <- true
		return nil
	}

	require.NoError(t, q.Consume(handler))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	q.Stop(time.Second)
}

func TestQueue_FailedHandlerLeavesMessagePending(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := Config{
		Name:              "tracking:completed:retry",
		ConsumerGroup:     "retention",
		ConsumerName:      "retention-1",
		MaxRetries:        5,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
	}

	q, err := New(adapter, config)
	require.NoError(t, err)
	defer q.Stop(time.Second)

	ctx := context.Background()
	_, err = q.PublishJSON(ctx, map[string]int64{"delivery_id": 7}, nil)
	require.NoError(t, err)

	handled := make(chan bool, 1)
	handler := func(ctx context.Context, msg *Message) error {
		select {
		case handled <- true:
		default:
		}
		return assert.AnError
	}
	require.NoError(t, q.Consume(handler))

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("message not handled")
	}

	// handler failed, so the entry must remain in the pending list
	assert.Eventually(t, func() bool {
		stats, err := q.GetStats()
		return err == nil && stats.PendingMessages >= 1
	}, 2*time.Second, 50*time.Millisecond)
}

func TestQueue_GetStats(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := Config{
		Name:              "tracking:completed:stats",
		ConsumerGroup:     "retention",
		ConsumerName:      "retention-1",
		PollInterval:      100 * time.Millisecond,
		VisibilityTimeout: 5 * time.Second,
	}

	q, err := New(adapter, config)
	require.NoError(t, err)
	defer q.Stop(time.Second)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := q.PublishJSON(ctx, map[string]int{"delivery_id": i}, nil)
		require.NoError(t, err)
	}

	stats, err := q.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(5))
}

func TestQueue_RequiresName(t *testing.T) {
	_, adapter := setupTestRedis(t)

	_, err := New(adapter, Config{})
	assert.Error(t, err)
}

func TestQueue_Stop(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := Config{
		Name:              "tracking:completed:stop",
		ConsumerGroup:     "retention",
		ConsumerName:      "retention-1",
		PollInterval:      100 * time.Millisecond,
		VisibilityTimeout: 5 * time.Second,
	}

	q, err := New(adapter, config)
	require.NoError(t, err)

	handler := func(ctx context.Context, msg *Message) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	}
	require.NoError(t, q.Consume(handler))

	assert.NoError(t, q.Stop(2*time.Second))
}
