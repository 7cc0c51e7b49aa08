package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func TestPublisher_PublishFix(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	pub := NewPublisher(adapter, 1000)
	ctx := context.Background()

	speed := 9.5
	fix := &model.LocationFix{
		DeliveryID: 42,
		Latitude:   60.1699,
		Longitude:  24.9384,
		Speed:      &speed,
		RecordedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, pub.PublishFix(ctx, 42, fix))

	n, err := adapter.XLen(StreamKey(42))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPublisher_TrimsStream(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	pub := NewPublisher(adapter, 10)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		fix := &model.LocationFix{
			DeliveryID: 7,
			Latitude:   60.0 + float64(i)*0.0001,
			Longitude:  24.9,
			RecordedAt: time.Now().UTC(),
		}
		require.NoError(t, pub.PublishFix(ctx, 7, fix))
	}

	n, err := adapter.XLen(StreamKey(7))
	require.NoError(t, err)
	assert.Less(t, n, int64(50))
}

func TestReader_ReceivesPublishedEvents(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	pub := NewPublisher(adapter, 1000)
	ctx := context.Background()

	fix := &model.LocationFix{
		DeliveryID: 11,
		Latitude:   60.17,
		Longitude:  24.94,
		RecordedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	ended := time.Now().UTC()
	require.NoError(t, pub.PublishFix(ctx, 11, fix))
	require.NoError(t, pub.PublishDelivery(ctx, &model.Delivery{
		ID:              11,
		Status:          model.DeliveryStatusDelivered,
		TrackingEndedAt: &ended,
	}, ended))

	reader := NewReader(adapter, 11, ReaderOptions{
		PollInterval: 20 * time.Millisecond,
	})
	defer reader.Close()

	var got []Event
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case e := <-reader.Events():
			got = append(got, e)
		case <-timeout:
			t.Fatalf("only %d events received", len(got))
		}
	}

	assert.Equal(t, TypeFix, got[0].Type)
	require.NotNil(t, got[0].Fix)
	assert.Equal(t, 60.17, got[0].Fix.Latitude)

	assert.Equal(t, TypeDelivery, got[1].Type)
	require.NotNil(t, got[1].Delivery)
	assert.Equal(t, model.DeliveryStatusDelivered, got[1].Delivery.Status)
	assert.NotNil(t, got[1].Delivery.TrackingEndedAt)

	assert.True(t, reader.Connected())
}

func TestReader_CloseIsIdempotent(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	reader := NewReader(adapter, 3, ReaderOptions{
		PollInterval: 20 * time.Millisecond,
	})

	reader.Close()
	reader.Close()

	_, open := <-reader.Events()
	assert.False(t, open)
}

func TestReader_DisconnectFlag(t *testing.T) {
	mr, adapter := setupTestRedis(t)

	pub := NewPublisher(adapter, 1000)
	require.NoError(t, pub.PublishDelivery(context.Background(), &model.Delivery{
		ID:     5,
		Status: model.DeliveryStatusInTransit,
	}, time.Now().UTC()))

	reader := NewReader(adapter, 5, ReaderOptions{
		PollInterval:   20 * time.Millisecond,
		ReconnectDelay: 20 * time.Millisecond,
	})
	defer reader.Close()

	select {
	case <-reader.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	assert.True(t, reader.Connected())

	mr.Close()

	assert.Eventually(t, func() bool {
		return !reader.Connected()
	}, 2*time.Second, 20*time.Millisecond)
}
