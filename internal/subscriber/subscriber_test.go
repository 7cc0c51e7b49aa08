package subscriber

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openfleet/delivery-tracker/internal/events"
	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDeliveryFetcher struct {
	mock.Mock
}

func (m *MockDeliveryFetcher) Get(ctx context.Context, id int64) (*model.Delivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Delivery), args.Error(1)
}

func (m *MockDeliveryFetcher) History(ctx context.Context, deliveryID int64, limit int) ([]*model.LocationFix, error) {
	args := m.Called(ctx, deliveryID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LocationFix), args.Error(1)
}

type MockDestinationFetcher struct {
	mock.Mock
}

func (m *MockDestinationFetcher) GetDestination(ctx context.Context, restaurantID int64) (*model.Destination, error) {
	args := m.Called(ctx, restaurantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Destination), args.Error(1)
}

// fakeSource feeds events from a plain channel and tracks Close calls.
type fakeSource struct {
	ch        chan events.Event
	connected atomic.Bool
	closeOnce sync.Once
	closed    atomic.Int32
}

func newFakeSource() *fakeSource {
	s := &fakeSource{ch: make(chan events.Event, 256)}
	s.connected.Store(true)
	return s
}

func (s *fakeSource) Events() <-chan events.Event { return s.ch }
func (s *fakeSource) Connected() bool             { return s.connected.Load() }
func (s *fakeSource) Close() {
	s.closed.Add(1)
	s.closeOnce.Do(func() { close(s.ch) })
}

func inTransitDelivery(id int64) *model.Delivery {
	started := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	return &model.Delivery{
		ID:                id,
		SupplierID:        1,
		RestaurantID:      10,
		Status:            model.DeliveryStatusInTransit,
		TrackingStartedAt: &started,
	}
}

func subscribeForTest(t *testing.T, delivery *model.Delivery, history []*model.LocationFix, destination *model.Destination, source EventSource) *Subscriber {
	t.Helper()
	ctx := context.Background()

	deliveries := new(MockDeliveryFetcher)
	deliveries.On("Get", ctx, delivery.ID).Return(delivery, nil)
	deliveries.On("History", ctx, delivery.ID, WindowSize).Return(history, nil)

	destinations := new(MockDestinationFetcher)
	if destination != nil {
		destinations.On("GetDestination", ctx, delivery.RestaurantID).Return(destination, nil)
	} else {
		destinations.On("GetDestination", ctx, delivery.RestaurantID).Return(nil, assert.AnError)
	}

	sub, err := Subscribe(ctx, delivery.ID, deliveries, destinations, source)
	require.NoError(t, err)
	return sub
}

func waitForWindow(t *testing.T, sub *Subscriber, want int) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = sub.Snapshot()
		return len(snap.Window) >= want
	}, 2*time.Second, 10*time.Millisecond)
	return snap
}

func TestSubscriber_InitialSnapshot(t *testing.T) {
	source := newFakeSource()
	history := []*model.LocationFix{
		{ID: 2, DeliveryID: 1, Latitude: 60.17, Longitude: 24.94},
		{ID: 1, DeliveryID: 1, Latitude: 60.16, Longitude: 24.93},
	}

	sub := subscribeForTest(t, inTransitDelivery(1), history, nil, source)
	defer sub.Close()

	snap := sub.Snapshot()
	assert.Equal(t, StatusTracking, snap.Status)
	assert.True(t, snap.Connected)
	require.Len(t, snap.Window, 2)
	assert.Equal(t, int64(2), snap.CurrentFix.ID)
}

func TestSubscriber_NotStartedBeforeFirstFix(t *testing.T) {
	source := newFakeSource()
	delivery := &model.Delivery{
		ID:           1,
		RestaurantID: 10,
		Status:       model.DeliveryStatusPending,
	}

	sub := subscribeForTest(t, delivery, nil, nil, source)
	defer sub.Close()

	assert.Equal(t, StatusNotStarted, sub.Snapshot().Status)
}

func TestSubscriber_ArrivingSoonNearDestination(t *testing.T) {
	source := newFakeSource()
	destination := &model.Destination{
		RestaurantID: 10,
		Latitude:     60.1699,
		Longitude:    24.9384,
	}
	// ~200m away
	history := []*model.LocationFix{
		{ID: 1, DeliveryID: 1, Latitude: 60.1717, Longitude: 24.9384},
	}

	sub := subscribeForTest(t, inTransitDelivery(1), history, destination, source)
	defer sub.Close()

	assert.Equal(t, StatusArrivingSoon, sub.Snapshot().Status)
}

func TestSubscriber_ArrivedIsTerminal(t *testing.T) {
	source := newFakeSource()
	sub := subscribeForTest(t, inTransitDelivery(1), nil, nil, source)
	defer sub.Close()

	ended := time.Now().UTC()
	done := inTransitDelivery(1)
	done.Status = model.DeliveryStatusDelivered
	done.TrackingEndedAt = &ended

	source.ch <- events.Event{
		Type:       events.TypeDelivery,
		DeliveryID: 1,
		Delivery:   done,
		At:         ended,
	}

	require.Eventually(t, func() bool {
		return sub.Snapshot().Status == StatusArrived
	}, 2*time.Second, 10*time.Millisecond)

	// a straggler fix must not demote the status
	source.ch <- events.Event{
		Type:       events.TypeFix,
		DeliveryID: 1,
		Fix:        &model.LocationFix{ID: 99, DeliveryID: 1, Latitude: 60.0, Longitude: 24.9},
	}

	waitForWindow(t, sub, 1)
	assert.Equal(t, StatusArrived, sub.Snapshot().Status)
}

func TestSubscriber_ArrivedKeysOnTrackingEnd(t *testing.T) {
	source := newFakeSource()

	// subscribing after the trip ended starts out arrived
	ended := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	delivery := inTransitDelivery(1)
	delivery.Status = model.DeliveryStatusDelivered
	delivery.TrackingEndedAt = &ended

	sub := subscribeForTest(t, delivery, nil, nil, source)
	defer sub.Close()

	assert.Equal(t, StatusArrived, sub.Snapshot().Status)
}

func TestSubscriber_DeliveryEventMergesUpdates(t *testing.T) {
	source := newFakeSource()
	sub := subscribeForTest(t, inTransitDelivery(1), nil, nil, source)
	defer sub.Close()

	driverID := int64(7)
	eta := time.Date(2025, 6, 1, 12, 45, 0, 0, time.UTC)
	routeKm := 14.2
	updated := inTransitDelivery(1)
	updated.DriverID = &driverID
	updated.EstimatedArrivalTime = &eta
	updated.RouteDistanceKm = &routeKm

	source.ch <- events.Event{
		Type:       events.TypeDelivery,
		DeliveryID: 1,
		Delivery:   updated,
		At:         time.Now().UTC(),
	}

	require.Eventually(t, func() bool {
		snap := sub.Snapshot()
		return snap.Delivery.DriverID != nil
	}, 2*time.Second, 10*time.Millisecond)

	snap := sub.Snapshot()
	assert.Equal(t, int64(7), *snap.Delivery.DriverID)
	require.NotNil(t, snap.Delivery.EstimatedArrivalTime)
	assert.True(t, eta.Equal(*snap.Delivery.EstimatedArrivalTime))
	require.NotNil(t, snap.Delivery.RouteDistanceKm)
	assert.Equal(t, 14.2, *snap.Delivery.RouteDistanceKm)
	require.NotNil(t, snap.Delivery.TrackingStartedAt)

	// still en route: a richer row does not end the trip
	assert.Equal(t, StatusTracking, snap.Status)
}

func TestSubscriber_WindowNeverExceedsCap(t *testing.T) {
	source := newFakeSource()
	sub := subscribeForTest(t, inTransitDelivery(1), nil, nil, source)
	defer sub.Close()

	for i := 1; i <= 150; i++ {
		source.ch <- events.Event{
			Type:       events.TypeFix,
			DeliveryID: 1,
			Fix: &model.LocationFix{
				ID:         int64(i),
				DeliveryID: 1,
				Latitude:   60.0 + float64(i)*0.0001,
				Longitude:  24.9,
			},
		}
	}

	require.Eventually(t, func() bool {
		snap := sub.Snapshot()
		return len(snap.Window) == WindowSize && snap.CurrentFix.ID == 150
	}, 2*time.Second, 10*time.Millisecond)

	snap := sub.Snapshot()
	assert.Len(t, snap.Window, WindowSize)
	// newest first, oldest entries evicted
	assert.Equal(t, int64(150), snap.Window[0].ID)
	assert.Equal(t, int64(51), snap.Window[WindowSize-1].ID)
}

func TestSubscriber_DisconnectFlagFollowsSource(t *testing.T) {
	source := newFakeSource()
	sub := subscribeForTest(t, inTransitDelivery(1), nil, nil, source)
	defer sub.Close()

	assert.True(t, sub.Connected())

	source.connected.Store(false)
	assert.False(t, sub.Connected())
	// the folded state stays readable while disconnected
	assert.Equal(t, StatusTracking, sub.Snapshot().Status)
}

func TestSubscriber_CloseIsIdempotent(t *testing.T) {
	source := newFakeSource()
	sub := subscribeForTest(t, inTransitDelivery(1), nil, nil, source)

	sub.Close()
	sub.Close()

	_, open := <-sub.Updates()
	assert.False(t, open)
	assert.GreaterOrEqual(t, source.closed.Load(), int32(1))
}

func TestSubscriber_UpdatesEmitOnEvents(t *testing.T) {
	source := newFakeSource()
	sub := subscribeForTest(t, inTransitDelivery(1), nil, nil, source)
	defer sub.Close()

	source.ch <- events.Event{
		Type:       events.TypeFix,
		DeliveryID: 1,
		Fix:        &model.LocationFix{ID: 1, DeliveryID: 1, Latitude: 60.1, Longitude: 24.9},
	}

	select {
	case snap := <-sub.Updates():
		require.NotNil(t, snap.CurrentFix)
		assert.Equal(t, int64(1), snap.CurrentFix.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no update emitted")
	}
}
