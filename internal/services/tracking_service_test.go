package services

import (
	"context"
	"testing"
	"time"

	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDeliveryRepository struct {
	mock.Mock
}

func (m *MockDeliveryRepository) Create(ctx context.Context, d *model.Delivery) (*model.Delivery, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) GetByID(ctx context.Context, id int64) (*model.Delivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) List(ctx context.Context, f model.DeliveryFilter) ([]*model.Delivery, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Delivery), args.Get(1).(int64), args.Error(2)
}

func (m *MockDeliveryRepository) AssignDriver(ctx context.Context, id, driverID int64) error {
	args := m.Called(ctx, id, driverID)
	return args.Error(0)
}

func (m *MockDeliveryRepository) HasInTransitForDriver(ctx context.Context, driverID int64) (bool, error) {
	args := m.Called(ctx, driverID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeliveryRepository) SetStatus(ctx context.Context, id int64, status model.DeliveryStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockDeliveryRepository) MarkTrackingStarted(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockDeliveryRepository) MarkTrackingEnded(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockDeliveryRepository) ApplySnapshot(ctx context.Context, deliveryID int64, fix *model.LocationFix) error {
	args := m.Called(ctx, deliveryID, fix)
	return args.Error(0)
}

func (m *MockDeliveryRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type MockLocationRepository struct {
	mock.Mock
}

func (m *MockLocationRepository) Append(ctx context.Context, fix *model.LocationFix) (*model.LocationFix, error) {
	args := m.Called(ctx, fix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LocationFix), args.Error(1)
}

func (m *MockLocationRepository) ListRecent(ctx context.Context, deliveryID int64, limit int) ([]*model.LocationFix, error) {
	args := m.Called(ctx, deliveryID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LocationFix), args.Error(1)
}

type MockDriverRepository struct {
	mock.Mock
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id int64) (*model.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Driver), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishFix(ctx context.Context, deliveryID int64, fix *model.LocationFix) error {
	args := m.Called(ctx, deliveryID, fix)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishDelivery(ctx context.Context, delivery *model.Delivery, at time.Time) error {
	args := m.Called(ctx, delivery, at)
	return args.Error(0)
}

type MockCompletionQueue struct {
	mock.Mock
}

func (m *MockCompletionQueue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

func newTrackingService(deliveryRepo *MockDeliveryRepository, locationRepo *MockLocationRepository, driverRepo *MockDriverRepository, events *MockEventPublisher, completions *MockCompletionQueue) *TrackingService {
	// Pass true nil interfaces when the mocks are nil so the service's
	// nil checks see them as absent instead of typed-nil pointers.
	var ev EventPublisher
	if events != nil {
		ev = events
	}
	var cq CompletionQueue
	if completions != nil {
		cq = completions
	}
	return NewTrackingService(deliveryRepo, locationRepo, driverRepo, ev, cq)
}

func TestTrackingService_IngestFix(t *testing.T) {
	ctx := context.Background()

	t.Run("appends and projects in one transaction", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		locationRepo := new(MockLocationRepository)
		events := new(MockEventPublisher)

		svc := newTrackingService(deliveryRepo, locationRepo, new(MockDriverRepository), events, new(MockCompletionQueue))

		driverID := int64(9)
		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:       1,
			DriverID: &driverID,
			Status:   model.DeliveryStatusInTransit,
		}, nil)

		recorded := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		created := &model.LocationFix{
			ID:         100,
			DeliveryID: 1,
			DriverID:   &driverID,
			Latitude:   60.1699,
			Longitude:  24.9384,
			RecordedAt: recorded,
		}

		deliveryRepo.On("WithinTransaction", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil)
		locationRepo.On("Append", ctx, mock.AnythingOfType("*model.LocationFix")).Return(created, nil)
		deliveryRepo.On("ApplySnapshot", ctx, int64(1), created).Return(nil)
		events.On("PublishFix", ctx, int64(1), created).Return(nil)

		fix, err := svc.IngestFix(ctx, model.LocationFixCreateRequest{
			DeliveryID: 1,
			Latitude:   60.1699,
			Longitude:  24.9384,
			RecordedAt: recorded,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(100), fix.ID)

		deliveryRepo.AssertExpectations(t)
		locationRepo.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("inherits driver from delivery", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		locationRepo := new(MockLocationRepository)

		svc := newTrackingService(deliveryRepo, locationRepo, new(MockDriverRepository), nil, nil)

		driverID := int64(5)
		deliveryRepo.On("GetByID", ctx, int64(2)).Return(&model.Delivery{
			ID:       2,
			DriverID: &driverID,
			Status:   model.DeliveryStatusInTransit,
		}, nil)
		deliveryRepo.On("WithinTransaction", ctx, mock.Anything).Return(nil)
		locationRepo.On("Append", ctx, mock.MatchedBy(func(f *model.LocationFix) bool {
			return f.DriverID != nil && *f.DriverID == driverID
		})).Return(&model.LocationFix{ID: 1, DeliveryID: 2, DriverID: &driverID}, nil)
		deliveryRepo.On("ApplySnapshot", ctx, int64(2), mock.Anything).Return(nil)

		_, err := svc.IngestFix(ctx, model.LocationFixCreateRequest{
			DeliveryID: 2,
			Latitude:   60.0,
			Longitude:  24.9,
		})
		require.NoError(t, err)
		locationRepo.AssertExpectations(t)
	})

	t.Run("rejects fix after tracking ended", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		svc := newTrackingService(deliveryRepo, new(MockLocationRepository), new(MockDriverRepository), nil, nil)

		deliveryRepo.On("GetByID", ctx, int64(3)).Return(&model.Delivery{
			ID:     3,
			Status: model.DeliveryStatusDelivered,
		}, nil)

		_, err := svc.IngestFix(ctx, model.LocationFixCreateRequest{
			DeliveryID: 3,
			Latitude:   60.0,
			Longitude:  24.9,
		})
		assert.ErrorIs(t, err, ErrTrackingEnded)
	})

	t.Run("rejects out-of-range coordinates", func(t *testing.T) {
		svc := newTrackingService(new(MockDeliveryRepository), new(MockLocationRepository), new(MockDriverRepository), nil, nil)

		_, err := svc.IngestFix(ctx, model.LocationFixCreateRequest{
			DeliveryID: 1,
			Latitude:   95.0,
			Longitude:  24.9,
		})
		assert.Error(t, err)
	})
}

func TestTrackingService_StartTracking(t *testing.T) {
	ctx := context.Background()

	t.Run("pending delivery starts", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		events := new(MockEventPublisher)
		svc := newTrackingService(deliveryRepo, new(MockLocationRepository), new(MockDriverRepository), events, new(MockCompletionQueue))

		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusPending,
		}, nil).Once()
		deliveryRepo.On("MarkTrackingStarted", ctx, int64(1), mock.AnythingOfType("time.Time")).Return(nil)
		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusInTransit,
		}, nil)
		// the event carries the refreshed row so watchers see the
		// start timestamp and status together
		events.On("PublishDelivery", ctx, mock.MatchedBy(func(d *model.Delivery) bool {
			return d.ID == 1 && d.Status == model.DeliveryStatusInTransit
		}), mock.AnythingOfType("time.Time")).Return(nil)

		d, err := svc.StartTracking(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, model.DeliveryStatusInTransit, d.Status)
		deliveryRepo.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("second start is a no-op success", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		svc := newTrackingService(deliveryRepo, new(MockLocationRepository), new(MockDriverRepository), nil, nil)

		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusInTransit,
		}, nil)

		d, err := svc.StartTracking(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, model.DeliveryStatusInTransit, d.Status)
		deliveryRepo.AssertNotCalled(t, "MarkTrackingStarted", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("start after terminal fails", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		svc := newTrackingService(deliveryRepo, new(MockLocationRepository), new(MockDriverRepository), nil, nil)

		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusCancelled,
		}, nil)

		_, err := svc.StartTracking(ctx, 1)
		assert.ErrorIs(t, err, ErrTrackingEnded)
	})
}

func TestTrackingService_StopTracking(t *testing.T) {
	ctx := context.Background()

	t.Run("ends the trip and enqueues completion", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		events := new(MockEventPublisher)
		completions := new(MockCompletionQueue)
		svc := newTrackingService(deliveryRepo, new(MockLocationRepository), new(MockDriverRepository), events, completions)

		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusInTransit,
		}, nil).Once()
		deliveryRepo.On("MarkTrackingEnded", ctx, int64(1), mock.AnythingOfType("time.Time")).Return(nil)
		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusDelivered,
		}, nil)
		events.On("PublishDelivery", ctx, mock.MatchedBy(func(d *model.Delivery) bool {
			return d.ID == 1 && d.Status == model.DeliveryStatusDelivered
		}), mock.AnythingOfType("time.Time")).Return(nil)
		completions.On("PublishJSON", ctx, mock.MatchedBy(func(msg model.DeliveryCompletedMessage) bool {
			return msg.DeliveryID == 1 && msg.Status == model.DeliveryStatusDelivered
		}), mock.Anything).Return("1-0", nil)

		d, err := svc.StopTracking(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, model.DeliveryStatusDelivered, d.Status)

		deliveryRepo.AssertExpectations(t)
		events.AssertExpectations(t)
		completions.AssertExpectations(t)
	})

	t.Run("stop on ended delivery is a no-op success", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		svc := newTrackingService(deliveryRepo, new(MockLocationRepository), new(MockDriverRepository), nil, nil)

		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusDelivered,
		}, nil)

		d, err := svc.StopTracking(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, model.DeliveryStatusDelivered, d.Status)
		deliveryRepo.AssertNotCalled(t, "MarkTrackingEnded", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTrackingService_AssignDriver(t *testing.T) {
	ctx := context.Background()

	t.Run("busy driver is rejected", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		driverRepo := new(MockDriverRepository)
		svc := newTrackingService(deliveryRepo, new(MockLocationRepository), driverRepo, nil, nil)

		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusPending,
		}, nil)
		driverRepo.On("GetByID", ctx, int64(7)).Return(&model.Driver{ID: 7, Active: true}, nil)
		deliveryRepo.On("HasInTransitForDriver", ctx, int64(7)).Return(true, nil)

		_, err := svc.AssignDriver(ctx, 1, 7)
		assert.ErrorIs(t, err, ErrDriverBusy)
	})

	t.Run("inactive driver is rejected", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		driverRepo := new(MockDriverRepository)
		svc := newTrackingService(deliveryRepo, new(MockLocationRepository), driverRepo, nil, nil)

		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusPending,
		}, nil)
		driverRepo.On("GetByID", ctx, int64(7)).Return(&model.Driver{ID: 7, Active: false}, nil)

		_, err := svc.AssignDriver(ctx, 1, 7)
		assert.ErrorIs(t, err, ErrDriverInactive)
	})

	t.Run("free active driver is assigned", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		driverRepo := new(MockDriverRepository)
		events := new(MockEventPublisher)
		svc := newTrackingService(deliveryRepo, new(MockLocationRepository), driverRepo, events, nil)

		driverID := int64(7)
		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusPending,
		}, nil).Once()
		driverRepo.On("GetByID", ctx, int64(7)).Return(&model.Driver{ID: 7, Active: true}, nil)
		deliveryRepo.On("HasInTransitForDriver", ctx, int64(7)).Return(false, nil)
		deliveryRepo.On("AssignDriver", ctx, int64(1), int64(7)).Return(nil)
		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:       1,
			DriverID: &driverID,
			Status:   model.DeliveryStatusPending,
		}, nil)
		// watchers learn about the assignment through the stream
		events.On("PublishDelivery", ctx, mock.MatchedBy(func(d *model.Delivery) bool {
			return d.ID == 1 && d.DriverID != nil && *d.DriverID == 7
		}), mock.AnythingOfType("time.Time")).Return(nil)

		d, err := svc.AssignDriver(ctx, 1, 7)
		require.NoError(t, err)
		require.NotNil(t, d.DriverID)
		assert.Equal(t, int64(7), *d.DriverID)
		events.AssertExpectations(t)
	})
}

func TestTrackingService_ConfirmAndCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("confirm requires delivered", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		svc := newTrackingService(deliveryRepo, new(MockLocationRepository), new(MockDriverRepository), nil, nil)

		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusInTransit,
		}, nil)

		_, err := svc.Confirm(ctx, 1)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("confirm is idempotent", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		svc := newTrackingService(deliveryRepo, new(MockLocationRepository), new(MockDriverRepository), nil, nil)

		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusConfirmed,
		}, nil)

		d, err := svc.Confirm(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, model.DeliveryStatusConfirmed, d.Status)
		deliveryRepo.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cancel a completed delivery fails", func(t *testing.T) {
		deliveryRepo := new(MockDeliveryRepository)
		svc := newTrackingService(deliveryRepo, new(MockLocationRepository), new(MockDriverRepository), nil, nil)

		deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
			ID:     1,
			Status: model.DeliveryStatusDelivered,
		}, nil)

		_, err := svc.Cancel(ctx, 1)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestTrackingService_History(t *testing.T) {
	ctx := context.Background()

	deliveryRepo := new(MockDeliveryRepository)
	locationRepo := new(MockLocationRepository)
	svc := newTrackingService(deliveryRepo, locationRepo, new(MockDriverRepository), nil, nil)

	deliveryRepo.On("GetByID", ctx, int64(1)).Return(&model.Delivery{
		ID:     1,
		Status: model.DeliveryStatusInTransit,
	}, nil)
	locationRepo.On("ListRecent", ctx, int64(1), 50).Return([]*model.LocationFix{
		{ID: 2, DeliveryID: 1},
		{ID: 1, DeliveryID: 1},
	}, nil)

	fixes, err := svc.History(ctx, 1, 50)
	require.NoError(t, err)
	assert.Len(t, fixes, 2)
}
