package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openfleet/delivery-tracker/internal/geo"
	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/pkg/logger"
)

var (
	// ErrPermissionDenied is returned by Start when the location
	// source refuses access. The session never enters the running
	// state in that case.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrNotificationRequired is returned when the background profile
	// is requested without a visible notification handle attached.
	ErrNotificationRequired = errors.New("background sampling requires a notification handle")
)

// Profile sets the sampling cadence. A fix is forwarded when the
// interval elapsed and the device moved at least the minimum
// displacement since the last forwarded fix.
type Profile struct {
	Name                  string
	Interval              time.Duration
	MinDisplacementMeters float64

	// RequiresNotification marks profiles that may only run while the
	// embedding app shows a visible notification to the driver.
	RequiresNotification bool
}

var (
	// ProfileForeground samples aggressively while the driver app is
	// visible.
	ProfileForeground = Profile{
		Name:                  "foreground",
		Interval:              5 * time.Second,
		MinDisplacementMeters: 10,
	}

	// ProfileBackground relaxes the cadence when the app is
	// backgrounded to save battery. It only runs behind a visible
	// notification, so the session must carry a handle to one.
	ProfileBackground = Profile{
		Name:                  "background",
		Interval:              10 * time.Second,
		MinDisplacementMeters: 20,
		RequiresNotification:  true,
	}
)

// Position is one raw reading from the device's location source.
type Position struct {
	Latitude     float64
	Longitude    float64
	Accuracy     *float64
	Altitude     *float64
	Speed        *float64
	Heading      *float64
	BatteryLevel *float64
	At           time.Time
}

// LocationSource yields the device's current position. Current may
// return ErrPermissionDenied.
type LocationSource interface {
	Current(ctx context.Context) (*Position, error)
}

// Sink delivers a fix upstream. Sends are fire-and-forget from the
// session's point of view; a failed send is dropped, never retried.
type Sink interface {
	Send(ctx context.Context, fix model.LocationFixCreateRequest) error
}

// TrackingClient drives the delivery lifecycle alongside sampling:
// Start flips the delivery to in_transit, Stop marks it delivered.
// Normally backed by the tracking API.
type TrackingClient interface {
	StartTracking(ctx context.Context, deliveryID int64) error
	StopTracking(ctx context.Context, deliveryID int64) error
}

const (
	defaultBufferSize  = 32
	defaultSendTimeout = 3 * time.Second
)

// Session samples positions for one delivery and pushes them upstream.
// Each session owns its own state; nothing is shared between
// deliveries. Start and Stop are idempotent: a second Start while
// running is a no-op success, a second Stop does nothing.
type Session struct {
	deliveryID int64
	driverID   *int64
	source     LocationSource
	sink       Sink
	tracking   TrackingClient

	mu           sync.Mutex
	profile      Profile
	notification any
	running      bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	buf     chan model.LocationFixCreateRequest
	dropped atomic.Int64

	lastMu      sync.Mutex
	lastForward *Position
}

func NewSession(deliveryID int64, driverID *int64, source LocationSource, sink Sink, tracking TrackingClient, profile Profile) *Session {
	if profile.Interval <= 0 {
		profile = ProfileForeground
	}
	return &Session{
		deliveryID: deliveryID,
		driverID:   driverID,
		source:     source,
		sink:       sink,
		tracking:   tracking,
		profile:    profile,
		buf:        make(chan model.LocationFixCreateRequest, defaultBufferSize),
	}
}

// SetNotification attaches the embedding app's visible-notification
// handle. Required before the background profile can run; the session
// never inspects the handle.
func (s *Session) SetNotification(handle any) {
	s.mu.Lock()
	s.notification = handle
	s.mu.Unlock()
}

// Start begins sampling. It probes the source once so a permission
// problem surfaces immediately, then moves the delivery to in_transit
// before the loops spin up. Calling Start on a running session returns
// nil without side effects.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if s.profile.RequiresNotification && s.notification == nil {
		return ErrNotificationRequired
	}

	if _, err := s.source.Current(ctx); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return ErrPermissionDenied
		}
		return err
	}

	if s.tracking != nil {
		if err := s.tracking.StartTracking(ctx, s.deliveryID); err != nil {
			return fmt.Errorf("start tracking: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(2)
	go s.sampleLoop(runCtx)
	go s.forwardLoop(runCtx)

	logger.Info("sampling started", "delivery_id", s.deliveryID, "profile", s.profile.Name)
	return nil
}

// Stop halts sampling, waits for the loops to exit, then marks the
// delivery delivered. The status flip comes last so no fix is sampled
// after the trip ended. Stopping a session that is not running is a
// no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	if s.tracking != nil {
		ctx, cancelStop := context.WithTimeout(context.Background(), defaultSendTimeout)
		if err := s.tracking.StopTracking(ctx, s.deliveryID); err != nil {
			logger.Warn("stop tracking failed", "delivery_id", s.deliveryID, "error", err)
		}
		cancelStop()
	}

	logger.Info("sampling stopped", "delivery_id", s.deliveryID, "dropped", s.dropped.Load())
}

// SetProfile switches the cadence, typically between foreground and
// background as the app changes visibility. Takes effect on the next
// tick.
func (s *Session) SetProfile(p Profile) error {
	if p.Interval <= 0 {
		return errors.New("profile interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.RequiresNotification && s.notification == nil {
		return ErrNotificationRequired
	}
	s.profile = p
	return nil
}

func (s *Session) Profile() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Dropped counts fixes discarded because the buffer was full or the
// send failed.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Session) sampleLoop(ctx context.Context) {
	defer s.wg.Done()

	interval := s.Profile().Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce(ctx)

			if next := s.Profile().Interval; next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (s *Session) sampleOnce(ctx context.Context) {
	pos, err := s.source.Current(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("position read failed", "delivery_id", s.deliveryID, "error", err)
		}
		return
	}

	profile := s.Profile()

	s.lastMu.Lock()
	last := s.lastForward
	if last != nil {
		movedKm := geo.HaversineKm(
			geo.Point{Latitude: last.Latitude, Longitude: last.Longitude},
			geo.Point{Latitude: pos.Latitude, Longitude: pos.Longitude},
		)
		if movedKm*1000 < profile.MinDisplacementMeters {
			s.lastMu.Unlock()
			return
		}
	}
	s.lastForward = pos
	s.lastMu.Unlock()

	recordedAt := pos.At
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	fix := model.LocationFixCreateRequest{
		DeliveryID:   s.deliveryID,
		DriverID:     s.driverID,
		Latitude:     pos.Latitude,
		Longitude:    pos.Longitude,
		Accuracy:     pos.Accuracy,
		Altitude:     pos.Altitude,
		Speed:        pos.Speed,
		Heading:      pos.Heading,
		BatteryLevel: pos.BatteryLevel,
		RecordedAt:   recordedAt,
	}

	// Lossy push: a full buffer drops the fix rather than stalling
	// the sample loop.
	select {
	case s.buf <- fix:
	default:
		s.dropped.Add(1)
	}
}

func (s *Session) forwardLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case fix := <-s.buf:
			sendCtx, cancel := context.WithTimeout(ctx, defaultSendTimeout)
			if err := s.sink.Send(sendCtx, fix); err != nil {
				s.dropped.Add(1)
				if ctx.Err() == nil {
					logger.Debug("fix dropped", "delivery_id", s.deliveryID, "error", err)
				}
			}
			cancel()
		}
	}
}
