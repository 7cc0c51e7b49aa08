package subscriber

import (
	"context"
	"sync"

	"github.com/openfleet/delivery-tracker/internal/events"
	"github.com/openfleet/delivery-tracker/internal/geo"
	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/pkg/logger"
)

// WindowSize caps the in-memory trail a subscription keeps. Older
// fixes stay queryable through the history endpoint.
const WindowSize = 100

// ArrivingSoonKm is the straight-line distance below which the derived
// status flips to arriving_soon.
const ArrivingSoonKm = 0.5

// Status is the watcher-facing state derived from the delivery
// lifecycle and the latest fix. It is computed, never stored.
type Status string

const (
	StatusNotStarted   Status = "not_started"
	StatusTracking     Status = "tracking"
	StatusArrivingSoon Status = "arriving_soon"
	StatusArrived      Status = "arrived"
)

// Snapshot is a point-in-time view handed to the watcher.
type Snapshot struct {
	DeliveryID int64
	Status     Status
	Connected  bool
	Delivery   *model.Delivery
	CurrentFix *model.LocationFix
	// Window holds the most recent fixes, newest first, at most
	// WindowSize entries.
	Window []*model.LocationFix
}

type DeliveryFetcher interface {
	Get(ctx context.Context, id int64) (*model.Delivery, error)
	History(ctx context.Context, deliveryID int64, limit int) ([]*model.LocationFix, error)
}

type DestinationFetcher interface {
	GetDestination(ctx context.Context, restaurantID int64) (*model.Destination, error)
}

// EventSource is the live feed behind a subscription, normally an
// events.Reader.
type EventSource interface {
	Events() <-chan events.Event
	Connected() bool
	Close()
}

// Subscriber is one watcher's scoped view of a delivery: an initial
// full fetch, then live updates folded into a bounded window. It owns
// its event source and must be released with Close; Close is
// idempotent.
type Subscriber struct {
	deliveryID int64
	source     EventSource
	updates    chan Snapshot
	closeOnce  sync.Once
	done       chan struct{}
	wg         sync.WaitGroup

	mu          sync.RWMutex
	delivery    *model.Delivery
	destination *model.Destination
	window      []*model.LocationFix
	arrived     bool
}

// Subscribe loads the delivery's current state and history, then
// starts folding live events. The caller must Close the returned
// subscriber.
func Subscribe(ctx context.Context, deliveryID int64, deliveries DeliveryFetcher, destinations DestinationFetcher, source EventSource) (*Subscriber, error) {
	delivery, err := deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	window, err := deliveries.History(ctx, deliveryID, WindowSize)
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		deliveryID: deliveryID,
		source:     source,
		updates:    make(chan Snapshot, 64),
		done:       make(chan struct{}),
		delivery:   delivery,
		window:     window,
		arrived:    delivery.TrackingEndedAt != nil,
	}

	// Destination is optional; without it the status simply never
	// reaches arriving_soon.
	if destinations != nil {
		if dest, err := destinations.GetDestination(ctx, delivery.RestaurantID); err == nil {
			s.destination = dest
		}
	}

	s.wg.Add(1)
	go s.consumeLoop()

	return s, nil
}

// Updates emits a snapshot after every folded event. The channel is
// closed by Close.
func (s *Subscriber) Updates() <-chan Snapshot {
	return s.updates
}

// Connected reports whether the live feed is currently healthy. The
// last known snapshot stays valid while disconnected.
func (s *Subscriber) Connected() bool {
	return s.source.Connected()
}

// Close releases the subscription and its event source. Safe to call
// more than once.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.source.Close()
		s.wg.Wait()
		close(s.updates)
	})
}

// Snapshot returns the current folded state.
func (s *Subscriber) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Subscriber) snapshotLocked() Snapshot {
	window := make([]*model.LocationFix, len(s.window))
	copy(window, s.window)

	var current *model.LocationFix
	if len(window) > 0 {
		current = window[0]
	}

	// copy so watchers never see a mutation mid-fold
	delivery := *s.delivery

	return Snapshot{
		DeliveryID: s.deliveryID,
		Status:     s.deriveStatusLocked(current),
		Connected:  s.source.Connected(),
		Delivery:   &delivery,
		CurrentFix: current,
		Window:     window,
	}
}

// deriveStatusLocked computes the watcher status. Arrived is terminal:
// once the trip ended no later event can demote it.
func (s *Subscriber) deriveStatusLocked(current *model.LocationFix) Status {
	if s.arrived {
		return StatusArrived
	}

	if s.delivery.TrackingStartedAt == nil && current == nil {
		return StatusNotStarted
	}

	if s.destination != nil && current != nil {
		distance := geo.HaversineKm(
			geo.Point{Latitude: current.Latitude, Longitude: current.Longitude},
			geo.Point{Latitude: s.destination.Latitude, Longitude: s.destination.Longitude},
		)
		if distance < ArrivingSoonKm {
			return StatusArrivingSoon
		}
	}

	return StatusTracking
}

func (s *Subscriber) consumeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case e, ok := <-s.source.Events():
			if !ok {
				return
			}
			s.fold(e)
		}
	}
}

func (s *Subscriber) fold(e events.Event) {
	s.mu.Lock()

	switch e.Type {
	case events.TypeFix:
		if e.Fix != nil {
			s.window = append([]*model.LocationFix{e.Fix}, s.window...)
			if len(s.window) > WindowSize {
				s.window = s.window[:WindowSize]
			}
		}
	case events.TypeDelivery:
		// The event carries the full row, so driver assignment, ETA
		// and start/end timestamps all merge in one shot.
		if e.Delivery != nil {
			d := *e.Delivery
			s.delivery = &d
			if d.TrackingEndedAt != nil {
				s.arrived = true
			}
		}
	default:
		logger.Debug("unknown event type ignored", "type", e.Type, "delivery_id", s.deliveryID)
	}

	snap := s.snapshotLocked()
	s.mu.Unlock()

	select {
	case s.updates <- snap:
	case <-s.done:
	default:
		// A slow watcher drops intermediate snapshots; the next one
		// carries the full state anyway.
	}
}
