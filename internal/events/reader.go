package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openfleet/delivery-tracker/pkg/logger"
	"github.com/openfleet/delivery-tracker/pkg/redis"
)

type ReaderOptions struct {
	// StartID is the stream position to read after. "0" replays the
	// retained tail; empty defaults to "0".
	StartID string

	// Block bounds each XREAD wait. Zero means non-blocking polls
	// paced by PollInterval.
	Block          time.Duration
	PollInterval   time.Duration
	BatchSize      int64
	ReconnectDelay time.Duration
}

// Reader tails one delivery's event stream and delivers decoded events
// on a channel. It reconnects on errors and exposes the connection
// state so a consumer can surface staleness. Close is idempotent.
type Reader struct {
	adapter   redis.RedisAdapter
	key       string
	opts      ReaderOptions
	events    chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	connected atomic.Bool
	wg        sync.WaitGroup
}

func NewReader(adapter redis.RedisAdapter, deliveryID int64, opts ReaderOptions) *Reader {
	if opts.StartID == "" {
		opts.StartID = "0"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Millisecond
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reader{
		adapter: adapter,
		key:     StreamKey(deliveryID),
		opts:    opts,
		events:  make(chan Event, 256),
		ctx:     ctx,
		cancel:  cancel,
	}

	r.wg.Add(1)
	go r.readLoop()

	return r
}

// Events is closed after Close once the read loop drains.
func (r *Reader) Events() <-chan Event {
	return r.events
}

// Connected reports whether the last read against the stream
// succeeded.
func (r *Reader) Connected() bool {
	return r.connected.Load()
}

// Close stops the read loop and closes the events channel. Safe to
// call more than once.
func (r *Reader) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		r.wg.Wait()
		close(r.events)
	})
}

func (r *Reader) readLoop() {
	defer r.wg.Done()

	lastID := r.opts.StartID
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		messages, err := r.adapter.XRead(r.ctx, r.key, lastID, r.opts.BatchSize, r.opts.Block)
		if err != nil {
			if err == redis.NilError || r.ctx.Err() != nil {
				// Empty wait, still connected.
				if r.ctx.Err() != nil {
					return
				}
				r.connected.Store(true)
				r.sleep(r.opts.PollInterval)
				continue
			}
			r.connected.Store(false)
			logger.Warn("event stream read failed", "key", r.key, "error", err)
			r.sleep(r.opts.ReconnectDelay)
			continue
		}

		r.connected.Store(true)

		if len(messages) == 0 {
			r.sleep(r.opts.PollInterval)
			continue
		}

		for _, m := range messages {
			lastID = m.ID
			e, ok := decode(m)
			if !ok {
				continue
			}
			select {
			case r.events <- e:
			case <-r.ctx.Done():
				return
			}
		}
	}
}

func (r *Reader) sleep(d time.Duration) {
	select {
	case <-r.ctx.Done():
	case <-time.After(d):
	}
}

func decode(m redis.StreamMessage) (Event, bool) {
	raw, ok := m.Values["payload"].(string)
	if !ok {
		return Event{}, false
	}

	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		logger.Warn("malformed event skipped", "id", m.ID, "error", err)
		return Event{}, false
	}
	e.ID = m.ID
	return e, true
}
