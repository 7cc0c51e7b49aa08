package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/openfleet/delivery-tracker/pkg/redis"
)

// Publisher appends change notifications to per-delivery streams.
// Publishing is best-effort from the caller's point of view: the fix
// is already durable in postgres before an event goes out.
type Publisher struct {
	adapter redis.RedisAdapter
	maxLen  int64
}

func NewPublisher(adapter redis.RedisAdapter, maxLen int64) *Publisher {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &Publisher{
		adapter: adapter,
		maxLen:  maxLen,
	}
}

func (p *Publisher) PublishFix(ctx context.Context, deliveryID int64, fix *model.LocationFix) error {
	return p.publish(deliveryID, Event{
		Type:       TypeFix,
		DeliveryID: deliveryID,
		Fix:        fix,
		At:         fix.RecordedAt,
	})
}

func (p *Publisher) PublishDelivery(ctx context.Context, d *model.Delivery, at time.Time) error {
	return p.publish(d.ID, Event{
		Type:       TypeDelivery,
		DeliveryID: d.ID,
		Delivery:   d,
		At:         at,
	})
}

func (p *Publisher) publish(deliveryID int64, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := StreamKey(deliveryID)
	if _, err := p.adapter.XAdd(key, map[string]interface{}{
		"type":    e.Type,
		"payload": string(payload),
	}); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	_ = p.adapter.XTrimApprox(key, p.maxLen)
	return nil
}
