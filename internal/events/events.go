package events

import (
	"fmt"
	"time"

	"github.com/openfleet/delivery-tracker/internal/model"
)

// Event types carried on a delivery's stream.
const (
	TypeFix      = "fix"
	TypeDelivery = "delivery"
)

// Event is one change notification on a delivery. A fix event carries
// the projected location; a delivery event carries the full delivery
// row after a lifecycle, assignment or route-estimate update, so a
// watcher can merge whichever fields changed.
type Event struct {
	ID         string             `json:"-"`
	Type       string             `json:"type"`
	DeliveryID int64              `json:"delivery_id"`
	Fix        *model.LocationFix `json:"fix,omitempty"`
	Delivery   *model.Delivery    `json:"delivery,omitempty"`
	At         time.Time          `json:"at"`
}

// StreamKey returns the per-delivery stream name. Streams are trimmed
// to a bounded length by the publisher; the durable trail lives in
// postgres, the stream only fans out changes.
func StreamKey(deliveryID int64) string {
	return fmt.Sprintf("tracking:delivery:%d:events", deliveryID)
}
