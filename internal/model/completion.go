package model

import "time"

// DeliveryCompletedMessage is enqueued when a delivery reaches a
// terminal state. The retention worker consumes it to schedule the
// history purge.
type DeliveryCompletedMessage struct {
	DeliveryID  int64          `json:"delivery_id"`
	Status      DeliveryStatus `json:"status"`
	CompletedAt time.Time      `json:"completed_at"`
}
