package store

import (
	"context"
	"errors"
	"time"
)

const eventKeyPrefix = "event:"

// ProcessedEvent marks that an external event id has been handled. Its
// presence is the sole idempotency signal at the event layer; the record
// is never updated.
type ProcessedEvent struct {
	EventID     string `json:"eventId"`
	ProcessedAt string `json:"processedAt"`
	Type        string `json:"type"`
}

// MarkProcessedEvent records the first sighting of an event id. On a
// repeat delivery it returns alreadyProcessed=true with the original
// record, and the caller must short-circuit all side effects.
//
// The get-then-set is a race window under concurrent deliveries of the
// same event. The session-level dedup in the fulfillment store is the
// second line of defense; both checks are required.
func MarkProcessedEvent(ctx context.Context, kv KV, eventID, eventType string, now time.Time) (alreadyProcessed bool, record *ProcessedEvent, err error) {
	key := eventKeyPrefix + eventID

	var existing ProcessedEvent
	err = GetJSON(ctx, kv, key, &existing)
	if err == nil {
		return true, &existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, nil, err
	}

	fresh := ProcessedEvent{
		EventID:     eventID,
		ProcessedAt: now.UTC().Format(time.RFC3339),
		Type:        eventType,
	}
	if err := SetJSON(ctx, kv, key, fresh); err != nil {
		return false, nil, err
	}
	return false, &fresh, nil
}
