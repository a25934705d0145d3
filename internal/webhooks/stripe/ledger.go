package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	ledgerScope = "stripe_event"
	eventPrefix = "evt_"
)

var errEventID = errors.New("stripe event id must start with " + eventPrefix)

// EventLedger records which Stripe events the storefront has already acted on,
// so a redelivered checkout.session.* event cannot complete an intent twice.
// Entries hold the time the event was first seen and must outlive Stripe's
// retry schedule.
type EventLedger struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

func NewEventLedger(store redis.IdempotencyStore, ttl time.Duration) (*EventLedger, error) {
	if store == nil {
		return nil, errors.New("redis store required")
	}
	if ttl <= 0 {
		return nil, errors.New("event ledger ttl must be positive")
	}
	return &EventLedger{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMark records the event and reports whether it had been recorded before.
func (l *EventLedger) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	key, err := l.key(eventID)
	if err != nil {
		return false, err
	}
	fresh, err := l.store.SetNX(ctx, key, l.now().UTC().Format(time.RFC3339), l.ttl)
	if err != nil {
		return false, fmt.Errorf("record stripe event %s: %w", eventID, err)
	}
	return !fresh, nil
}

// Delete forgets an event whose handling failed, letting Stripe's retry through.
func (l *EventLedger) Delete(ctx context.Context, eventID string) error {
	key, err := l.key(eventID)
	if err != nil {
		return err
	}
	if err := l.store.Del(ctx, key); err != nil {
		return fmt.Errorf("forget stripe event %s: %w", eventID, err)
	}
	return nil
}

func (l *EventLedger) key(eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if !strings.HasPrefix(eventID, eventPrefix) || len(eventID) == len(eventPrefix) {
		return "", errEventID
	}
	return l.store.IdempotencyKey(ledgerScope, eventID), nil
}
