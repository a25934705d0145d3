package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Intent is the priced snapshot of a checkout awaiting a hosted payment. The
// order is only created from it once the gateway confirms payment.
type Intent struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"userId"`
	Items           []types.LineItem `json:"items"`
	ShippingAddress types.Address    `json:"shippingAddress"`
	Totals          orders.Totals    `json:"totals"`
	Currency        string           `json:"currency"`
	SessionID       string           `json:"sessionId,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

var errIntentNotFound = errors.New("checkout intent not found")

// completionGrace keeps an intent around after its session closes, so a
// completion webhook that Stripe delivers or retries late still finds it.
const completionGrace = 24 * time.Hour

type intentKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutIntentKey(intentID string) string
	CheckoutClaimKey(intentID string) string
}

// IntentStore keeps pending intents in redis until they complete or expire.
// ttl is how long the hosted session stays payable; the record itself is
// retained for ttl plus completionGrace.
type IntentStore struct {
	kv  intentKV
	ttl time.Duration
}

func NewIntentStore(kv intentKV, ttl time.Duration) (*IntentStore, error) {
	if kv == nil {
		return nil, errors.New("redis client required")
	}
	if ttl <= 0 {
		return nil, errors.New("intent ttl must be positive")
	}
	return &IntentStore{kv: kv, ttl: ttl}, nil
}

// SessionWindow is how long a hosted session opened for an intent may accept payment.
func (s *IntentStore) SessionWindow() time.Duration {
	return s.ttl
}

func (s *IntentStore) retention() time.Duration {
	return s.ttl + completionGrace
}

func (s *IntentStore) Save(ctx context.Context, intent *Intent) error {
	if intent == nil || intent.ID == uuid.Nil {
		return errors.New("intent id required")
	}
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}
	if err := s.kv.Set(ctx, s.kv.CheckoutIntentKey(intent.ID.String()), payload, s.retention()); err != nil {
		return fmt.Errorf("save intent: %w", err)
	}
	return nil
}

func (s *IntentStore) Load(ctx context.Context, id uuid.UUID) (*Intent, error) {
	raw, err := s.kv.Get(ctx, s.kv.CheckoutIntentKey(id.String()))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, errIntentNotFound
		}
		return nil, fmt.Errorf("load intent: %w", err)
	}
	var intent Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}
	return &intent, nil
}

func (s *IntentStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.kv.Del(ctx, s.kv.CheckoutIntentKey(id.String())); err != nil {
		return fmt.Errorf("delete intent: %w", err)
	}
	return nil
}

// Claim marks the intent as being completed. Only the first caller gets true;
// the marker outlives the intent so late webhook replays stay no-ops.
func (s *IntentStore) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := s.kv.SetNX(ctx, s.kv.CheckoutClaimKey(id.String()), "1", 2*s.retention())
	if err != nil {
		return false, fmt.Errorf("claim intent: %w", err)
	}
	return ok, nil
}

// Release drops a claim so a failed completion can be retried.
func (s *IntentStore) Release(ctx context.Context, id uuid.UUID) error {
	if err := s.kv.Del(ctx, s.kv.CheckoutClaimKey(id.String())); err != nil {
		return fmt.Errorf("release intent claim: %w", err)
	}
	return nil
}
