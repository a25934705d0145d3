package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/square"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type fakeKV struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.values[key] = asString(value)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = asString(value)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
		delete(f.ttls, key)
	}
	return nil
}

func (f *fakeKV) CheckoutIntentKey(id string) string { return "sf:checkout_intent:" + id }
func (f *fakeKV) CheckoutClaimKey(id string) string  { return "sf:checkout_claim:" + id }

func asString(value any) string {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

type stubCart struct {
	carts   map[uuid.UUID]*cart.Cart
	cleared []uuid.UUID
}

func (s *stubCart) Load(_ context.Context, owner uuid.UUID) (*cart.Cart, error) {
	if c, ok := s.carts[owner]; ok {
		return c, nil
	}
	return cart.New(owner), nil
}

func (s *stubCart) ClearCart(_ context.Context, owner uuid.UUID) error {
	s.cleared = append(s.cleared, owner)
	delete(s.carts, owner)
	return nil
}

type stubCatalog map[uuid.UUID]models.Product

func (s stubCatalog) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := map[uuid.UUID]models.Product{}
	for _, id := range ids {
		if p, ok := s[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type stubAddressBook struct {
	owned map[uuid.UUID]uuid.UUID
	saved map[uuid.UUID]types.Address
	added int
}

func newStubAddressBook() *stubAddressBook {
	return &stubAddressBook{owned: map[uuid.UUID]uuid.UUID{}, saved: map[uuid.UUID]types.Address{}}
}

func (s *stubAddressBook) add(userID uuid.UUID, addr types.Address) uuid.UUID {
	id := uuid.New()
	s.owned[id] = userID
	s.saved[id] = addr
	return id
}

func (s *stubAddressBook) AddAddress(_ context.Context, userID uuid.UUID, in address.Input) (uuid.UUID, error) {
	s.added++
	return s.add(userID, types.Address{
		Name:         in.Name,
		AddressLine1: in.AddressLine1,
		City:         in.City,
		State:        in.State,
		Zip:          in.Zip,
		Country:      in.Country,
	}), nil
}

func (s *stubAddressBook) Snapshot(_ context.Context, userID, addressID uuid.UUID) (types.Address, error) {
	if owner, ok := s.owned[addressID]; !ok || owner != userID {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return s.saved[addressID], nil
}

type stubOrders struct {
	created []orders.CreateOrderInput
	ids     []uuid.UUID
	err     error
}

func (s *stubOrders) AddOrder(_ context.Context, in orders.CreateOrderInput) (uuid.UUID, error) {
	if s.err != nil {
		return uuid.Nil, s.err
	}
	id := uuid.New()
	s.created = append(s.created, in)
	s.ids = append(s.ids, id)
	return id, nil
}

func (s *stubOrders) FindByPaymentReference(_ context.Context, ref string) (*orders.OrderDTO, error) {
	for i, in := range s.created {
		if in.PaymentReference != nil && *in.PaymentReference == ref {
			return &orders.OrderDTO{ID: s.ids[i]}, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

type stubHosted struct {
	inputs  []stripe.CheckoutSessionInput
	expired []string
	err     error
}

func (s *stubHosted) CreateCheckoutSession(_ context.Context, in stripe.CheckoutSessionInput) (*stripe.CheckoutSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.inputs = append(s.inputs, in)
	id := fmt.Sprintf("cs_test_%d", len(s.inputs))
	return &stripe.CheckoutSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id, Metadata: in.Metadata}, nil
}

func (s *stubHosted) ExpireCheckoutSession(_ context.Context, id string) error {
	s.expired = append(s.expired, id)
	return nil
}

type stubCard struct {
	params []square.PaymentCreateParams
	status string
}

func (s *stubCard) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*square.Charge, error) {
	s.params = append(s.params, params)
	charge := &square.Charge{ID: "sq_pay_1", Status: s.status, AmountMinor: params.AmountMinor, Currency: params.Currency}
	if !charge.Succeeded() {
		return charge, pkgerrors.New(pkgerrors.CodePayment, "card payment failed")
	}
	return charge, nil
}

type outcomeCounter map[string]int

func (c outcomeCounter) IncCheckout(method, outcome string) { c[method+"/"+outcome]++ }
