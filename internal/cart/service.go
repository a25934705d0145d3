package cart

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	opAdd            = "add"
	opUpdateQuantity = "update_quantity"
	opUpdateSize     = "update_size"
	opRemove         = "remove"
	opClear          = "clear"
)

// Service exposes the cart operations for one owner at a time.
type Service interface {
	AddToCart(ctx context.Context, ownerID, productID uuid.UUID, selectedSize string) (*View, error)
	UpdateQuantity(ctx context.Context, ownerID uuid.UUID, cartItemID string, quantity int) (*View, error)
	UpdateSize(ctx context.Context, ownerID uuid.UUID, cartItemID, newSize string) (*View, error)
	RemoveItem(ctx context.Context, ownerID uuid.UUID, cartItemID string) (*View, error)
	ClearCart(ctx context.Context, ownerID uuid.UUID) error
	GetCart(ctx context.Context, ownerID uuid.UUID) (*View, error)
	// Load returns the stored cart for checkout.
	Load(ctx context.Context, ownerID uuid.UUID) (*Cart, error)
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type mutationRecorder interface {
	IncCartMutation(op string)
}

type ServiceParams struct {
	Store    Store
	Products productLoader
	Metrics  mutationRecorder
	Logger   *logger.Logger
	// NewID generates cart item ids; defaults to random UUIDs.
	NewID func() string
}

type service struct {
	store    Store
	products productLoader
	metrics  mutationRecorder
	logg     *logger.Logger
	newID    func() string
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, errors.New("cart store required")
	}
	if params.Products == nil {
		return nil, errors.New("product loader required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	newID := params.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	var recorder mutationRecorder = noopRecorder{}
	if params.Metrics != nil {
		recorder = params.Metrics
	}
	return &service{
		store:    params.Store,
		products: params.Products,
		metrics:  recorder,
		logg:     params.Logger,
		newID:    newID,
	}, nil
}

func (s *service) AddToCart(ctx context.Context, ownerID, productID uuid.UUID, selectedSize string) (*View, error) {
	size := strings.TrimSpace(selectedSize)
	if size == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "select a size").
			WithDetails(map[string]string{"selectedSize": "is required"})
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	if !product.OffersSize(size) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "size %q is not offered for %s", size, product.Name).
			WithDetails(map[string]string{"selectedSize": "is not offered"})
	}

	return s.mutate(ctx, ownerID, opAdd, func(c *Cart) error {
		c.Add(product, size, s.newID)
		return nil
	})
}

func (s *service) UpdateQuantity(ctx context.Context, ownerID uuid.UUID, cartItemID string, quantity int) (*View, error) {
	return s.mutate(ctx, ownerID, opUpdateQuantity, func(c *Cart) error {
		if !c.UpdateQuantity(cartItemID, quantity) {
			return errItemNotFound()
		}
		return nil
	})
}

func (s *service) UpdateSize(ctx context.Context, ownerID uuid.UUID, cartItemID, newSize string) (*View, error) {
	size := strings.TrimSpace(newSize)
	if size == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "select a size").
			WithDetails(map[string]string{"selectedSize": "is required"})
	}
	return s.mutate(ctx, ownerID, opUpdateSize, func(c *Cart) error {
		item, ok := c.Find(cartItemID)
		if !ok {
			return errItemNotFound()
		}
		offered, err := s.sizesFor(ctx, item.ProductID, item.Sizes)
		if err != nil {
			return err
		}
		if !contains(offered, size) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "size %q is not offered for %s", size, item.Name).
				WithDetails(map[string]string{"selectedSize": "is not offered"})
		}
		c.UpdateSize(cartItemID, size)
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, ownerID uuid.UUID, cartItemID string) (*View, error) {
	return s.mutate(ctx, ownerID, opRemove, func(c *Cart) error {
		c.Remove(cartItemID)
		return nil
	})
}

func (s *service) ClearCart(ctx context.Context, ownerID uuid.UUID) error {
	if err := s.store.Delete(ctx, ownerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: clear cart")
	}
	s.metrics.IncCartMutation(opClear)
	return nil
}

func (s *service) GetCart(ctx context.Context, ownerID uuid.UUID) (*View, error) {
	c, err := s.Load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return viewOf(c), nil
}

func (s *service) Load(ctx context.Context, ownerID uuid.UUID) (*Cart, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner required")
	}
	c, err := s.store.Load(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: load cart")
	}
	return c, nil
}

// mutate loads, applies fn, and saves. Nothing is written when fn fails.
func (s *service) mutate(ctx context.Context, ownerID uuid.UUID, op string, fn func(*Cart) error) (*View, error) {
	c, err := s.Load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis: save cart")
	}
	s.metrics.IncCartMutation(op)
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{"cart_op": op, "cart_count": c.Count()}), "cart updated")
	return viewOf(c), nil
}

// sizesFor prefers the live catalog and falls back to the line snapshot when
// the product has since been deleted.
func (s *service) sizesFor(ctx context.Context, productID string, snapshot []string) ([]string, error) {
	id, err := uuid.Parse(productID)
	if err != nil {
		return snapshot, nil
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return snapshot, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	return product.Sizes, nil
}

type noopRecorder struct{}

func (noopRecorder) IncCartMutation(string) {}

func errItemNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
