package admin

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Stats is the admin dashboard summary.
type Stats struct {
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	TotalOrders   int             `json:"totalOrders"`
	TotalProducts int64           `json:"totalProducts"`
	TotalUsers    int             `json:"totalUsers"`

	// The *Available flags are false when that source could not be read and
	// the matching totals are placeholders.
	OrdersAvailable   bool `json:"ordersAvailable"`
	ProductsAvailable bool `json:"productsAvailable"`
	UsersAvailable    bool `json:"usersAvailable"`
}

type Service interface {
	GetStats(ctx context.Context, principal auth.Principal) (*Stats, error)
}

type orderLister interface {
	ListAll(ctx context.Context) ([]models.Order, error)
}

type productCounter interface {
	Count(ctx context.Context) (int64, error)
}

type userDirectory interface {
	ListAllUsers(ctx context.Context) ([]users.UserDTO, error)
}

type service struct {
	orders   orderLister
	products productCounter
	users    userDirectory
	logg     *logger.Logger
}

func NewService(orders orderLister, products productCounter, directory userDirectory, logg *logger.Logger) (Service, error) {
	if orders == nil {
		return nil, errors.New("order lister required")
	}
	if products == nil {
		return nil, errors.New("product counter required")
	}
	if directory == nil {
		return nil, errors.New("user directory required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &service{orders: orders, products: products, users: directory, logg: logg}, nil
}

// GetStats reads orders, products and users concurrently. Each read degrades
// on its own: a failing source is logged, its totals stay zero and its
// availability flag is false. No read cancels the others.
func (s *service) GetStats(ctx context.Context, principal auth.Principal) (*Stats, error) {
	if !principal.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	stats := &Stats{TotalRevenue: decimal.Zero}
	var g errgroup.Group
	g.Go(func() error {
		rows, err := s.orders.ListAll(ctx)
		if err != nil {
			s.degrade(ctx, "orders", err)
			return nil
		}
		for _, order := range rows {
			stats.TotalRevenue = stats.TotalRevenue.Add(order.Total)
		}
		stats.TotalOrders = len(rows)
		stats.OrdersAvailable = true
		return nil
	})
	g.Go(func() error {
		n, err := s.products.Count(ctx)
		if err != nil {
			s.degrade(ctx, "products", err)
			return nil
		}
		stats.TotalProducts = n
		stats.ProductsAvailable = true
		return nil
	})
	g.Go(func() error {
		userList, err := s.users.ListAllUsers(ctx)
		if err != nil {
			s.degrade(ctx, "users", err)
			return nil
		}
		stats.TotalUsers = len(userList)
		stats.UsersAvailable = true
		return nil
	})
	_ = g.Wait()

	return stats, nil
}

func (s *service) degrade(ctx context.Context, source string, err error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"source": source, "error": err.Error()})
	s.logg.Warn(ctx, "admin stats source unavailable, reporting zero")
}
