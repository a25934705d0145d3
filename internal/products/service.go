package products

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Service exposes catalog browsing and admin catalog management.
type Service interface {
	List(ctx context.Context, filter ListFilter) ([]ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Create(ctx context.Context, principal auth.Principal, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, principal auth.Principal, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, principal auth.Principal, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
}

// CreateProductInput holds the payload to create a product.
type CreateProductInput struct {
	Name        string
	Price       decimal.Decimal
	Category    string
	Color       string
	Sizes       []string
	ImageURL    string
	Images      []string
	Description string
	AIHint      string
}

// UpdateProductInput holds optional mutation values; nil fields are left untouched.
type UpdateProductInput struct {
	Name        *string
	Price       *decimal.Decimal
	Category    *string
	Color       *string
	Sizes       *[]string
	ImageURL    *string
	Images      *[]string
	Description *string
	AIHint      *string
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService constructs a product service instance.
func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("product repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]ProductDTO, error) {
	if filter.MaxPrice != nil && filter.MaxPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "maxPrice must not be negative")
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	return fromModels(rows), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return FromModel(product), nil
}

func (s *service) Create(ctx context.Context, principal auth.Principal, input CreateProductInput) (*ProductDTO, error) {
	if !principal.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	product := &models.Product{
		Name:        strings.TrimSpace(input.Name),
		Price:       input.Price,
		Category:    strings.TrimSpace(input.Category),
		Color:       strings.TrimSpace(input.Color),
		Sizes:       cleanList(input.Sizes),
		ImageURL:    strings.TrimSpace(input.ImageURL),
		Images:      cleanList(input.Images),
		Description: strings.TrimSpace(input.Description),
		AIHint:      strings.TrimSpace(input.AIHint),
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", created.ID.String()), "product created")
	return FromModel(created), nil
}

func (s *service) Update(ctx context.Context, principal auth.Principal, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if !principal.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}

	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.Category != nil {
		product.Category = strings.TrimSpace(*input.Category)
	}
	if input.Color != nil {
		product.Color = strings.TrimSpace(*input.Color)
	}
	if input.Sizes != nil {
		product.Sizes = cleanList(*input.Sizes)
	}
	if input.Images != nil {
		product.Images = cleanList(*input.Images)
		if input.ImageURL == nil && !contains(product.Images, product.ImageURL) {
			product.ImageURL = ""
		}
	}
	if input.ImageURL != nil {
		product.ImageURL = strings.TrimSpace(*input.ImageURL)
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if input.AIHint != nil {
		product.AIHint = strings.TrimSpace(*input.AIHint)
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	saved, err := s.repo.Save(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", saved.ID.String()), "product updated")
	return FromModel(saved), nil
}

func (s *service) Delete(ctx context.Context, principal auth.Principal, id uuid.UUID) error {
	if !principal.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapLookupError(err)
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", id.String()), "product deleted")
	return nil
}

func (s *service) Count(ctx context.Context) (int64, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count products")
	}
	return n, nil
}

// validateProduct enforces catalog invariants and fills the primary image.
func validateProduct(p *models.Product) error {
	details := map[string]string{}
	if p.Name == "" {
		details["name"] = "name is required"
	}
	if !p.Price.IsPositive() {
		details["price"] = "price must be greater than zero"
	}
	if p.Category == "" {
		details["category"] = "category is required"
	}
	if len(p.Sizes) == 0 {
		details["sizes"] = "at least one size is required"
	}
	if len(p.Images) == 0 {
		details["images"] = "at least one image is required"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(details)
	}
	p.Price = p.Price.Round(2)
	if p.ImageURL == "" {
		p.ImageURL = p.Images[0]
	}
	return nil
}

// cleanList trims entries, drops blanks and duplicates, and keeps order.
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
}
