package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/products"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const maxSearchQueryLen = 100

// ProductList serves the catalog browse page: category, q, maxPrice, colors and sort.
func ProductList(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxPrice, err := validators.ParseQueryDecimal(r, "maxPrice")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sort, ok := products.ParseSortOrder(r.URL.Query().Get("sort"))
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported sort").
				WithDetails(map[string]string{"sort": "must be one of newest, price-asc, price-desc"}))
			return
		}

		filter := products.ListFilter{
			Category: validators.SanitizeString(r.URL.Query().Get("category"), maxSearchQueryLen),
			Query:    validators.SanitizeString(r.URL.Query().Get("q"), maxSearchQueryLen),
			MaxPrice: maxPrice,
			Colors:   validators.ParseQueryList(r, "colors"),
			Sort:     sort,
		}
		list, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func ProductGet(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type createProductRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Category    string           `json:"category" validate:"required,max=100"`
	Color       string           `json:"color" validate:"max=50"`
	Sizes       []string         `json:"sizes" validate:"required,min=1"`
	ImageURL    string           `json:"imageUrl" validate:"omitempty,url"`
	Images      []string         `json:"images" validate:"required,min=1,dive,url"`
	Description string           `json:"description"`
	AIHint      string           `json:"aiHint" validate:"max=100"`
}

func (req createProductRequest) toInput() products.CreateProductInput {
	return products.CreateProductInput{
		Name:        req.Name,
		Price:       *req.Price,
		Category:    req.Category,
		Color:       req.Color,
		Sizes:       req.Sizes,
		ImageURL:    req.ImageURL,
		Images:      req.Images,
		Description: req.Description,
		AIHint:      req.AIHint,
	}
}

// updateProductRequest is a partial update; omitted fields are left as stored.
type updateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=200"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category" validate:"omitempty,max=100"`
	Color       *string          `json:"color" validate:"omitempty,max=50"`
	Sizes       *[]string        `json:"sizes"`
	ImageURL    *string          `json:"imageUrl" validate:"omitempty,url"`
	Images      *[]string        `json:"images"`
	Description *string          `json:"description"`
	AIHint      *string          `json:"aiHint" validate:"omitempty,max=100"`
}

func (req updateProductRequest) toInput() products.UpdateProductInput {
	return products.UpdateProductInput{
		Name:        req.Name,
		Price:       req.Price,
		Category:    req.Category,
		Color:       req.Color,
		Sizes:       req.Sizes,
		ImageURL:    req.ImageURL,
		Images:      req.Images,
		Description: req.Description,
		AIHint:      req.AIHint,
	}
}

func AdminProductCreate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Create(r.Context(), middleware.PrincipalFromContext(r.Context()), req.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func AdminProductUpdate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Update(r.Context(), middleware.PrincipalFromContext(r.Context()), id, req.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminProductDelete(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
