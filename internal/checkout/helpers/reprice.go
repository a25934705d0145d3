package helpers

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ProductIDs returns the distinct catalog ids referenced by items.
func ProductIDs(items []types.LineItem) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "cart item %s references an invalid product", item.CartItemID)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// Reprice replaces each line's product snapshot with the live catalog row so
// the price a buyer pays never comes from client-held state. Quantity and
// selected size are kept. Every stale line is reported in the error details,
// keyed by cart item id.
func Reprice(items []types.LineItem, catalog map[uuid.UUID]models.Product) ([]types.LineItem, error) {
	out := make([]types.LineItem, 0, len(items))
	problems := map[string]string{}
	for _, item := range items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			problems[item.CartItemID] = "invalid product reference"
			continue
		}
		product, ok := catalog[id]
		if !ok {
			problems[item.CartItemID] = fmt.Sprintf("%s is no longer available", item.Name)
			continue
		}
		if !product.OffersSize(item.SelectedSize) {
			problems[item.CartItemID] = fmt.Sprintf("size %s of %s is no longer offered", item.SelectedSize, product.Name)
			continue
		}
		if item.Quantity < 1 {
			problems[item.CartItemID] = "quantity must be at least 1"
			continue
		}
		out = append(out, types.LineItem{
			CartItemID:   item.CartItemID,
			ProductID:    product.ID.String(),
			Name:         product.Name,
			Price:        product.Price,
			Category:     product.Category,
			Color:        product.Color,
			Sizes:        append([]string(nil), product.Sizes...),
			ImageURL:     product.ImageURL,
			Images:       append([]string(nil), product.Images...),
			Description:  product.Description,
			AIHint:       product.AIHint,
			Quantity:     item.Quantity,
			SelectedSize: item.SelectedSize,
		})
	}
	if len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains items that cannot be purchased").WithDetails(problems)
	}
	return out, nil
}
