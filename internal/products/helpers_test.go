package products

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}))
	return conn
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "products-test", Output: io.Discard})
}

func mustCreateProduct(t *testing.T, repo *Repository, name, category, color, price string, createdAt time.Time) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Category:  category,
		Color:     color,
		Sizes:     []string{"S", "M", "L"},
		Images:    []string{"https://cdn.test/" + strings.ToLower(name) + ".png"},
		ImageURL:  "https://cdn.test/" + strings.ToLower(name) + ".png",
		CreatedAt: createdAt,
	}
	created, err := repo.Create(context.Background(), product)
	require.NoError(t, err)
	return created
}
