package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

const tempPasswordLength = 16

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "storefront-seed"})

	_ = godotenv.Load()

	catalogPath := flag.String("catalog", "cmd/seed/catalog.yaml", "YAML catalog fixture")
	adminEmail := flag.String("admin-email", "", "promote or create this account as admin")
	force := flag.Bool("force", false, "insert the catalog even when products already exist")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		exitf("failed to load config: %v", err)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		exitf("failed to bootstrap database: %v", err)
	}
	defer dbClient.Close()

	productsRepo := products.NewRepository(dbClient.DB())
	if err := seedCatalog(ctx, logg, productsRepo, *catalogPath, *force); err != nil {
		exitf("catalog seed failed: %v", err)
	}

	if email := strings.ToLower(strings.TrimSpace(*adminEmail)); email != "" {
		if err := bootstrapAdmin(ctx, logg, users.NewRepository(dbClient.DB()), cfg.Password, email); err != nil {
			exitf("admin bootstrap failed: %v", err)
		}
	}
}

func seedCatalog(ctx context.Context, logg *logger.Logger, repo *products.Repository, path string, force bool) error {
	existing, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if existing > 0 && !force {
		logg.Info(ctx, fmt.Sprintf("catalog already has %d products, skipping", existing))
		return nil
	}

	catalog, err := loadCatalog(path)
	if err != nil {
		return err
	}
	for i := range catalog {
		if _, err := repo.Create(ctx, &catalog[i]); err != nil {
			return fmt.Errorf("insert %q: %w", catalog[i].Name, err)
		}
	}
	logg.Info(ctx, fmt.Sprintf("seeded %d products from %s", len(catalog), path))
	return nil
}

func bootstrapAdmin(ctx context.Context, logg *logger.Logger, repo *users.Repository, pwCfg config.PasswordConfig, email string) error {
	ctx = logg.WithField(ctx, "email", email)

	user, err := repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Role == enums.RoleAdmin {
			logg.Info(ctx, "account is already an admin")
			return nil
		}
		if err := repo.UpdateRole(ctx, user.ID, enums.RoleAdmin); err != nil {
			return err
		}
		logg.Info(ctx, "promoted existing account to admin")
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	password, err := security.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return err
	}
	hash, err := security.HashPassword(password, pwCfg)
	if err != nil {
		return err
	}
	if _, err := repo.Create(ctx, users.CreateUserDTO{
		Email:        email,
		Name:         "Administrator",
		PasswordHash: hash,
		Role:         enums.RoleAdmin,
	}); err != nil {
		return err
	}

	logg.Info(ctx, "created admin account")
	fmt.Printf("temporary admin password for %s: %s\n", email, password)
	return nil
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
