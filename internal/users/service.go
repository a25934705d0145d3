package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Directory answers who the storefront's users are.
type Directory interface {
	ListAllUsers(ctx context.Context) ([]UserDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
}

type directory struct {
	repo    *Repository
	enabled bool
	logg    *logger.Logger
}

// NewDirectory builds the user directory. When enabled is false the listing
// reports the identity provider as unavailable; single lookups still work.
func NewDirectory(repo *Repository, enabled bool, logg *logger.Logger) (Directory, error) {
	if repo == nil {
		return nil, errors.New("user repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &directory{repo: repo, enabled: enabled, logg: logg}, nil
}

func (d *directory) ListAllUsers(ctx context.Context) ([]UserDTO, error) {
	if !d.enabled {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user directory is not available")
	}
	rows, err := d.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (d *directory) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := d.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load user")
	}
	return FromModel(user), nil
}
