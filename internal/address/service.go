package address

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type Service interface {
	AddAddress(ctx context.Context, userID uuid.UUID, input Input) (uuid.UUID, error)
	GetAddresses(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	GetAddress(ctx context.Context, userID, addressID uuid.UUID) (*AddressDTO, error)
	// Snapshot returns the copy of an owned address embedded into orders.
	Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.Address, error)
}

type service struct {
	repo     *Repository
	logg     *logger.Logger
	validate *validator.Validate
}

func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("address repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &service{repo: repo, logg: logg, validate: newValidator()}, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

func (s *service) AddAddress(ctx context.Context, userID uuid.UUID, input Input) (uuid.UUID, error) {
	if userID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	clean := input.normalized()
	if err := s.validate.Struct(clean); err != nil {
		return uuid.Nil, validationError(err)
	}

	created, err := s.repo.Create(ctx, &models.Address{
		UserID:       userID,
		Name:         clean.Name,
		AddressLine1: clean.AddressLine1,
		AddressLine2: clean.AddressLine2,
		City:         clean.City,
		State:        clean.State,
		Zip:          clean.Zip,
		Country:      clean.Country,
	})
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert address")
	}
	s.logg.Info(s.logg.WithField(ctx, "address_id", created.ID.String()), "address added")
	return created.ID, nil
}

func (s *service) GetAddresses(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) GetAddress(ctx context.Context, userID, addressID uuid.UUID) (*AddressDTO, error) {
	addr, err := s.load(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}
	return FromModel(addr), nil
}

func (s *service) Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.Address, error) {
	addr, err := s.load(ctx, userID, addressID)
	if err != nil {
		return types.Address{}, err
	}
	return addr.Snapshot(), nil
}

func (s *service) load(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	addr, err := s.repo.FindForUser(ctx, userID, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load address")
	}
	return addr, nil
}

func validationError(err error) error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fe := range errs {
			switch fe.Tag() {
			case "required":
				details[fe.Field()] = "is required"
			case "max":
				details[fe.Field()] = fmt.Sprintf("must be at most %s characters", fe.Param())
			default:
				details[fe.Field()] = "is invalid"
			}
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid address").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
