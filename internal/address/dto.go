package address

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Input is the address book payload. Fields are trimmed before validation.
type Input struct {
	Name         string  `json:"name" validate:"required,max=120"`
	AddressLine1 string  `json:"addressLine1" validate:"required,max=200"`
	AddressLine2 *string `json:"addressLine2,omitempty" validate:"omitempty,max=200"`
	City         string  `json:"city" validate:"required,max=100"`
	State        string  `json:"state" validate:"required,max=100"`
	Zip          string  `json:"zip" validate:"required,max=20"`
	Country      string  `json:"country" validate:"required,max=100"`
}

func (in Input) normalized() Input {
	out := Input{
		Name:         trim(in.Name),
		AddressLine1: trim(in.AddressLine1),
		City:         trim(in.City),
		State:        trim(in.State),
		Zip:          trim(in.Zip),
		Country:      trim(in.Country),
	}
	if in.AddressLine2 != nil {
		if line2 := trim(*in.AddressLine2); line2 != "" {
			out.AddressLine2 = &line2
		}
	}
	return out
}

// AddressDTO is the transport shape for an address book entry.
type AddressDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	AddressLine1 string    `json:"addressLine1"`
	AddressLine2 *string   `json:"addressLine2,omitempty"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Zip          string    `json:"zip"`
	Country      string    `json:"country"`
	CreatedAt    time.Time `json:"createdAt"`
}

func FromModel(a *models.Address) *AddressDTO {
	if a == nil {
		return nil
	}
	return &AddressDTO{
		ID:           a.ID,
		Name:         a.Name,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		Zip:          a.Zip,
		Country:      a.Country,
		CreatedAt:    a.CreatedAt,
	}
}
