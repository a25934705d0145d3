package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod tags how an order is paid.
type PaymentMethod string

const (
	// PaymentMethodCOD is cash on delivery; the order is placed immediately.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodOnline hands off to a hosted checkout page.
	PaymentMethodOnline PaymentMethod = "online"
	// PaymentMethodCard charges a tokenized card source directly.
	PaymentMethodCard PaymentMethod = "card"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodOnline,
	PaymentMethodCard,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
