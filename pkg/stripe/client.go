package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const signingSecretPrefix = "whsec_"

// keyPrefixes lists the secret and restricted key prefixes Stripe issues per mode.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

// Client opens hosted checkout sessions and verifies the webhooks they produce.
type Client struct {
	api           *stripe.Client
	mode          string
	signingSecret string
}

type credentials struct {
	mode          string
	apiKey        string
	signingSecret string
}

// NewClient fails fast on misconfigured credentials, reporting every problem at once.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	creds, err := credentialsFrom(cfg)
	if err != nil {
		return nil, err
	}

	// checkout/session reads the package-level key.
	stripe.Key = creds.apiKey

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_mode", creds.mode), "stripe checkout client ready")
	}
	return &Client{
		api:           stripe.NewClient(creds.apiKey),
		mode:          creds.mode,
		signingSecret: creds.signingSecret,
	}, nil
}

// Mode reports whether the client charges in test or live mode.
func (c *Client) Mode() string {
	if c == nil {
		return ""
	}
	return c.mode
}

func credentialsFrom(cfg config.StripeConfig) (credentials, error) {
	creds := credentials{
		mode:          cfg.Environment(),
		apiKey:        strings.TrimSpace(cfg.APIKey),
		signingSecret: strings.TrimSpace(cfg.Secret),
	}

	var errs error
	prefixes, ok := keyPrefixes[creds.mode]
	switch {
	case !ok:
		errs = multierr.Append(errs, fmt.Errorf("stripe mode must be test or live, got %q", creds.mode))
	case creds.apiKey == "":
		errs = multierr.Append(errs, errors.New("stripe api key is required"))
	case !hasAnyPrefix(creds.apiKey, prefixes):
		errs = multierr.Append(errs, fmt.Errorf("stripe %s mode needs a %s key", creds.mode, strings.Join(prefixes, " or ")))
	}
	switch {
	case creds.signingSecret == "":
		errs = multierr.Append(errs, errors.New("stripe webhook secret is required"))
	case !strings.HasPrefix(creds.signingSecret, signingSecretPrefix):
		errs = multierr.Append(errs, fmt.Errorf("stripe webhook secret must start with %s", signingSecretPrefix))
	}
	return creds, errs
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
