// Package stripe holds the Stripe account configuration and the handful of
// API calls billing makes: customers, prices, subscriptions and invoices.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/angelmondragon/proppilot-backend/pkg/config"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

// keyPrefixes lists the secret and restricted key prefixes accepted per mode,
// so a live key can never be loaded into a test deployment or the reverse.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

// Client is safe for concurrent use. stripe-go keeps the API key in a
// package variable, so one process talks to one Stripe account.
type Client struct {
	environment      string
	signingSecret    string
	currency         string
	webhookTolerance time.Duration
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, fmt.Errorf("stripe environment must be %q or %q, got %q", testEnv, liveEnv, env)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.Secret)
	switch {
	case apiKey == "":
		return nil, errors.New("stripe api key is required")
	case secret == "":
		return nil, errors.New("stripe webhook secret is required")
	case !hasAnyPrefix(apiKey, prefixes):
		return nil, fmt.Errorf("stripe %s mode requires a key starting with %s", env, strings.Join(prefixes, " or "))
	}

	stripe.Key = apiKey
	client := newClient(env, secret, cfg.Currency)
	client.webhookTolerance = cfg.WebhookTolerance

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env":      env,
			"stripe_currency": client.currency,
		}), "stripe client ready")
	}
	return client, nil
}

func newClient(env, signingSecret, currency string) *Client {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &Client{environment: env, signingSecret: signingSecret, currency: currency}
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(value, p) {
			return true
		}
	}
	return false
}

func (c *Client) Environment() string { return c.environment }

func (c *Client) SigningSecret() string { return c.signingSecret }

// Currency is used for prices created on demand.
func (c *Client) Currency() string { return c.currency }
