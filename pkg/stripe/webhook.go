package stripe

import (
	"errors"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrMissingSignature = errors.New("stripe signature header missing")

// ConstructEvent checks the Stripe-Signature header against the signing
// secret and decodes the payload. Events from other API versions are
// accepted; the handlers read only fields stable across versions.
func (c *Client) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if signature == "" {
		return stripe.Event{}, ErrMissingSignature
	}
	return webhook.ConstructEventWithOptions(payload, signature, c.signingSecret, webhook.ConstructEventOptions{
		Tolerance:                c.webhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
}
