package billing

import (
	"context"

	pkgstripe "github.com/angelmondragon/proppilot-backend/pkg/stripe"
	"github.com/stripe/stripe-go/v82"
)

// Gateway is the subset of the Stripe API the lifecycle depends on.
// *pkgstripe.Client satisfies it.
type Gateway interface {
	CreateCustomer(ctx context.Context, in pkgstripe.CustomerInput) (string, error)
	FindPriceIDByLookupKey(ctx context.Context, key string) (string, error)
	CreatePrice(ctx context.Context, in pkgstripe.PriceInput) (string, error)
	CreateSubscription(ctx context.Context, in pkgstripe.SubscriptionInput) (*stripe.Subscription, error)
	LatestOpenInvoice(ctx context.Context, customerID string) (*stripe.Invoice, error)
	PayInvoice(ctx context.Context, invoiceID string) (*stripe.Invoice, error)
}

var _ Gateway = (*pkgstripe.Client)(nil)
