package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/invoice"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/subscription"
)

// CustomerInput describes the customer created for an organization.
type CustomerInput struct {
	OrganizationID string
	Name           string
	Email          string
}

// PriceInput describes a recurring price created when no lookup key matches.
type PriceInput struct {
	LookupKey   string
	ProductName string
	UnitAmount  int64
	Currency    string
	Interval    string
}

// SubscriptionInput describes a trial subscription.
type SubscriptionInput struct {
	OrganizationID string
	CustomerID     string
	PriceID        string
	TrialDays      int64
}

// CreateCustomer creates a Stripe customer tagged with the organization id.
func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(in.Email),
		Name:  stripe.String(in.Name),
	}
	params.Context = ctx
	params.AddMetadata("organization_id", in.OrganizationID)

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// FindPriceIDByLookupKey returns the active price for key, or "" when none exists.
func (c *Client) FindPriceIDByLookupKey(ctx context.Context, key string) (string, error) {
	params := &stripe.PriceListParams{
		LookupKeys: []*string{stripe.String(key)},
		Active:     stripe.Bool(true),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := price.List(params)
	if iter.Next() {
		return iter.Price().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("list stripe prices: %w", err)
	}
	return "", nil
}

// CreatePrice creates a recurring price with inline product data.
func (c *Client) CreatePrice(ctx context.Context, in PriceInput) (string, error) {
	currency := in.Currency
	if currency == "" {
		currency = c.Currency()
	}
	params := &stripe.PriceParams{
		Currency:   stripe.String(currency),
		UnitAmount: stripe.Int64(in.UnitAmount),
		LookupKey:  stripe.String(in.LookupKey),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(in.Interval),
		},
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(in.ProductName),
		},
	}
	params.Context = ctx

	created, err := price.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe price: %w", err)
	}
	return created.ID, nil
}

// CreateSubscription starts a trial subscription on a single price.
func (c *Client) CreateSubscription(ctx context.Context, in SubscriptionInput) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(in.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(in.PriceID)},
		},
	}
	if in.TrialDays > 0 {
		params.TrialPeriodDays = stripe.Int64(in.TrialDays)
	}
	params.Context = ctx
	params.AddMetadata("organization_id", in.OrganizationID)

	sub, err := subscription.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe subscription: %w", err)
	}
	return sub, nil
}

// LatestOpenInvoice returns the newest open invoice for the customer, or nil.
func (c *Client) LatestOpenInvoice(ctx context.Context, customerID string) (*stripe.Invoice, error) {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.InvoiceStatusOpen)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := invoice.List(params)
	if iter.Next() {
		return iter.Invoice(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stripe invoices: %w", err)
	}
	return nil, nil
}

// PayInvoice attempts payment of an open invoice with the default method.
func (c *Client) PayInvoice(ctx context.Context, invoiceID string) (*stripe.Invoice, error) {
	params := &stripe.InvoicePayParams{}
	params.Context = ctx

	paid, err := invoice.Pay(invoiceID, params)
	if err != nil {
		return nil, fmt.Errorf("pay stripe invoice: %w", err)
	}
	return paid, nil
}
