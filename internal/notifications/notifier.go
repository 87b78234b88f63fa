// Package notifications renders and sends the billing lifecycle emails.
// Delivery is best effort: callers log failures and carry on.
package notifications

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/angelmondragon/proppilot-backend/pkg/db/models"
	"github.com/angelmondragon/proppilot-backend/pkg/email"
)

// Kind names a lifecycle email.
type Kind string

const (
	KindApproved         Kind = "approved"
	KindRejected         Kind = "rejected"
	KindTrialEnding      Kind = "trial_ending"
	KindPaymentFailed    Kind = "payment_failed"
	KindSuspended        Kind = "suspended"
	KindPaymentSucceeded Kind = "payment_succeeded"
)

const dateLayout = "January 2, 2006"

type templateSet struct {
	subject string
	body    *template.Template
}

var templates = map[Kind]templateSet{
	KindApproved: {
		subject: "Your PropPilot account is approved",
		body: template.Must(template.New("approved").Parse(`Hi {{.ContactName}},

{{.OrganizationName}} has been approved. Your {{.PlanTier}} trial is active{{if .TrialEndsAt}} until {{.TrialEndsAt}}{{end}}.

Sign in: {{.AppURL}}
`)),
	},
	KindRejected: {
		subject: "Update on your PropPilot application",
		body: template.Must(template.New("rejected").Parse(`Hi {{.ContactName}},

We could not verify {{.OrganizationName}} at this time.{{if .Reason}}

Reason: {{.Reason}}{{end}}

Reply to this email if you believe this is a mistake.
`)),
	},
	KindTrialEnding: {
		subject: "Your PropPilot trial ends soon",
		body: template.Must(template.New("trial_ending").Parse(`Hi {{.ContactName}},

Your trial for {{.OrganizationName}} ends in {{.DaysRemaining}} day{{if ne .DaysRemaining 1}}s{{end}}{{if .TrialEndsAt}} ({{.TrialEndsAt}}){{end}}.

Add a payment method to keep access: {{.AppURL}}/settings/billing
`)),
	},
	KindPaymentFailed: {
		subject: "Payment failed for your PropPilot subscription",
		body: template.Must(template.New("payment_failed").Parse(`Hi {{.ContactName}},

We could not process the latest payment for {{.OrganizationName}}.{{if .NextAttempt}} We will retry on {{.NextAttempt}}.{{end}}

Your account stays active until {{.GracePeriodEnd}}. Update your payment method: {{.AppURL}}/settings/billing
`)),
	},
	KindSuspended: {
		subject: "Your PropPilot account has been suspended",
		body: template.Must(template.New("suspended").Parse(`Hi {{.ContactName}},

{{.OrganizationName}} has been suspended because payment was not received within the grace period.

Pay the outstanding invoice to restore access: {{.AppURL}}/settings/billing
`)),
	},
	KindPaymentSucceeded: {
		subject: "Payment received, thank you",
		body: template.Must(template.New("payment_succeeded").Parse(`Hi {{.ContactName}},

We received your payment for {{.OrganizationName}}. Your subscription is active.
`)),
	},
}

// Data is the template input. Dates are preformatted.
type Data struct {
	ContactName      string
	OrganizationName string
	PlanTier         string
	TrialEndsAt      string
	DaysRemaining    int
	NextAttempt      string
	GracePeriodEnd   string
	Reason           string
	AppURL           string
}

// Notifier sends lifecycle emails for organizations.
type Notifier struct {
	sender email.Sender
	appURL string
}

// NewNotifier builds a notifier. appURL is linked from the email bodies.
func NewNotifier(sender email.Sender, appURL string) *Notifier {
	return &Notifier{sender: sender, appURL: strings.TrimRight(appURL, "/")}
}

func (n *Notifier) Approved(ctx context.Context, org *models.Organization) error {
	data := n.base(org)
	if org != nil && org.PlanTier != nil {
		data.PlanTier = org.PlanTier.String()
	}
	if org != nil && org.TrialEndsAt != nil {
		data.TrialEndsAt = org.TrialEndsAt.Format(dateLayout)
	}
	return n.send(ctx, KindApproved, org, data)
}

func (n *Notifier) Rejected(ctx context.Context, org *models.Organization, reason string) error {
	data := n.base(org)
	data.Reason = reason
	return n.send(ctx, KindRejected, org, data)
}

func (n *Notifier) TrialEnding(ctx context.Context, org *models.Organization, trialEnd time.Time, daysRemaining int) error {
	data := n.base(org)
	data.DaysRemaining = daysRemaining
	if !trialEnd.IsZero() {
		data.TrialEndsAt = trialEnd.Format(dateLayout)
	}
	return n.send(ctx, KindTrialEnding, org, data)
}

// PaymentFailed announces the failure. nextAttempt may be zero when Stripe
// has no further retries scheduled.
func (n *Notifier) PaymentFailed(ctx context.Context, org *models.Organization, nextAttempt, graceEnd time.Time) error {
	data := n.base(org)
	if !nextAttempt.IsZero() {
		data.NextAttempt = nextAttempt.Format(dateLayout)
	}
	data.GracePeriodEnd = graceEnd.Format(dateLayout)
	return n.send(ctx, KindPaymentFailed, org, data)
}

func (n *Notifier) Suspended(ctx context.Context, org *models.Organization) error {
	return n.send(ctx, KindSuspended, org, n.base(org))
}

func (n *Notifier) PaymentSucceeded(ctx context.Context, org *models.Organization) error {
	return n.send(ctx, KindPaymentSucceeded, org, n.base(org))
}

func (n *Notifier) base(org *models.Organization) Data {
	var data Data
	if n != nil {
		data.AppURL = n.appURL
	}
	if org != nil {
		data.ContactName = org.ContactName
		data.OrganizationName = org.Name
	}
	return data
}

func (n *Notifier) send(ctx context.Context, kind Kind, org *models.Organization, data Data) error {
	if n == nil || n.sender == nil {
		return nil
	}
	if org == nil {
		return fmt.Errorf("notify %s: organization is required", kind)
	}
	tpl, ok := templates[kind]
	if !ok {
		return fmt.Errorf("notify %s: unknown template", kind)
	}
	var body bytes.Buffer
	if err := tpl.body.Execute(&body, data); err != nil {
		return fmt.Errorf("render %s: %w", kind, err)
	}
	return n.sender.Send(ctx, email.Message{
		ToEmail:   org.Email,
		ToName:    org.ContactName,
		Subject:   tpl.subject,
		PlainText: body.String(),
		Category:  string(kind),
	})
}
