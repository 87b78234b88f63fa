package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/proppilot-backend/api/responses"
	stripewebhook "github.com/angelmondragon/proppilot-backend/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/proppilot-backend/pkg/errors"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/stripe/stripe-go/v82"
)

const maxWebhookBody = 1 << 20

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (stripewebhook.Outcome, error)
}

type WebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type WebhookRecorder interface {
	IncWebhookEvent(eventType, outcome string)
}

type receivedResponse struct {
	Received bool `json:"received"`
}

// StripeWebhook verifies, de-duplicates and reconciles Stripe billing events.
// A failed event has its ledger mark removed so Stripe's retry is processed.
func StripeWebhook(svc StripeWebhookService, verifier EventVerifier, guard WebhookGuard, metrics WebhookRecorder, logg *logger.Logger) http.HandlerFunc {
	record := func(eventType, outcome string) {
		if metrics != nil {
			metrics.IncWebhookEvent(eventType, outcome)
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := verifier.ConstructEvent(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			record("unknown", "invalid_signature")
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature"))
			return
		}
		eventType := string(event.Type)
		if logg != nil {
			ctx = logg.WithStripeEvent(ctx, event.ID, eventType)
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			record(eventType, "duplicate")
			if logg != nil {
				logg.Info(ctx, "stripe event already processed")
			}
			responses.WriteSuccess(w, receivedResponse{Received: true})
			return
		}

		outcome, err := svc.HandleEvent(ctx, &event)
		if err != nil {
			if delErr := guard.Delete(ctx, event.ID); delErr != nil && logg != nil {
				logg.Error(ctx, "release stripe event mark", delErr)
			}
			record(eventType, "failed")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		record(eventType, string(outcome))
		if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", string(outcome)), "stripe event handled")
		}
		responses.WriteSuccess(w, receivedResponse{Received: true})
	}
}
