package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/proppilot-backend/api/controllers"
	admincontrollers "github.com/angelmondragon/proppilot-backend/api/controllers/admin"
	billingcontrollers "github.com/angelmondragon/proppilot-backend/api/controllers/billing"
	integrationcontrollers "github.com/angelmondragon/proppilot-backend/api/controllers/integrations"
	webhookcontrollers "github.com/angelmondragon/proppilot-backend/api/controllers/webhooks"
	"github.com/angelmondragon/proppilot-backend/api/middleware"
	"github.com/angelmondragon/proppilot-backend/pkg/config"
	"github.com/angelmondragon/proppilot-backend/pkg/enums"
	"github.com/angelmondragon/proppilot-backend/pkg/logger"
	"github.com/angelmondragon/proppilot-backend/pkg/redis"
)

// Dependencies carries what the router hands to controllers. A nil service
// makes its controllers answer with an error envelope instead of panicking.
type Dependencies struct {
	DB       controllers.Pinger
	Redis    *redis.Client
	Gatherer prometheus.Gatherer

	Registration   controllers.RegistrationService
	Activation     controllers.TrialStarter
	Plans          billingcontrollers.PlanCatalog
	Admin          admincontrollers.Service
	Accounting     integrationcontrollers.AccountingService
	StripeWebhook  webhookcontrollers.StripeWebhookService
	StripeEvents   webhookcontrollers.EventVerifier
	WebhookGuard   webhookcontrollers.WebhookGuard
	WebhookMetrics webhookcontrollers.WebhookRecorder
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.PublicURL),
	)

	registerPolicy := middleware.RegistrationLimitPolicy{
		Window:       cfg.AuthRateLimit.RegisterWindow,
		IPLimit:      cfg.AuthRateLimit.RegisterIPLimit,
		ContactLimit: cfg.AuthRateLimit.RegisterEmailLimit,
	}

	readiness := map[string]controllers.Pinger{"db": deps.DB, "redis": nil}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeEvents, deps.WebhookGuard, deps.WebhookMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}

		r.Get("/plans", billingcontrollers.PlansList(deps.Plans, logg))
		r.Get("/integrations/accounting/callback", integrationcontrollers.AccountingCallback(deps.Accounting, logg))

		register := controllers.OrganizationRegister(deps.Registration, logg)
		if deps.Redis != nil {
			r.With(middleware.RegistrationLimit(registerPolicy, deps.Redis, logg)).Post("/organizations/register", register)
		} else {
			r.Post("/organizations/register", register)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireOrganization(logg))
			r.Post("/organizations/me/trial", controllers.OrganizationStartTrial(deps.Activation, logg))
			r.Get("/integrations/accounting/connect", integrationcontrollers.AccountingConnect(deps.Accounting, logg))
			r.Get("/integrations/accounting/status", integrationcontrollers.AccountingStatus(deps.Accounting, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.MemberRoleAdmin))
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, logg))
		}

		r.Route("/organizations", func(r chi.Router) {
			r.Get("/", admincontrollers.ListOrganizations(deps.Admin, logg))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", admincontrollers.GetOrganization(deps.Admin, logg))
				r.Get("/verification-logs", admincontrollers.ListVerificationLogs(deps.Admin, logg))
				r.Post("/approve", admincontrollers.ApproveOrganization(deps.Admin, logg))
				r.Post("/reject", admincontrollers.RejectOrganization(deps.Admin, logg))
				r.Patch("/grace-period", admincontrollers.SetGracePeriod(deps.Admin, logg))
				r.Post("/retry-payment", admincontrollers.RetryPayment(deps.Admin, logg))
				r.Post("/override-suspension", admincontrollers.OverrideSuspension(deps.Admin, logg))
			})
		})
		r.Post("/billing/grace-period-check", admincontrollers.RunGraceCheck(deps.Admin, logg))
	})

	return r
}
