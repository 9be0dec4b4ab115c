package webhooks

import (
	"fmt"
	"io"
	"net/http"

	"github.com/bazaarlabs/bazaar-backend/api/responses"
	"github.com/bazaarlabs/bazaar-backend/internal/payments"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
	"github.com/bazaarlabs/bazaar-backend/pkg/metrics"
	"github.com/stripe/stripe-go/v84/webhook"
)

const paymentSource = "payment"

type paymentSigner interface {
	SigningSecret() string
}

// PaymentWebhook receives asynchronous payment gateway events. The gateway
// retries on anything but 2xx, so only an unverifiable signature is refused;
// processing failures are acknowledged and retried through event redelivery
// after the dedupe claim is released by the service.
func PaymentWebhook(svc payments.Service, client paymentSigner, wm *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			wm.IncFailed(paymentSource)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			wm.IncFailed(paymentSource)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify signature"))
			return
		}

		outcome, err := svc.HandleEvent(ctx, &event)
		switch outcome {
		case payments.OutcomeProcessed:
			wm.IncProcessed(paymentSource)
		case payments.OutcomeFailed:
			wm.IncFailed(paymentSource)
		default:
			wm.IncIgnored(paymentSource)
		}
		if err != nil {
			if logg != nil {
				logg.Error(ctx, fmt.Sprintf("payment event %s failed", event.ID), err)
			}
			responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("payment event %s %s", event.ID, outcome))
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
