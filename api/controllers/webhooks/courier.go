package webhooks

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bazaarlabs/bazaar-backend/api/responses"
	"github.com/bazaarlabs/bazaar-backend/internal/shipping"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
	"github.com/bazaarlabs/bazaar-backend/pkg/logger"
	"github.com/bazaarlabs/bazaar-backend/pkg/metrics"
)

const courierSource = "courier"

// CourierWebhook receives tracking updates from the courier. The courier
// authenticates with a shared API key; a missing or wrong key is refused,
// everything else is acknowledged so the courier does not retry storms on
// payloads we will never be able to apply.
func CourierWebhook(svc shipping.EventProcessor, apiKey string, wm *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courier webhook service unavailable"))
			return
		}
		if apiKey == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courier webhook key not configured"))
			return
		}

		provided := r.Header.Get("X-Api-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			wm.IncFailed(courierSource)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "invalid courier api key"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var event shipping.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			wm.IncFailed(courierSource)
			if logg != nil {
				logg.Error(ctx, "courier event payload malformed", err)
			}
			responses.WriteSuccess(w, map[string]string{"outcome": string(shipping.OutcomeFailed)})
			return
		}

		outcome, err := svc.HandleEvent(ctx, event)
		switch outcome {
		case shipping.OutcomeProcessed:
			wm.IncProcessed(courierSource)
		case shipping.OutcomeFailed:
			wm.IncFailed(courierSource)
		default:
			wm.IncIgnored(courierSource)
		}
		if err != nil {
			if logg != nil {
				logg.Error(ctx, fmt.Sprintf("courier event for %s failed", event.ConsignmentRef), err)
			}
			responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("courier event for %s %s", event.ConsignmentRef, outcome))
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
