package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-membergate/core"
)

// EventRecorder is the domain sink for decoded deliveries.
type EventRecorder interface {
	RecordWebhook(ctx context.Context, event core.WebhookEvent) error
}

// ServiceHandler decodes a provider delivery into a domain event and hands it
// to the recorder. Malformed deliveries are accepted with a 200 and only
// logged: the provider retries on anything else, and a payload that failed to
// decode once will fail the same way every time.
type ServiceHandler struct {
	Recorder EventRecorder
	Now      func() time.Time
}

func NewServiceHandler(recorder EventRecorder) *ServiceHandler {
	return &ServiceHandler{
		Recorder: recorder,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

type deliveryPayload struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Data  struct {
		Buyer struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"buyer"`
	} `json:"data"`
}

func (h *ServiceHandler) Handle(ctx context.Context, req InboundRequest) (InboundResult, error) {
	if h == nil || h.Recorder == nil {
		return InboundResult{}, fmt.Errorf("webhooks: service handler requires a recorder")
	}

	event, decodeErr := DecodeEvent(req)
	if decodeErr != nil {
		return InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata: map[string]any{
				"decoded":      false,
				"decode_error": decodeErr.Error(),
			},
		}, nil
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = h.now()
	}

	if err := h.Recorder.RecordWebhook(ctx, event); err != nil {
		return InboundResult{
			Accepted:   false,
			StatusCode: http.StatusInternalServerError,
		}, err
	}
	return InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"event": event.Event,
		},
	}, nil
}

// DecodeEvent parses a raw delivery body into a domain event.
func DecodeEvent(req InboundRequest) (core.WebhookEvent, error) {
	if len(req.Body) == 0 {
		return core.WebhookEvent{}, fmt.Errorf("webhooks: delivery body is empty")
	}

	var payload deliveryPayload
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return core.WebhookEvent{}, fmt.Errorf("webhooks: decode delivery body: %w", err)
	}
	if strings.TrimSpace(payload.Event) == "" {
		return core.WebhookEvent{}, fmt.Errorf("webhooks: delivery event name is missing")
	}

	var raw map[string]any
	if err := json.Unmarshal(req.Body, &raw); err != nil {
		return core.WebhookEvent{}, fmt.Errorf("webhooks: decode delivery payload: %w", err)
	}

	deliveryID := strings.TrimSpace(payload.ID)
	if deliveryID == "" && req.Metadata != nil {
		if value := strings.TrimSpace(fmt.Sprint(req.Metadata["delivery_id"])); value != "" && value != "<nil>" {
			deliveryID = value
		}
	}

	return core.WebhookEvent{
		DeliveryID: deliveryID,
		Event:      strings.TrimSpace(payload.Event),
		BuyerEmail: core.NormalizeEmail(payload.Data.Buyer.Email),
		BuyerName:  strings.TrimSpace(payload.Data.Buyer.Name),
		Payload:    raw,
		ReceivedAt: req.ReceivedAt,
	}, nil
}

func (h *ServiceHandler) now() time.Time {
	if h != nil && h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ Handler = (*ServiceHandler)(nil)
