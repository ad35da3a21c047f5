package webhooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-membergate/core"
)

type stubRecorder struct {
	events []core.WebhookEvent
	err    error
}

func (r *stubRecorder) RecordWebhook(_ context.Context, event core.WebhookEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func TestServiceHandler_DecodesPurchaseDelivery(t *testing.T) {
	recorder := &stubRecorder{}
	handler := NewServiceHandler(recorder)

	body := []byte(`{
		"id": "delivery-99",
		"event": "PURCHASE_APPROVED",
		"data": {
			"buyer": {"email": "Maria@Example.com", "name": " Maria Silva "},
			"purchase": {"transaction": "HP123"}
		}
	}`)
	result, err := handler.Handle(context.Background(), InboundRequest{
		Body:       body,
		ReceivedAt: time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("handle delivery: %v", err)
	}
	if !result.Accepted || result.StatusCode != 200 {
		t.Fatalf("expected accepted 200, got %+v", result)
	}
	if len(recorder.events) != 1 {
		t.Fatalf("expected one recorded event, got %d", len(recorder.events))
	}
	event := recorder.events[0]
	if event.DeliveryID != "delivery-99" {
		t.Fatalf("unexpected delivery id: %q", event.DeliveryID)
	}
	if event.Event != "PURCHASE_APPROVED" {
		t.Fatalf("unexpected event: %q", event.Event)
	}
	if event.BuyerEmail != "maria@example.com" {
		t.Fatalf("expected normalized buyer email, got %q", event.BuyerEmail)
	}
	if event.BuyerName != "Maria Silva" {
		t.Fatalf("expected trimmed buyer name, got %q", event.BuyerName)
	}
	if event.Payload["event"] != "PURCHASE_APPROVED" {
		t.Fatalf("expected raw payload to be preserved")
	}
}

func TestServiceHandler_MalformedBodyIsAcknowledged(t *testing.T) {
	recorder := &stubRecorder{}
	handler := NewServiceHandler(recorder)

	result, err := handler.Handle(context.Background(), InboundRequest{
		Body: []byte(`not json`),
	})
	if err != nil {
		t.Fatalf("expected malformed body to be acknowledged, got %v", err)
	}
	if !result.Accepted || result.StatusCode != 200 {
		t.Fatalf("expected accepted 200, got %+v", result)
	}
	if result.Metadata["decoded"] != false {
		t.Fatalf("expected decode failure marker, metadata=%v", result.Metadata)
	}
	if len(recorder.events) != 0 {
		t.Fatalf("expected no recorded events for malformed body")
	}
}

func TestServiceHandler_RecorderFailureIsRetryable(t *testing.T) {
	recorder := &stubRecorder{err: errors.New("store down")}
	handler := NewServiceHandler(recorder)

	result, err := handler.Handle(context.Background(), InboundRequest{
		Body: []byte(`{"event":"PURCHASE_APPROVED","data":{"buyer":{"email":"maria@example.com"}}}`),
	})
	if err == nil {
		t.Fatalf("expected recorder failure to surface")
	}
	if result.Accepted {
		t.Fatalf("expected delivery to be retried")
	}
	if result.StatusCode != 500 {
		t.Fatalf("expected 500 status, got %d", result.StatusCode)
	}
}

func TestHottokVerifier(t *testing.T) {
	verifier := NewHottokVerifier("secret-token")

	if err := verifier.Verify(context.Background(), InboundRequest{
		Headers: map[string]string{"X-Hotmart-Hottok": "secret-token"},
	}); err != nil {
		t.Fatalf("expected matching header token to verify: %v", err)
	}

	if err := verifier.Verify(context.Background(), InboundRequest{
		Metadata: map[string]any{"hottok": "secret-token"},
	}); err != nil {
		t.Fatalf("expected matching metadata token to verify: %v", err)
	}

	if err := verifier.Verify(context.Background(), InboundRequest{
		Headers: map[string]string{"X-Hotmart-Hottok": "wrong"},
	}); err == nil {
		t.Fatalf("expected mismatched token to be rejected")
	}

	if err := verifier.Verify(context.Background(), InboundRequest{}); err == nil {
		t.Fatalf("expected missing token to be rejected")
	}

	open := NewHottokVerifier("")
	if err := open.Verify(context.Background(), InboundRequest{}); err != nil {
		t.Fatalf("expected empty configured token to accept all: %v", err)
	}
}
