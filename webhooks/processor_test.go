package webhooks

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubVerifier struct {
	err error
}

func (v stubVerifier) Verify(context.Context, InboundRequest) error {
	return v.err
}

type stubWebhookHandler struct {
	calls  int
	result InboundResult
	err    error
}

func (h *stubWebhookHandler) Handle(context.Context, InboundRequest) (InboundResult, error) {
	h.calls++
	if h.err != nil {
		return InboundResult{}, h.err
	}
	return h.result, nil
}

func TestProcessor_DedupesDeliveries(t *testing.T) {
	ledger := NewMemoryLedger()
	handler := &stubWebhookHandler{
		result: InboundResult{
			Accepted:   true,
			StatusCode: 200,
		},
	}
	processor := NewProcessor(stubVerifier{err: nil}, ledger, handler)

	req := InboundRequest{
		Metadata: map[string]any{
			"delivery_id": "delivery-1",
		},
	}

	first, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process first webhook: %v", err)
	}
	if !first.Accepted {
		t.Fatalf("expected first delivery accepted")
	}
	if handler.calls != 1 {
		t.Fatalf("expected handler to be called once")
	}

	second, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process duplicate webhook: %v", err)
	}
	if !second.Accepted {
		t.Fatalf("expected duplicate to be accepted as deduped")
	}
	if second.Metadata["deduped"] != true {
		t.Fatalf("expected deduped metadata marker")
	}
	if handler.calls != 1 {
		t.Fatalf("expected handler call count to remain unchanged for duplicate")
	}
}

func TestProcessor_RecordsRetryOnHandlerFailure(t *testing.T) {
	ledger := NewMemoryLedger()
	handler := &stubWebhookHandler{
		err: errors.New("temporary failure"),
	}
	processor := NewProcessor(stubVerifier{}, ledger, handler)
	processor.RetryPolicy = ExponentialRetryPolicy{Initial: time.Second, Max: 4 * time.Second}
	processor.Now = func() time.Time {
		return time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	}

	req := InboundRequest{
		Headers: map[string]string{
			"X-Hotmart-Delivery": "42",
		},
	}
	if _, err := processor.Process(context.Background(), req); err == nil {
		t.Fatalf("expected retryable handler failure")
	}

	record, err := ledger.Get(context.Background(), "42")
	if err != nil {
		t.Fatalf("load delivery record: %v", err)
	}
	if record.Status != DeliveryStatusRetryReady {
		t.Fatalf("expected retry_ready status, got %q", record.Status)
	}
	if record.NextAttemptAt == nil {
		t.Fatalf("expected next attempt timestamp")
	}
}

func TestProcessor_RejectedDeliveryReturnsUnauthorized(t *testing.T) {
	ledger := NewMemoryLedger()
	handler := &stubWebhookHandler{result: InboundResult{Accepted: true, StatusCode: 200}}
	processor := NewProcessor(stubVerifier{err: errors.New("bad token")}, ledger, handler)

	result, err := processor.Process(context.Background(), InboundRequest{
		Metadata: map[string]any{"delivery_id": "delivery-rejected"},
	})
	if err == nil {
		t.Fatalf("expected verification error")
	}
	if result.Accepted {
		t.Fatalf("expected rejected delivery")
	}
	if result.StatusCode != 401 {
		t.Fatalf("expected 401 status, got %d", result.StatusCode)
	}
	if handler.calls != 0 {
		t.Fatalf("expected handler to be skipped for rejected delivery")
	}
}

func TestProcessor_NilVerifierAcceptsEveryDelivery(t *testing.T) {
	ledger := NewMemoryLedger()
	handler := &stubWebhookHandler{result: InboundResult{Accepted: true, StatusCode: 200}}
	processor := NewProcessor(nil, ledger, handler)

	result, err := processor.Process(context.Background(), InboundRequest{
		Metadata: map[string]any{"delivery_id": "delivery-open"},
	})
	if err != nil {
		t.Fatalf("process without verifier: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected accepted delivery")
	}
	if handler.calls != 1 {
		t.Fatalf("expected handler call")
	}
}

func TestProcessor_BodyDigestFallbackDedupes(t *testing.T) {
	ledger := NewMemoryLedger()
	handler := &stubWebhookHandler{result: InboundResult{Accepted: true, StatusCode: 200}}
	processor := NewProcessor(nil, ledger, handler)

	body := []byte(`{"event":"PURCHASE_APPROVED"}`)
	if _, err := processor.Process(context.Background(), InboundRequest{Body: body}); err != nil {
		t.Fatalf("process first body: %v", err)
	}
	second, err := processor.Process(context.Background(), InboundRequest{Body: body})
	if err != nil {
		t.Fatalf("process identical body: %v", err)
	}
	if second.Metadata["deduped"] != true {
		t.Fatalf("expected identical body to dedupe via digest")
	}
	if handler.calls != 1 {
		t.Fatalf("expected a single handler call, got %d", handler.calls)
	}
}

func TestProcessor_DeadLetterAfterMaxAttempts(t *testing.T) {
	ledger := NewMemoryLedger()
	handler := &stubWebhookHandler{err: errors.New("permanent failure")}
	processor := NewProcessor(nil, ledger, handler)
	processor.MaxAttempts = 2
	processor.RetryPolicy = ExponentialRetryPolicy{Initial: time.Millisecond, Max: time.Millisecond}

	current := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	processor.Now = func() time.Time { return current }
	ledger.Now = func() time.Time { return current }

	req := InboundRequest{Metadata: map[string]any{"delivery_id": "delivery-dead"}}
	for attempt := 0; attempt < 2; attempt++ {
		if _, err := processor.Process(context.Background(), req); err == nil {
			t.Fatalf("expected failure on attempt %d", attempt+1)
		}
		current = current.Add(time.Minute)
	}

	record, err := ledger.Get(context.Background(), "delivery-dead")
	if err != nil {
		t.Fatalf("load delivery record: %v", err)
	}
	if record.Status != DeliveryStatusDead {
		t.Fatalf("expected dead status after max attempts, got %q", record.Status)
	}

	deduped, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process dead delivery: %v", err)
	}
	if deduped.Metadata["deduped"] != true {
		t.Fatalf("expected dead delivery to dedupe")
	}
	if handler.calls != 2 {
		t.Fatalf("expected no further handler calls, got %d", handler.calls)
	}
}

func TestProcessor_BurstCoalescesRapidRepeats(t *testing.T) {
	current := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	ledger := NewMemoryLedger()
	handler := &stubWebhookHandler{result: InboundResult{Accepted: true, StatusCode: 200}}
	processor := NewProcessor(nil, ledger, handler)
	processor.Burst = NewBurstController(BurstOptions{
		Mode:   BurstModeCoalesce,
		Window: 2 * time.Second,
		Now:    func() time.Time { return current },
	})

	first := InboundRequest{
		Metadata: map[string]any{
			"delivery_id": "delivery-a",
			"event":       "PURCHASE_APPROVED",
			"buyer_email": "maria@example.com",
		},
	}
	second := InboundRequest{
		Metadata: map[string]any{
			"delivery_id": "delivery-b",
			"event":       "PURCHASE_APPROVED",
			"buyer_email": "maria@example.com",
		},
	}

	if _, err := processor.Process(context.Background(), first); err != nil {
		t.Fatalf("process first delivery: %v", err)
	}
	current = current.Add(500 * time.Millisecond)
	result, err := processor.Process(context.Background(), second)
	if err != nil {
		t.Fatalf("process burst delivery: %v", err)
	}
	if result.Metadata["coalesced"] != true {
		t.Fatalf("expected burst repeat to coalesce, metadata=%v", result.Metadata)
	}
	if handler.calls != 1 {
		t.Fatalf("expected one handler call, got %d", handler.calls)
	}
}
