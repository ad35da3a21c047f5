package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger is an in-process delivery ledger. Claims are leased: a crashed
// worker's claim becomes reclaimable once the lease lapses.
type MemoryLedger struct {
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]*memoryLedgerEntry
}

type memoryLedgerEntry struct {
	record   DeliveryRecord
	leasedAt time.Time
	lease    time.Duration
	lastErr  string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		Now:     func() time.Time { return time.Now().UTC() },
		entries: map[string]*memoryLedgerEntry{},
	}
}

func (l *MemoryLedger) Claim(
	_ context.Context,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: memory ledger is nil")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery id is required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[deliveryID]
	if exists {
		switch entry.record.Status {
		case DeliveryStatusProcessed, DeliveryStatusDead:
			return entry.record, false, nil
		case DeliveryStatusProcessing:
			if now.Sub(entry.leasedAt) < entry.lease {
				return entry.record, false, nil
			}
		case DeliveryStatusRetryReady:
			if entry.record.NextAttemptAt != nil && now.Before(*entry.record.NextAttemptAt) {
				return entry.record, false, nil
			}
		}
		entry.record.ClaimID = uuid.NewString()
		entry.record.Status = DeliveryStatusProcessing
		entry.record.Attempts++
		entry.record.UpdatedAt = now
		entry.leasedAt = now
		entry.lease = lease
		return entry.record, true, nil
	}

	record := DeliveryRecord{
		ID:         uuid.NewString(),
		ClaimID:    uuid.NewString(),
		DeliveryID: deliveryID,
		Status:     DeliveryStatusProcessing,
		Attempts:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	l.entries[deliveryID] = &memoryLedgerEntry{
		record:   record,
		leasedAt: now,
		lease:    lease,
	}
	return record, true, nil
}

func (l *MemoryLedger) Get(_ context.Context, deliveryID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: memory ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[strings.TrimSpace(deliveryID)]
	if !exists {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery %q not found", deliveryID)
	}
	return entry.record, nil
}

func (l *MemoryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return fmt.Errorf("webhooks: memory ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.findByClaimLocked(claimID)
	if entry == nil {
		return fmt.Errorf("webhooks: claim %q not found", claimID)
	}
	entry.record.Status = DeliveryStatusProcessed
	entry.record.NextAttemptAt = nil
	entry.record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryLedger) Fail(
	_ context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if l == nil {
		return fmt.Errorf("webhooks: memory ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.findByClaimLocked(claimID)
	if entry == nil {
		return fmt.Errorf("webhooks: claim %q not found", claimID)
	}
	if cause != nil {
		entry.lastErr = cause.Error()
	}
	if maxAttempts > 0 && entry.record.Attempts >= maxAttempts {
		entry.record.Status = DeliveryStatusDead
		entry.record.NextAttemptAt = nil
	} else {
		next := nextAttemptAt.UTC()
		entry.record.Status = DeliveryStatusRetryReady
		entry.record.NextAttemptAt = &next
	}
	entry.record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryLedger) findByClaimLocked(claimID string) *memoryLedgerEntry {
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return nil
	}
	for _, entry := range l.entries {
		if entry.record.ClaimID == claimID {
			return entry
		}
	}
	return nil
}

func (l *MemoryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

var _ DeliveryLedger = (*MemoryLedger)(nil)
