package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tradeyard/dealops/internal/domain/notification"
	"github.com/tradeyard/dealops/internal/infrastructure/repository/memory"
	"github.com/tradeyard/dealops/internal/platform/logging"
)

type stubTransport struct {
	name     string
	supports func(notification.Notification) bool
	err      error

	mu        sync.Mutex
	delivered []string
}

func (t *stubTransport) Name() string { return t.name }

func (t *stubTransport) Supports(n notification.Notification) bool {
	if t.supports == nil {
		return true
	}
	return t.supports(n)
}

func (t *stubTransport) Deliver(_ context.Context, n notification.Notification) error {
	if t.err != nil {
		return t.err
	}
	t.mu.Lock()
	t.delivered = append(t.delivered, n.ID)
	t.mu.Unlock()
	return nil
}

func TestNotificationService_RunNotificationFanout_NoTransportThenRecovery(t *testing.T) {
	repo := memory.NewNotificationRepository()
	negotiationRepo := memory.NewNegotiationRepository(memory.SeedNegotiations())
	registry := NewTransportRegistry()
	svc := NewNotificationService(repo, negotiationRepo, registry, &seqIDGenerator{prefix: "ntf"}, logging.NewNop())

	n, err := svc.Publish(t.Context(), PublishInput{
		NegotiationID: memory.NegotiationIDOakDesk,
		Type:          notification.TypeSlaWarning,
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	// Empty registry: the sweep fails everything fast but keeps it retryable.
	result, err := svc.RunNotificationFanout(t.Context(), 0)
	if err != nil {
		t.Fatalf("fanout failed: %v", err)
	}
	if result.Picked != 1 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	stored, _, _ := repo.GetByID(t.Context(), n.ID)
	if stored.DeliveryStatus != notification.DeliveryFailed {
		t.Fatalf("expected FAILED, got %s", stored.DeliveryStatus)
	}
	if stored.DeliveryError != notification.ErrCodeNoTransport {
		t.Fatalf("expected %s, got %q", notification.ErrCodeNoTransport, stored.DeliveryError)
	}
	if stored.DeliveryAttempts != 1 {
		t.Fatalf("expected one attempt, got %d", stored.DeliveryAttempts)
	}

	// Once a transport registers, the same row is picked up and delivered.
	transport := &stubTransport{name: "webhook"}
	registry.Register(transport)

	result, err = svc.RunNotificationFanout(t.Context(), 0)
	if err != nil {
		t.Fatalf("second fanout failed: %v", err)
	}
	if result.Delivered != 1 {
		t.Fatalf("expected delivery, got %+v", result)
	}

	stored, _, _ = repo.GetByID(t.Context(), n.ID)
	if stored.DeliveryStatus != notification.DeliveryDelivered || stored.DeliveredAt == nil {
		t.Fatalf("expected DELIVERED, got %+v", stored)
	}
	if stored.DeliveryAttempts != 2 {
		t.Fatalf("expected two attempts, got %d", stored.DeliveryAttempts)
	}
}

func TestNotificationService_RunNotificationFanout_FirstSupportingTransportWins(t *testing.T) {
	repo := memory.NewNotificationRepository()
	negotiationRepo := memory.NewNegotiationRepository(memory.SeedNegotiations())

	email := &stubTransport{
		name:     "email",
		supports: func(n notification.Notification) bool { return strings.HasPrefix(n.Type, "SLA_") },
	}
	webhook := &stubTransport{name: "webhook"}
	registry := NewTransportRegistry(email, webhook)
	svc := NewNotificationService(repo, negotiationRepo, registry, &seqIDGenerator{prefix: "ntf"}, logging.NewNop())

	slaRow, err := svc.Publish(t.Context(), PublishInput{NegotiationID: "neg-1", Type: notification.TypeSlaWarning})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	disputeRow, err := svc.Publish(t.Context(), PublishInput{NegotiationID: "neg-1", Type: notification.TypeDisputeRaised})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	result, err := svc.RunNotificationFanout(t.Context(), 0)
	if err != nil {
		t.Fatalf("fanout failed: %v", err)
	}
	if result.Delivered != 2 {
		t.Fatalf("expected both delivered, got %+v", result)
	}

	if len(email.delivered) != 1 || email.delivered[0] != slaRow.ID {
		t.Fatalf("email transport should take the SLA row, got %v", email.delivered)
	}
	if len(webhook.delivered) != 1 || webhook.delivered[0] != disputeRow.ID {
		t.Fatalf("webhook should take the dispute row, got %v", webhook.delivered)
	}
}

func TestNotificationService_RunNotificationFanout_FallsThroughFailingTransport(t *testing.T) {
	repo := memory.NewNotificationRepository()
	negotiationRepo := memory.NewNegotiationRepository(nil)

	broken := &stubTransport{name: "email", err: errors.New("smtp down")}
	backup := &stubTransport{name: "webhook"}
	registry := NewTransportRegistry(broken, backup)
	svc := NewNotificationService(repo, negotiationRepo, registry, &seqIDGenerator{prefix: "ntf"}, logging.NewNop())

	n, err := svc.Publish(t.Context(), PublishInput{NegotiationID: "neg-1", Type: notification.TypeSlaWarning})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	result, err := svc.RunNotificationFanout(t.Context(), 0)
	if err != nil {
		t.Fatalf("fanout failed: %v", err)
	}
	if result.Delivered != 1 {
		t.Fatalf("expected backup delivery, got %+v", result)
	}
	if len(backup.delivered) != 1 || backup.delivered[0] != n.ID {
		t.Fatalf("expected backup to deliver, got %v", backup.delivered)
	}
}

func TestNotificationService_RunNotificationFanout_AttemptCapStopsRetries(t *testing.T) {
	repo := memory.NewNotificationRepository()
	negotiationRepo := memory.NewNegotiationRepository(nil)
	registry := NewTransportRegistry()
	svc := NewNotificationService(repo, negotiationRepo, registry, &seqIDGenerator{prefix: "ntf"}, logging.NewNop())

	if _, err := svc.Publish(t.Context(), PublishInput{NegotiationID: "neg-1", Type: notification.TypeSlaWarning}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	for i := 0; i < notification.MaxDeliveryAttempts; i++ {
		if _, err := svc.RunNotificationFanout(t.Context(), 0); err != nil {
			t.Fatalf("sweep %d failed: %v", i+1, err)
		}
	}

	result, err := svc.RunNotificationFanout(t.Context(), 0)
	if err != nil {
		t.Fatalf("final sweep failed: %v", err)
	}
	if result.Picked != 0 {
		t.Fatalf("exhausted row must not be picked again, got %+v", result)
	}
}
