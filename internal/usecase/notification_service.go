package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tradeyard/dealops/internal/domain/negotiation"
	"github.com/tradeyard/dealops/internal/domain/notification"
	idgen "github.com/tradeyard/dealops/internal/platform/id"
	"github.com/tradeyard/dealops/internal/platform/logging"
)

// SubscribeHandler receives live envelopes. Delivery to subscribers is best
// effort; the persisted row is the durable record.
type SubscribeHandler func(ctx context.Context, n notification.Notification)

type liveSubscriber struct {
	id       int
	channels map[string]struct{}
	handler  SubscribeHandler
}

// NotificationService is the durable envelope store plus the in-process
// pub/sub fan-out for same-process listeners.
type NotificationService struct {
	repo            notification.Repository
	negotiationRepo negotiation.Repository
	transports      *TransportRegistry
	idGen           idgen.Generator
	logger          *logging.Logger
	now             func() time.Time

	mu          sync.RWMutex
	subscribers map[int]*liveSubscriber
	nextSubID   int
}

func NewNotificationService(
	repo notification.Repository,
	negotiationRepo negotiation.Repository,
	transports *TransportRegistry,
	idGen idgen.Generator,
	logger *logging.Logger,
) *NotificationService {
	if transports == nil {
		transports = NewTransportRegistry()
	}
	if idGen == nil {
		idGen = idgen.NewRandomGenerator()
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &NotificationService{
		repo:            repo,
		negotiationRepo: negotiationRepo,
		transports:      transports,
		idGen:           idGen,
		logger:          logger,
		now:             time.Now,
		subscribers:     make(map[int]*liveSubscriber),
	}
}

type PublishInput struct {
	NegotiationID string
	Type          string
	Audience      notification.Audience
	Status        string
	TriggeredByID string
	OccurredAt    time.Time
	Payload       map[string]any
	Channels      []string
}

// Publish persists the envelope as PENDING and fans it out to live
// subscribers matching a channel or the wildcard.
func (s *NotificationService) Publish(ctx context.Context, input PublishInput) (notification.Notification, error) {
	eventType := strings.TrimSpace(input.Type)
	if eventType == "" {
		return notification.Notification{}, fmt.Errorf("%w: notification type is required", ErrInvalidInput)
	}

	notificationID, err := s.idGen.NewID()
	if err != nil {
		return notification.Notification{}, fmt.Errorf("generate notification id: %w", err)
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now().UTC()
	}

	n := notification.Notification{
		ID:             notificationID,
		NegotiationID:  strings.TrimSpace(input.NegotiationID),
		Type:           eventType,
		Audience:       input.Audience,
		Status:         strings.TrimSpace(input.Status),
		TriggeredByID:  strings.TrimSpace(input.TriggeredByID),
		OccurredAt:     occurredAt,
		Payload:        input.Payload,
		Channels:       normalizeChannels(input.Channels),
		DeliveryStatus: notification.DeliveryPending,
	}

	created, err := s.repo.Create(ctx, n)
	if err != nil {
		return notification.Notification{}, fmt.Errorf("persist notification: %w", err)
	}

	s.fanOutLive(ctx, created)

	return created, nil
}

// PublishNegotiationEvent is the lifecycle façade every producer calls; it
// satisfies EventPublisher.
func (s *NotificationService) PublishNegotiationEvent(ctx context.Context, envelope EventEnvelope) error {
	_, err := s.Publish(ctx, PublishInput{
		NegotiationID: envelope.NegotiationID,
		Type:          envelope.Type,
		Audience:      envelope.Audience,
		Status:        envelope.Status,
		TriggeredByID: envelope.TriggeredByID,
		Payload:       envelope.Payload,
		Channels:      envelope.Channels,
	})
	return err
}

// Subscription is a live registration handle.
type Subscription struct {
	id  int
	svc *NotificationService
}

func (sub *Subscription) Unsubscribe() {
	if sub == nil || sub.svc == nil {
		return
	}
	sub.svc.mu.Lock()
	delete(sub.svc.subscribers, sub.id)
	sub.svc.mu.Unlock()
}

// Subscribe registers a handler for the given channels; no channels means
// the wildcard.
func (s *NotificationService) Subscribe(handler SubscribeHandler, channels ...string) *Subscription {
	if handler == nil {
		return &Subscription{}
	}

	normalized := normalizeChannels(channels)
	channelSet := make(map[string]struct{}, len(normalized))
	for _, ch := range normalized {
		channelSet[ch] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	sub := &liveSubscriber{id: s.nextSubID, channels: channelSet, handler: handler}
	s.subscribers[sub.id] = sub

	return &Subscription{id: sub.id, svc: s}
}

func (s *NotificationService) fanOutLive(ctx context.Context, n notification.Notification) {
	s.mu.RLock()
	matched := make([]*liveSubscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		if subscriberMatches(sub, n) {
			matched = append(matched, sub)
		}
	}
	s.mu.RUnlock()

	for _, sub := range matched {
		s.invokeSubscriber(ctx, sub, n)
	}
}

func (s *NotificationService) invokeSubscriber(ctx context.Context, sub *liveSubscriber, n notification.Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.WarnContext(ctx, "live subscriber panicked", "notification_id", n.ID, "panic", rec)
		}
	}()
	sub.handler(ctx, n)
}

func subscriberMatches(sub *liveSubscriber, n notification.Notification) bool {
	if _, ok := sub.channels[notification.WildcardChannel]; ok {
		return true
	}
	for _, ch := range n.Channels {
		if ch == notification.WildcardChannel {
			return true
		}
		if _, ok := sub.channels[ch]; ok {
			return true
		}
	}
	return false
}

// ListNegotiationNotifications filters the store and applies viewer access
// scoping: admins see everything, participants and channel targets see their
// own rows, and ADMIN-audience rows never reach non-admins.
func (s *NotificationService) ListNegotiationNotifications(ctx context.Context, q notification.Query, viewer *notification.Viewer) ([]notification.Notification, error) {
	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if viewer == nil || viewer.IsAdmin {
		return rows, nil
	}

	participants := make(map[string]bool)
	out := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		ok, err := s.viewerCanAccess(ctx, row, *viewer, participants)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}

	return out, nil
}

// GetPendingNegotiationNotifications selects retryable rows oldest first.
// Only PENDING rows and FAILED rows whose error is NO_TRANSPORT_REGISTERED
// qualify; genuinely failed deliveries stay put.
func (s *NotificationService) GetPendingNegotiationNotifications(ctx context.Context, limit int) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = fanoutBatchLimit
	}
	rows, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	return rows, nil
}

// RecordNotificationAttempt bumps the attempt counter and stores the
// delivery outcome. DeliveredAt is stamped only on DELIVERED.
func (s *NotificationService) RecordNotificationAttempt(ctx context.Context, notificationID string, status notification.DeliveryStatus, deliveryErr string) (notification.Notification, error) {
	n, exists, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return notification.Notification{}, fmt.Errorf("get notification %s: %w", notificationID, err)
	}
	if !exists {
		return notification.Notification{}, fmt.Errorf("%w: notification=%s", ErrNotFound, notificationID)
	}

	now := s.now().UTC()
	n.DeliveryAttempts++
	n.LastAttemptAt = &now
	n.DeliveryStatus = status
	if status == notification.DeliveryDelivered {
		n.DeliveredAt = &now
		n.DeliveryError = ""
	} else {
		n.DeliveryError = strings.TrimSpace(deliveryErr)
	}

	if err := s.repo.Update(ctx, n); err != nil {
		return notification.Notification{}, fmt.Errorf("update notification %s: %w", notificationID, err)
	}

	return n, nil
}

// AcknowledgeNegotiationNotifications bulk-marks the accessible subset of
// ids as DELIVERED. Inaccessible or unknown ids are silently dropped; the
// count of acknowledged rows is returned.
func (s *NotificationService) AcknowledgeNegotiationNotifications(ctx context.Context, ids []string, viewer *notification.Viewer) (int, error) {
	participants := make(map[string]bool)
	acknowledged := 0

	for _, rawID := range ids {
		notificationID := strings.TrimSpace(rawID)
		if notificationID == "" {
			continue
		}

		n, exists, err := s.repo.GetByID(ctx, notificationID)
		if err != nil {
			return acknowledged, fmt.Errorf("get notification %s: %w", notificationID, err)
		}
		if !exists {
			continue
		}

		if viewer != nil && !viewer.IsAdmin {
			ok, err := s.viewerCanAccess(ctx, n, *viewer, participants)
			if err != nil {
				return acknowledged, err
			}
			if !ok {
				continue
			}
		}

		now := s.now().UTC()
		n.DeliveryStatus = notification.DeliveryDelivered
		if n.DeliveredAt == nil {
			n.DeliveredAt = &now
		}
		n.DeliveryError = ""
		if err := s.repo.Update(ctx, n); err != nil {
			return acknowledged, fmt.Errorf("acknowledge notification %s: %w", notificationID, err)
		}
		acknowledged++
	}

	return acknowledged, nil
}

func (s *NotificationService) viewerCanAccess(ctx context.Context, n notification.Notification, viewer notification.Viewer, participants map[string]bool) (bool, error) {
	if n.Audience == notification.AudienceAdmin {
		return false, nil
	}

	userChannel := "user:" + viewer.UserID
	for _, ch := range n.Channels {
		if ch == userChannel {
			return true, nil
		}
	}

	if n.NegotiationID == "" || viewer.UserID == "" {
		return false, nil
	}
	if isParticipant, checked := participants[n.NegotiationID]; checked {
		return isParticipant, nil
	}

	neg, exists, err := s.negotiationRepo.GetByID(ctx, n.NegotiationID)
	if err != nil {
		return false, fmt.Errorf("get negotiation %s: %w", n.NegotiationID, err)
	}
	isParticipant := exists && (neg.BuyerUserID == viewer.UserID || neg.SellerUserID == viewer.UserID)
	participants[n.NegotiationID] = isParticipant

	return isParticipant, nil
}

func normalizeChannels(channels []string) []string {
	out := make([]string, 0, len(channels))
	seen := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	if len(out) == 0 {
		return []string{notification.WildcardChannel}
	}
	return out
}
