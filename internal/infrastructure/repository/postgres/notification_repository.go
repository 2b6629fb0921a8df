package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tradeyard/dealops/internal/domain/notification"
	qb "github.com/tradeyard/dealops/internal/platform/querybuilder"
)

type notificationTableModel struct {
	ID               string         `db:"id"`
	NegotiationID    *string        `db:"negotiation_id"`
	EventType        string         `db:"event_type"`
	Audience         string         `db:"audience"`
	Status           *string        `db:"status"`
	TriggeredByID    *string        `db:"triggered_by_id"`
	OccurredAt       time.Time      `db:"occurred_at"`
	Payload          []byte         `db:"payload"`
	Channels         pq.StringArray `db:"channels"`
	DeliveryStatus   string         `db:"delivery_status"`
	DeliveryAttempts int            `db:"delivery_attempts"`
	LastAttemptAt    *time.Time     `db:"last_attempt_at"`
	DeliveredAt      *time.Time     `db:"delivered_at"`
	DeliveryError    *string        `db:"delivery_error"`
}

func (m notificationTableModel) toDomain() (notification.Notification, error) {
	payload, err := unmarshalMetadata(m.Payload)
	if err != nil {
		return notification.Notification{}, err
	}

	return notification.Notification{
		ID:               m.ID,
		NegotiationID:    stringValue(m.NegotiationID),
		Type:             m.EventType,
		Audience:         notification.Audience(m.Audience),
		Status:           stringValue(m.Status),
		TriggeredByID:    stringValue(m.TriggeredByID),
		OccurredAt:       m.OccurredAt,
		Payload:          payload,
		Channels:         []string(m.Channels),
		DeliveryStatus:   notification.DeliveryStatus(m.DeliveryStatus),
		DeliveryAttempts: m.DeliveryAttempts,
		LastAttemptAt:    m.LastAttemptAt,
		DeliveredAt:      m.DeliveredAt,
		DeliveryError:    stringValue(m.DeliveryError),
	}, nil
}

type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	payload, err := marshalMetadata(n.Payload)
	if err != nil {
		return notification.Notification{}, err
	}

	query, args, err := qb.InsertInto("notifications").
		Columns("id", "negotiation_id", "event_type", "audience", "status", "triggered_by_id",
			"occurred_at", "payload", "channels", "delivery_status", "delivery_attempts", "last_attempt_at", "delivered_at", "delivery_error").
		Values(n.ID, nullString(n.NegotiationID), n.Type, string(n.Audience), nullString(n.Status), nullString(n.TriggeredByID),
			n.OccurredAt, payload, pq.StringArray(n.Channels), string(n.DeliveryStatus), n.DeliveryAttempts, n.LastAttemptAt, n.DeliveredAt, nullString(n.DeliveryError)).
		Suffix("RETURNING *").
		ToSQL()
	if err != nil {
		return notification.Notification{}, fmt.Errorf("build insert notification query: %w", err)
	}

	var row notificationTableModel
	if err := resolveExecutor(ctx, r.db).GetContext(ctx, &row, query, args...); err != nil {
		return notification.Notification{}, fmt.Errorf("insert notification: %w", err)
	}

	return row.toDomain()
}

func (r *NotificationRepository) GetByID(ctx context.Context, id string) (notification.Notification, bool, error) {
	query, args, err := qb.Select("*").From("notifications").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return notification.Notification{}, false, fmt.Errorf("build get notification query: %w", err)
	}

	var row notificationTableModel
	if err := resolveExecutor(ctx, r.db).GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return notification.Notification{}, false, nil
		}
		return notification.Notification{}, false, fmt.Errorf("get notification: %w", err)
	}

	n, err := row.toDomain()
	if err != nil {
		return notification.Notification{}, false, err
	}
	return n, true, nil
}

func (r *NotificationRepository) List(ctx context.Context, q notification.Query) ([]notification.Notification, error) {
	builder := qb.Select("*").From("notifications")

	conditions := make([]qb.Condition, 0, 5)
	if q.NegotiationID != "" {
		conditions = append(conditions, qb.Eq("negotiation_id", q.NegotiationID))
	}
	if q.Audience != "" {
		conditions = append(conditions, qb.Eq("audience", string(q.Audience)))
	}
	if q.DeliveryStatus != "" {
		conditions = append(conditions, qb.Eq("delivery_status", string(q.DeliveryStatus)))
	}
	if q.Since != nil {
		conditions = append(conditions, qb.Gte("occurred_at", *q.Since))
	}
	if q.UserID != "" {
		conditions = append(conditions, qb.Expr("channels @> ARRAY[?]::text[]", "user:"+q.UserID))
	}
	if len(conditions) > 0 {
		builder = builder.Where(conditions...)
	}

	query, args, err := builder.
		OrderBy("occurred_at DESC").
		Limit(q.Limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list notifications query: %w", err)
	}

	var rows []notificationTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	return mapNotificationRows(rows)
}

func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]notification.Notification, error) {
	query, args, err := qb.Select("*").From("notifications").
		Where(
			qb.Lt("delivery_attempts", notification.MaxDeliveryAttempts),
			qb.Expr("(delivery_status = ? OR (delivery_status = ? AND delivery_error = ?))",
				string(notification.DeliveryPending),
				string(notification.DeliveryFailed),
				notification.ErrCodeNoTransport,
			),
		).
		OrderBy("occurred_at ASC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list pending query: %w", err)
	}

	var rows []notificationTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}

	return mapNotificationRows(rows)
}

func (r *NotificationRepository) Update(ctx context.Context, n notification.Notification) error {
	query, args, err := qb.Update("notifications").
		Set("delivery_status", string(n.DeliveryStatus)).
		Set("delivery_attempts", n.DeliveryAttempts).
		Set("last_attempt_at", n.LastAttemptAt).
		Set("delivered_at", n.DeliveredAt).
		Set("delivery_error", nullString(n.DeliveryError)).
		Where(qb.Eq("id", n.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update notification query: %w", err)
	}

	if _, err := resolveExecutor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) LatestByType(ctx context.Context, negotiationID, notificationType string) (notification.Notification, bool, error) {
	query, args, err := qb.Select("*").From("notifications").
		Where(
			qb.Eq("negotiation_id", negotiationID),
			qb.Eq("event_type", notificationType),
		).
		OrderBy("occurred_at DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return notification.Notification{}, false, fmt.Errorf("build latest by type query: %w", err)
	}

	var row notificationTableModel
	if err := resolveExecutor(ctx, r.db).GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return notification.Notification{}, false, nil
		}
		return notification.Notification{}, false, fmt.Errorf("get latest notification: %w", err)
	}

	n, err := row.toDomain()
	if err != nil {
		return notification.Notification{}, false, err
	}
	return n, true, nil
}

func mapNotificationRows(rows []notificationTableModel) ([]notification.Notification, error) {
	out := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
