package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/tradeyard/dealops/internal/domain/notification"
)

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListNotifications")
	defer span.End()

	viewer, err := viewerFromRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	query := notification.Query{
		NegotiationID:  strings.TrimSpace(r.URL.Query().Get("negotiation_id")),
		Audience:       notification.Audience(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("audience")))),
		DeliveryStatus: notification.DeliveryStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("delivery_status")))),
		Limit:          queryInt(r, "limit", 0),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		since, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr == nil {
			query.Since = &since
		}
	}

	items, err := h.notificationService.ListNegotiationNotifications(ctx, query, viewer)
	if err != nil {
		h.logger.WarnContext(ctx, "list notifications failed", "user_id", viewer.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	out := make([]notificationDTO, 0, len(items))
	for _, n := range items {
		out = append(out, notificationToDTO(n))
	}

	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) AcknowledgeNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AcknowledgeNotifications")
	defer span.End()

	viewer, err := viewerFromRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req acknowledgeNotificationsRequest
	if err := decodeBody(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	acknowledged, err := h.notificationService.AcknowledgeNegotiationNotifications(ctx, req.NotificationIDs, viewer)
	if err != nil {
		h.logger.WarnContext(ctx, "acknowledge notifications failed", "user_id", viewer.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]int{"acknowledged": acknowledged})
}

type acknowledgeNotificationsRequest struct {
	NotificationIDs []string `json:"notification_ids" validate:"required,min=1,dive,required"`
}

type notificationDTO struct {
	ID               string         `json:"id"`
	NegotiationID    string         `json:"negotiationId,omitempty"`
	Type             string         `json:"type"`
	Audience         string         `json:"audience"`
	Status           string         `json:"status,omitempty"`
	TriggeredByID    string         `json:"triggeredById,omitempty"`
	OccurredAt       string         `json:"occurredAt"`
	Payload          map[string]any `json:"payload,omitempty"`
	Channels         []string       `json:"channels"`
	DeliveryStatus   string         `json:"deliveryStatus"`
	DeliveryAttempts int            `json:"deliveryAttempts"`
	LastAttemptAt    string         `json:"lastAttemptAt,omitempty"`
	DeliveredAt      string         `json:"deliveredAt,omitempty"`
	DeliveryError    string         `json:"deliveryError,omitempty"`
}

func notificationToDTO(v notification.Notification) notificationDTO {
	return notificationDTO{
		ID:               v.ID,
		NegotiationID:    v.NegotiationID,
		Type:             v.Type,
		Audience:         string(v.Audience),
		Status:           v.Status,
		TriggeredByID:    v.TriggeredByID,
		OccurredAt:       v.OccurredAt.UTC().Format(time.RFC3339),
		Payload:          v.Payload,
		Channels:         append([]string(nil), v.Channels...),
		DeliveryStatus:   string(v.DeliveryStatus),
		DeliveryAttempts: v.DeliveryAttempts,
		LastAttemptAt:    formatOptionalTime(v.LastAttemptAt),
		DeliveredAt:      formatOptionalTime(v.DeliveredAt),
		DeliveryError:    v.DeliveryError,
	}
}
