package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/tradeyard/dealops/internal/domain/dispute"
	"github.com/tradeyard/dealops/internal/usecase"
)

func (h *Handler) CreateDispute(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateDispute")
	defer span.End()

	var req createDisputeRequest
	if err := decodeBody(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	attachments := make([]usecase.EvidenceInput, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, usecase.EvidenceInput{
			Type:  a.Type,
			URL:   a.URL,
			Label: a.Label,
		})
	}

	created, err := h.disputeService.CreateDealDispute(ctx, usecase.CreateDisputeInput{
		NegotiationID:  req.NegotiationID,
		RaisedByUserID: req.RaisedByUserID,
		Summary:        req.Summary,
		Category:       req.Category,
		Severity:       dispute.Severity(strings.ToUpper(strings.TrimSpace(req.Severity))),
		Attachments:    attachments,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create dispute failed", "negotiation_id", req.NegotiationID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, disputeToDTO(created))
}

func (h *Handler) TransitionDispute(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.TransitionDispute")
	defer span.End()

	disputeID := strings.TrimSpace(r.PathValue("disputeID"))
	var req transitionDisputeRequest
	if err := decodeBody(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	target := dispute.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
	updated, err := h.disputeService.TransitionDealDisputeStatus(ctx, disputeID, target, req.ActorUserID, req.Note)
	if err != nil {
		h.logger.WarnContext(ctx, "dispute transition failed", "dispute_id", disputeID, "target", target, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, disputeToDTO(updated))
}

func (h *Handler) AssignDispute(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AssignDispute")
	defer span.End()

	disputeID := strings.TrimSpace(r.PathValue("disputeID"))
	var req assignDisputeRequest
	if err := decodeBody(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	updated, err := h.disputeService.AssignDealDispute(ctx, disputeID, req.AssigneeUserID, req.ActorUserID)
	if err != nil {
		h.logger.WarnContext(ctx, "dispute assignment failed", "dispute_id", disputeID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, disputeToDTO(updated))
}

func (h *Handler) ApplyEscrowHold(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ApplyEscrowHold")
	defer span.End()

	disputeID := strings.TrimSpace(r.PathValue("disputeID"))
	var req escrowHoldRequest
	if err := decodeBody(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	updated, err := h.disputeService.ApplyDisputeEscrowHold(ctx, disputeID, req.Amount, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "escrow hold failed", "dispute_id", disputeID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, disputeToDTO(updated))
}

func (h *Handler) RecordCounterProposal(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RecordCounterProposal")
	defer span.End()

	disputeID := strings.TrimSpace(r.PathValue("disputeID"))
	var req counterProposalRequest
	if err := decodeBody(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	updated, err := h.disputeService.RecordDisputeCounterProposal(ctx, disputeID, req.Amount, req.Note)
	if err != nil {
		h.logger.WarnContext(ctx, "counter proposal failed", "dispute_id", disputeID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, disputeToDTO(updated))
}

func (h *Handler) SettleEscrowPayout(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SettleEscrowPayout")
	defer span.End()

	disputeID := strings.TrimSpace(r.PathValue("disputeID"))
	var req escrowPayoutRequest
	if err := decodeBody(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	direction := usecase.PayoutDirection(strings.ToUpper(strings.TrimSpace(req.Direction)))
	updated, err := h.disputeService.SettleDisputeEscrowPayout(ctx, disputeID, req.Amount, direction, req.Note)
	if err != nil {
		h.logger.WarnContext(ctx, "escrow payout failed", "dispute_id", disputeID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, disputeToDTO(updated))
}

func (h *Handler) GetDisputeQueue(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetDisputeQueue")
	defer span.End()

	limit := queryInt(r, "limit", 0)
	entries, err := h.disputeService.GetDealDisputeQueue(ctx, limit)
	if err != nil {
		h.logger.WarnContext(ctx, "dispute queue failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]disputeQueueEntryDTO, 0, len(entries))
	for _, entry := range entries {
		items = append(items, disputeQueueEntryToDTO(entry))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetDisputeAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetDisputeAnalytics")
	defer span.End()

	limit := queryInt(r, "limit", 0)
	snapshot, err := h.disputeService.GetDisputeAnalytics(ctx, limit)
	if err != nil {
		h.logger.WarnContext(ctx, "dispute analytics failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	byStatus := make(map[string]int, len(snapshot.ByStatus))
	for status, count := range snapshot.ByStatus {
		byStatus[string(status)] = count
	}
	bySeverity := make(map[string]int, len(snapshot.BySeverity))
	for severity, count := range snapshot.BySeverity {
		bySeverity[string(severity)] = count
	}

	writeSuccess(ctx, w, http.StatusOK, disputeAnalyticsDTO{
		Total:                snapshot.Total,
		ByStatus:             byStatus,
		BySeverity:           bySeverity,
		BreachedCount:        snapshot.BreachedCount,
		MissingEvidenceCount: snapshot.MissingEvidenceCount,
		AvgResolutionHours:   snapshot.AvgResolutionHours,
	})
}

type evidenceAttachmentRequest struct {
	Type  string `json:"type" validate:"omitempty,max=40"`
	URL   string `json:"url" validate:"required,max=500"`
	Label string `json:"label" validate:"omitempty,max=200"`
}

type createDisputeRequest struct {
	NegotiationID  string                      `json:"negotiation_id" validate:"required"`
	RaisedByUserID string                      `json:"raised_by_user_id" validate:"required"`
	Summary        string                      `json:"summary" validate:"required,max=2000"`
	Category       string                      `json:"category" validate:"omitempty,max=80"`
	Severity       string                      `json:"severity" validate:"omitempty,max=20"`
	Attachments    []evidenceAttachmentRequest `json:"attachments" validate:"omitempty,dive"`
}

type transitionDisputeRequest struct {
	Status      string `json:"status" validate:"required,max=40"`
	ActorUserID string `json:"actor_user_id" validate:"required"`
	Note        string `json:"note" validate:"omitempty,max=2000"`
}

type assignDisputeRequest struct {
	AssigneeUserID string `json:"assignee_user_id"`
	ActorUserID    string `json:"actor_user_id" validate:"required"`
}

type escrowHoldRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Reason string  `json:"reason" validate:"omitempty,max=2000"`
}

type counterProposalRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Note   string  `json:"note" validate:"omitempty,max=2000"`
}

type escrowPayoutRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Direction string  `json:"direction" validate:"required,max=40"`
	Note      string  `json:"note" validate:"omitempty,max=2000"`
}

type disputeDTO struct {
	ID                     string  `json:"id"`
	NegotiationID          string  `json:"negotiationId"`
	Status                 string  `json:"status"`
	Severity               string  `json:"severity"`
	Category               string  `json:"category,omitempty"`
	Summary                string  `json:"summary"`
	RaisedByUserID         string  `json:"raisedByUserId"`
	AssignedToUserID       string  `json:"assignedToUserId,omitempty"`
	RaisedAt               string  `json:"raisedAt"`
	SlaDueAt               string  `json:"slaDueAt"`
	SlaBreachedAt          string  `json:"slaBreachedAt,omitempty"`
	AcknowledgedAt         string  `json:"acknowledgedAt,omitempty"`
	EscalatedAt            string  `json:"escalatedAt,omitempty"`
	ResolvedAt             string  `json:"resolvedAt,omitempty"`
	ClosedAt               string  `json:"closedAt,omitempty"`
	HoldAmount             float64 `json:"holdAmount"`
	CounterProposalAmount  float64 `json:"counterProposalAmount"`
	ResolutionPayoutAmount float64 `json:"resolutionPayoutAmount"`
}

type disputeInsightDTO struct {
	OpenHours         float64  `json:"openHours"`
	HoursUntilBreach  *float64 `json:"hoursUntilBreach,omitempty"`
	HoursSinceBreach  *float64 `json:"hoursSinceBreach,omitempty"`
	HoursToResolution *float64 `json:"hoursToResolution,omitempty"`
	ReopenedCount     int      `json:"reopenedCount"`
	MissingEvidence   bool     `json:"missingEvidence"`
}

type disputeQueueEntryDTO struct {
	Dispute        disputeDTO        `json:"dispute"`
	Insight        disputeInsightDTO `json:"insight"`
	Recommendation string            `json:"recommendation"`
}

type disputeAnalyticsDTO struct {
	Total                int            `json:"total"`
	ByStatus             map[string]int `json:"byStatus"`
	BySeverity           map[string]int `json:"bySeverity"`
	BreachedCount        int            `json:"breachedCount"`
	MissingEvidenceCount int            `json:"missingEvidenceCount"`
	AvgResolutionHours   float64        `json:"avgResolutionHours"`
}

func disputeToDTO(v dispute.DealDispute) disputeDTO {
	return disputeDTO{
		ID:                     v.ID,
		NegotiationID:          v.NegotiationID,
		Status:                 string(v.Status),
		Severity:               string(v.Severity),
		Category:               v.Category,
		Summary:                v.Summary,
		RaisedByUserID:         v.RaisedByUserID,
		AssignedToUserID:       v.AssignedToUserID,
		RaisedAt:               v.RaisedAt.UTC().Format(time.RFC3339),
		SlaDueAt:               v.SlaDueAt.UTC().Format(time.RFC3339),
		SlaBreachedAt:          formatOptionalTime(v.SlaBreachedAt),
		AcknowledgedAt:         formatOptionalTime(v.AcknowledgedAt),
		EscalatedAt:            formatOptionalTime(v.EscalatedAt),
		ResolvedAt:             formatOptionalTime(v.ResolvedAt),
		ClosedAt:               formatOptionalTime(v.ClosedAt),
		HoldAmount:             v.HoldAmount,
		CounterProposalAmount:  v.CounterProposalAmount,
		ResolutionPayoutAmount: v.ResolutionPayoutAmount,
	}
}

func disputeQueueEntryToDTO(entry usecase.DisputeQueueEntry) disputeQueueEntryDTO {
	return disputeQueueEntryDTO{
		Dispute: disputeToDTO(entry.Dispute),
		Insight: disputeInsightDTO{
			OpenHours:         entry.Insight.OpenHours,
			HoursUntilBreach:  entry.Insight.HoursUntilBreach,
			HoursSinceBreach:  entry.Insight.HoursSinceBreach,
			HoursToResolution: entry.Insight.HoursToResolution,
			ReopenedCount:     entry.Insight.ReopenedCount,
			MissingEvidence:   entry.Insight.MissingEvidence,
		},
		Recommendation: string(entry.Recommendation),
	}
}
