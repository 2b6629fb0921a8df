package postgres

import (
	"time"

	"github.com/tradeyard/dealops/internal/domain/dispute"
)

type disputeTableModel struct {
	ID                     string     `db:"id"`
	NegotiationID          string     `db:"negotiation_id"`
	Status                 string     `db:"status"`
	Severity               string     `db:"severity"`
	Category               *string    `db:"category"`
	Summary                string     `db:"summary"`
	RaisedByUserID         string     `db:"raised_by_user_id"`
	AssignedToUserID       *string    `db:"assigned_to_user_id"`
	RaisedAt               time.Time  `db:"raised_at"`
	SlaDueAt               time.Time  `db:"sla_due_at"`
	SlaBreachedAt          *time.Time `db:"sla_breached_at"`
	AcknowledgedAt         *time.Time `db:"acknowledged_at"`
	EscalatedAt            *time.Time `db:"escalated_at"`
	ResolvedAt             *time.Time `db:"resolved_at"`
	ClosedAt               *time.Time `db:"closed_at"`
	HoldAmount             float64    `db:"hold_amount"`
	CounterProposalAmount  float64    `db:"counter_proposal_amount"`
	ResolutionPayoutAmount float64    `db:"resolution_payout_amount"`
	CreatedAt              time.Time  `db:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at"`
}

func (m disputeTableModel) toDomain() dispute.DealDispute {
	return dispute.DealDispute{
		ID:                     m.ID,
		NegotiationID:          m.NegotiationID,
		Status:                 dispute.Status(m.Status),
		Severity:               dispute.Severity(m.Severity),
		Category:               stringValue(m.Category),
		Summary:                m.Summary,
		RaisedByUserID:         m.RaisedByUserID,
		AssignedToUserID:       stringValue(m.AssignedToUserID),
		RaisedAt:               m.RaisedAt,
		SlaDueAt:               m.SlaDueAt,
		SlaBreachedAt:          m.SlaBreachedAt,
		AcknowledgedAt:         m.AcknowledgedAt,
		EscalatedAt:            m.EscalatedAt,
		ResolvedAt:             m.ResolvedAt,
		ClosedAt:               m.ClosedAt,
		HoldAmount:             m.HoldAmount,
		CounterProposalAmount:  m.CounterProposalAmount,
		ResolutionPayoutAmount: m.ResolutionPayoutAmount,
	}
}

type disputeEventTableModel struct {
	ID          string    `db:"id"`
	DisputeID   string    `db:"dispute_id"`
	EventType   string    `db:"event_type"`
	Status      string    `db:"status"`
	Message     *string   `db:"message"`
	ActorUserID *string   `db:"actor_user_id"`
	Metadata    []byte    `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
}

func (m disputeEventTableModel) toDomain() (dispute.Event, error) {
	metadata, err := unmarshalMetadata(m.Metadata)
	if err != nil {
		return dispute.Event{}, err
	}

	return dispute.Event{
		ID:          m.ID,
		DisputeID:   m.DisputeID,
		Type:        dispute.EventType(m.EventType),
		Status:      dispute.Status(m.Status),
		Message:     stringValue(m.Message),
		ActorUserID: stringValue(m.ActorUserID),
		Metadata:    metadata,
		CreatedAt:   m.CreatedAt,
	}, nil
}

type disputeEvidenceTableModel struct {
	ID           string    `db:"id"`
	DisputeID    string    `db:"dispute_id"`
	EvidenceType *string   `db:"evidence_type"`
	URL          string    `db:"url"`
	Label        *string   `db:"label"`
	UploadedAt   time.Time `db:"uploaded_at"`
}

func (m disputeEvidenceTableModel) toDomain() dispute.Evidence {
	return dispute.Evidence{
		ID:         m.ID,
		DisputeID:  m.DisputeID,
		Type:       stringValue(m.EvidenceType),
		URL:        m.URL,
		Label:      stringValue(m.Label),
		UploadedAt: m.UploadedAt,
	}
}
