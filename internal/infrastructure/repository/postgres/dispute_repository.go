package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tradeyard/dealops/internal/domain/dispute"
	qb "github.com/tradeyard/dealops/internal/platform/querybuilder"
)

var terminalDisputeStatuses = []any{
	string(dispute.StatusResolved),
	string(dispute.StatusClosed),
}

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) Create(ctx context.Context, d dispute.DealDispute) (dispute.DealDispute, error) {
	query, args, err := qb.InsertInto("deal_disputes").
		Columns("id", "negotiation_id", "status", "severity", "category", "summary", "raised_by_user_id",
			"assigned_to_user_id", "raised_at", "sla_due_at", "hold_amount", "counter_proposal_amount", "resolution_payout_amount").
		Values(d.ID, d.NegotiationID, string(d.Status), string(d.Severity), nullString(d.Category), d.Summary, d.RaisedByUserID,
			nullString(d.AssignedToUserID), d.RaisedAt, d.SlaDueAt, d.HoldAmount, d.CounterProposalAmount, d.ResolutionPayoutAmount).
		Suffix("RETURNING *").
		ToSQL()
	if err != nil {
		return dispute.DealDispute{}, fmt.Errorf("build insert dispute query: %w", err)
	}

	var row disputeTableModel
	if err := resolveExecutor(ctx, r.db).GetContext(ctx, &row, query, args...); err != nil {
		return dispute.DealDispute{}, fmt.Errorf("insert dispute: %w", err)
	}

	return row.toDomain(), nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, disputeID string) (dispute.DealDispute, bool, error) {
	query, args, err := qb.Select("*").From("deal_disputes").
		Where(qb.Eq("id", disputeID)).
		ToSQL()
	if err != nil {
		return dispute.DealDispute{}, false, fmt.Errorf("build get dispute query: %w", err)
	}

	var row disputeTableModel
	if err := resolveExecutor(ctx, r.db).GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return dispute.DealDispute{}, false, nil
		}
		return dispute.DealDispute{}, false, fmt.Errorf("get dispute: %w", err)
	}

	return row.toDomain(), true, nil
}

func (r *DisputeRepository) FindActiveByNegotiation(ctx context.Context, negotiationID string) (dispute.DealDispute, bool, error) {
	query, args, err := qb.Select("*").From("deal_disputes").
		Where(
			qb.Eq("negotiation_id", negotiationID),
			qb.Expr("status NOT IN (?, ?)", terminalDisputeStatuses...),
		).
		OrderBy("raised_at DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return dispute.DealDispute{}, false, fmt.Errorf("build find active dispute query: %w", err)
	}

	var row disputeTableModel
	if err := resolveExecutor(ctx, r.db).GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return dispute.DealDispute{}, false, nil
		}
		return dispute.DealDispute{}, false, fmt.Errorf("find active dispute: %w", err)
	}

	return row.toDomain(), true, nil
}

func (r *DisputeRepository) Update(ctx context.Context, d dispute.DealDispute) error {
	query, args, err := qb.Update("deal_disputes").
		Set("status", string(d.Status)).
		Set("severity", string(d.Severity)).
		Set("category", nullString(d.Category)).
		Set("assigned_to_user_id", nullString(d.AssignedToUserID)).
		Set("sla_due_at", d.SlaDueAt).
		Set("sla_breached_at", d.SlaBreachedAt).
		Set("acknowledged_at", d.AcknowledgedAt).
		Set("escalated_at", d.EscalatedAt).
		Set("resolved_at", d.ResolvedAt).
		Set("closed_at", d.ClosedAt).
		Set("hold_amount", d.HoldAmount).
		Set("counter_proposal_amount", d.CounterProposalAmount).
		Set("resolution_payout_amount", d.ResolutionPayoutAmount).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", d.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update dispute query: %w", err)
	}

	if _, err := resolveExecutor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update dispute: %w", err)
	}
	return nil
}

func (r *DisputeRepository) ListQueue(ctx context.Context, limit int) ([]dispute.DealDispute, error) {
	query, args, err := qb.Select("*").From("deal_disputes").
		Where(qb.Expr("status NOT IN (?, ?)", terminalDisputeStatuses...)).
		OrderBy("sla_due_at ASC", "raised_at ASC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list queue query: %w", err)
	}

	var rows []disputeTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list dispute queue: %w", err)
	}

	out := make([]dispute.DealDispute, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *DisputeRepository) ListSlaOverdue(ctx context.Context, ref time.Time) ([]dispute.DealDispute, error) {
	query, args, err := qb.Select("*").From("deal_disputes").
		Where(
			qb.Lt("sla_due_at", ref),
			qb.IsNull("sla_breached_at"),
			qb.Expr("status NOT IN (?, ?)", terminalDisputeStatuses...),
		).
		OrderBy("sla_due_at ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list overdue query: %w", err)
	}

	var rows []disputeTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list overdue disputes: %w", err)
	}

	out := make([]dispute.DealDispute, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *DisputeRepository) AppendEvent(ctx context.Context, event dispute.Event) error {
	metadata, err := marshalMetadata(event.Metadata)
	if err != nil {
		return err
	}

	query, args, err := qb.InsertInto("deal_dispute_events").
		Columns("id", "dispute_id", "event_type", "status", "message", "actor_user_id", "metadata", "created_at").
		Values(event.ID, event.DisputeID, string(event.Type), string(event.Status), nullString(event.Message), nullString(event.ActorUserID), metadata, event.CreatedAt).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert event query: %w", err)
	}

	if _, err := resolveExecutor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert dispute event: %w", err)
	}
	return nil
}

func (r *DisputeRepository) ListEvents(ctx context.Context, disputeID string) ([]dispute.Event, error) {
	query, args, err := qb.Select("*").From("deal_dispute_events").
		Where(qb.Eq("dispute_id", disputeID)).
		OrderBy("created_at ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list events query: %w", err)
	}

	var rows []disputeEventTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list dispute events: %w", err)
	}

	out := make([]dispute.Event, 0, len(rows))
	for _, row := range rows {
		event, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}

func (r *DisputeRepository) AddEvidence(ctx context.Context, evidence dispute.Evidence) error {
	query, args, err := qb.InsertInto("deal_dispute_evidence").
		Columns("id", "dispute_id", "evidence_type", "url", "label", "uploaded_at").
		Values(evidence.ID, evidence.DisputeID, nullString(evidence.Type), evidence.URL, nullString(evidence.Label), evidence.UploadedAt).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert evidence query: %w", err)
	}

	if _, err := resolveExecutor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert dispute evidence: %w", err)
	}
	return nil
}

func (r *DisputeRepository) ListEvidence(ctx context.Context, disputeID string) ([]dispute.Evidence, error) {
	query, args, err := qb.Select("*").From("deal_dispute_evidence").
		Where(qb.Eq("dispute_id", disputeID)).
		OrderBy("uploaded_at ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list evidence query: %w", err)
	}

	var rows []disputeEvidenceTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list dispute evidence: %w", err)
	}

	out := make([]dispute.Evidence, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
