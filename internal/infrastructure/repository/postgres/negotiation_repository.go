package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tradeyard/dealops/internal/domain/negotiation"
	qb "github.com/tradeyard/dealops/internal/platform/querybuilder"
)

type negotiationTableModel struct {
	ID             string     `db:"id"`
	ListingID      string     `db:"listing_id"`
	BuyerUserID    string     `db:"buyer_user_id"`
	SellerUserID   string     `db:"seller_user_id"`
	Status         string     `db:"status"`
	ExpiresAt      *time.Time `db:"expires_at"`
	FulfilmentDue  *time.Time `db:"fulfilment_due"`
	AgreedAmount   float64    `db:"agreed_amount"`
	Currency       string     `db:"currency"`
	CreatedAt      time.Time  `db:"created_at"`
	LastActivityAt time.Time  `db:"last_activity_at"`
}

func (m negotiationTableModel) toDomain() negotiation.Negotiation {
	return negotiation.Negotiation{
		ID:             m.ID,
		ListingID:      m.ListingID,
		BuyerUserID:    m.BuyerUserID,
		SellerUserID:   m.SellerUserID,
		Status:         negotiation.Status(m.Status),
		ExpiresAt:      m.ExpiresAt,
		FulfilmentDue:  m.FulfilmentDue,
		AgreedAmount:   m.AgreedAmount,
		Currency:       m.Currency,
		CreatedAt:      m.CreatedAt,
		LastActivityAt: m.LastActivityAt,
	}
}

var terminalNegotiationStatuses = []any{
	string(negotiation.StatusFulfilled),
	string(negotiation.StatusExpired),
	string(negotiation.StatusCancelled),
}

type NegotiationRepository struct {
	db *sqlx.DB
}

func NewNegotiationRepository(db *sqlx.DB) *NegotiationRepository {
	return &NegotiationRepository{db: db}
}

func (r *NegotiationRepository) GetByID(ctx context.Context, negotiationID string) (negotiation.Negotiation, bool, error) {
	query, args, err := qb.Select("*").From("negotiations").
		Where(qb.Eq("id", negotiationID)).
		ToSQL()
	if err != nil {
		return negotiation.Negotiation{}, false, fmt.Errorf("build get negotiation query: %w", err)
	}

	var row negotiationTableModel
	if err := resolveExecutor(ctx, r.db).GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return negotiation.Negotiation{}, false, nil
		}
		return negotiation.Negotiation{}, false, fmt.Errorf("get negotiation: %w", err)
	}

	return row.toDomain(), true, nil
}

func (r *NegotiationRepository) ListWithDeadline(ctx context.Context, horizon time.Time) ([]negotiation.Negotiation, error) {
	query, args, err := qb.Select("*").From("negotiations").
		Where(
			qb.IsNotNull("expires_at"),
			qb.Lte("expires_at", horizon),
			qb.Expr("status NOT IN (?, ?, ?)", terminalNegotiationStatuses...),
		).
		OrderBy("expires_at ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list deadline query: %w", err)
	}

	var rows []negotiationTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list negotiations with deadline: %w", err)
	}

	return mapNegotiationRows(rows), nil
}

func (r *NegotiationRepository) ListAwaitingFulfilment(ctx context.Context, horizon time.Time) ([]negotiation.Negotiation, error) {
	query, args, err := qb.Select("*").From("negotiations").
		Where(
			qb.Eq("status", string(negotiation.StatusAgreed)),
			qb.IsNotNull("fulfilment_due"),
			qb.Lte("fulfilment_due", horizon),
		).
		OrderBy("fulfilment_due ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list awaiting fulfilment query: %w", err)
	}

	var rows []negotiationTableModel
	if err := resolveExecutor(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list negotiations awaiting fulfilment: %w", err)
	}

	return mapNegotiationRows(rows), nil
}

func mapNegotiationRows(rows []negotiationTableModel) []negotiation.Negotiation {
	out := make([]negotiation.Negotiation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}
