package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradeyard/dealops/internal/domain/dispute"
	"github.com/tradeyard/dealops/internal/domain/escrow"
	"github.com/tradeyard/dealops/internal/domain/negotiation"
	"github.com/tradeyard/dealops/internal/domain/notification"
)

type PayoutDirection string

const (
	PayoutReleaseToSeller PayoutDirection = "RELEASE_TO_SELLER"
	PayoutRefundToBuyer   PayoutDirection = "REFUND_TO_BUYER"
)

// ApplyDisputeEscrowHold earmarks escrow funds against a dispute. The hold,
// the ledger entry and the audit event commit together.
func (s *DisputeService) ApplyDisputeEscrowHold(ctx context.Context, disputeID string, amount float64, reason string) (dispute.DealDispute, error) {
	amount = round2(amount)
	if amount <= 0 {
		return dispute.DealDispute{}, fmt.Errorf("%w: hold amount must be positive", ErrInvalidInput)
	}

	d, account, err := s.loadDisputeWithEscrow(ctx, disputeID)
	if err != nil {
		return dispute.DealDispute{}, err
	}

	txID, err := s.idGen.NewID()
	if err != nil {
		return dispute.DealDispute{}, fmt.Errorf("generate transaction id: %w", err)
	}

	now := s.now().UTC()
	d.HoldAmount = round2(d.HoldAmount + amount)

	err = s.uow.InTx(ctx, func(ctx context.Context) error {
		if err := s.escrowRepo.AppendTransaction(ctx, escrow.Transaction{
			ID:        txID,
			AccountID: account.ID,
			Type:      escrow.TxDisputeHold,
			Amount:    amount,
			Metadata: map[string]any{
				"dispute_id": d.ID,
				"reason":     strings.TrimSpace(reason),
			},
			OccurredAt: now,
		}); err != nil {
			return fmt.Errorf("append hold transaction: %w", err)
		}

		account.Status = escrow.AccountDisputed
		account.UpdatedAt = now
		if err := s.escrowRepo.Update(ctx, account); err != nil {
			return fmt.Errorf("update escrow account: %w", err)
		}

		if err := s.disputeRepo.Update(ctx, d); err != nil {
			return fmt.Errorf("update dispute: %w", err)
		}

		return s.appendEvent(ctx, d, dispute.EventEscrowHoldApplied, "", strings.TrimSpace(reason), map[string]any{
			"amount":      amount,
			"hold_amount": d.HoldAmount,
		})
	})
	if err != nil {
		return dispute.DealDispute{}, err
	}

	s.publishEscrowEvent(ctx, d, map[string]any{
		"action":      "HOLD_APPLIED",
		"amount":      amount,
		"hold_amount": d.HoldAmount,
	})

	return d, nil
}

// RecordDisputeCounterProposal overwrites (not accumulates) the standing
// counter-proposal amount.
func (s *DisputeService) RecordDisputeCounterProposal(ctx context.Context, disputeID string, amount float64, note string) (dispute.DealDispute, error) {
	amount = round2(amount)
	if amount <= 0 {
		return dispute.DealDispute{}, fmt.Errorf("%w: counter-proposal amount must be positive", ErrInvalidInput)
	}

	d, exists, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return dispute.DealDispute{}, fmt.Errorf("get dispute %s: %w", disputeID, err)
	}
	if !exists {
		return dispute.DealDispute{}, fmt.Errorf("%w: dispute=%s", ErrNotFound, disputeID)
	}

	d.CounterProposalAmount = amount

	err = s.uow.InTx(ctx, func(ctx context.Context) error {
		if err := s.disputeRepo.Update(ctx, d); err != nil {
			return fmt.Errorf("update dispute: %w", err)
		}
		return s.appendEvent(ctx, d, dispute.EventCounterProposed, "", strings.TrimSpace(note), map[string]any{
			"amount": amount,
		})
	})
	if err != nil {
		return dispute.DealDispute{}, err
	}

	s.publishEscrowEvent(ctx, d, map[string]any{
		"action": "COUNTER_PROPOSED",
		"amount": amount,
	})

	return d, nil
}

// SettleDisputeEscrowPayout releases held funds to the seller or refunds
// them to the buyer. The payout can never exceed the current hold beyond the
// ledger epsilon.
func (s *DisputeService) SettleDisputeEscrowPayout(ctx context.Context, disputeID string, amount float64, direction PayoutDirection, note string) (dispute.DealDispute, error) {
	amount = round2(amount)
	if amount <= 0 {
		return dispute.DealDispute{}, fmt.Errorf("%w: payout amount must be positive", ErrInvalidInput)
	}
	if direction != PayoutReleaseToSeller && direction != PayoutRefundToBuyer {
		return dispute.DealDispute{}, fmt.Errorf("%w: unknown payout direction %q", ErrInvalidInput, direction)
	}

	d, account, err := s.loadDisputeWithEscrow(ctx, disputeID)
	if err != nil {
		return dispute.DealDispute{}, err
	}
	if amount-d.HoldAmount > amountEpsilon {
		return dispute.DealDispute{}, fmt.Errorf("%w: payout %.2f exceeds held amount %.2f", ErrInvalidInput, amount, d.HoldAmount)
	}

	txID, err := s.idGen.NewID()
	if err != nil {
		return dispute.DealDispute{}, fmt.Errorf("generate transaction id: %w", err)
	}

	now := s.now().UTC()
	remaining := round2(d.HoldAmount - amount)
	if remaining < 0 {
		remaining = 0
	}

	txType := escrow.TxDisputePayout
	if direction == PayoutRefundToBuyer {
		txType = escrow.TxDisputeRelease
	}

	d.HoldAmount = remaining
	d.ResolutionPayoutAmount = round2(d.ResolutionPayoutAmount + amount)

	err = s.uow.InTx(ctx, func(ctx context.Context) error {
		if err := s.escrowRepo.AppendTransaction(ctx, escrow.Transaction{
			ID:        txID,
			AccountID: account.ID,
			Type:      txType,
			Amount:    amount,
			Metadata: map[string]any{
				"dispute_id":     d.ID,
				"direction":      string(direction),
				"note":           strings.TrimSpace(note),
				"remaining_hold": remaining,
			},
			OccurredAt: now,
		}); err != nil {
			return fmt.Errorf("append payout transaction: %w", err)
		}

		if direction == PayoutReleaseToSeller {
			account.ReleasedAmount = round2(account.ReleasedAmount + amount)
		} else {
			account.RefundedAmount = round2(account.RefundedAmount + amount)
		}
		if remaining <= amountEpsilon {
			if direction == PayoutReleaseToSeller {
				account.Status = escrow.AccountReleased
			} else {
				account.Status = escrow.AccountRefunded
			}
		}
		account.UpdatedAt = now
		if err := s.escrowRepo.Update(ctx, account); err != nil {
			return fmt.Errorf("update escrow account: %w", err)
		}

		if err := s.disputeRepo.Update(ctx, d); err != nil {
			return fmt.Errorf("update dispute: %w", err)
		}

		return s.appendEvent(ctx, d, dispute.EventPayoutReleased, "", strings.TrimSpace(note), map[string]any{
			"amount":         amount,
			"direction":      string(direction),
			"remaining_hold": remaining,
		})
	})
	if err != nil {
		return dispute.DealDispute{}, err
	}

	s.publishEscrowEvent(ctx, d, map[string]any{
		"action":         "PAYOUT_SETTLED",
		"amount":         amount,
		"direction":      string(direction),
		"remaining_hold": remaining,
	})

	return d, nil
}

func (s *DisputeService) loadDisputeWithEscrow(ctx context.Context, disputeID string) (dispute.DealDispute, escrow.Account, error) {
	d, exists, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return dispute.DealDispute{}, escrow.Account{}, fmt.Errorf("get dispute %s: %w", disputeID, err)
	}
	if !exists {
		return dispute.DealDispute{}, escrow.Account{}, fmt.Errorf("%w: dispute=%s", ErrNotFound, disputeID)
	}

	account, exists, err := s.escrowRepo.GetByNegotiation(ctx, d.NegotiationID)
	if err != nil {
		return dispute.DealDispute{}, escrow.Account{}, fmt.Errorf("get escrow account for %s: %w", d.NegotiationID, err)
	}
	if !exists {
		return dispute.DealDispute{}, escrow.Account{}, fmt.Errorf("%w: no escrow account for negotiation=%s", ErrNotFound, d.NegotiationID)
	}

	return d, account, nil
}

func (s *DisputeService) publishEscrowEvent(ctx context.Context, d dispute.DealDispute, payload map[string]any) {
	neg, _, err := s.negotiationRepo.GetByID(ctx, d.NegotiationID)
	if err != nil {
		s.logger.WarnContext(ctx, "load negotiation for escrow event failed",
			"negotiation_id", d.NegotiationID,
			"error", err,
		)
		neg = negotiation.Negotiation{}
	}
	s.publishDisputeEvent(ctx, d, notification.TypeDisputeEscrowMove, "", payload, neg)
}
