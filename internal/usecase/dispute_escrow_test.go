package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradeyard/dealops/internal/domain/dispute"
	"github.com/tradeyard/dealops/internal/domain/escrow"
	"github.com/tradeyard/dealops/internal/infrastructure/repository/memory"
)

func newEscrowFixture(t *testing.T) (*DisputeService, *memory.EscrowRepository, dispute.DealDispute) {
	t.Helper()

	svc, _, escrowRepo := newTestDisputeService(t)
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }

	d, err := svc.CreateDealDispute(t.Context(), CreateDisputeInput{
		NegotiationID:  memory.NegotiationIDOakDesk,
		RaisedByUserID: "usr-chen",
		Summary:        "damaged on arrival",
		Severity:       dispute.SeverityHigh,
	})
	require.NoError(t, err)

	return svc, escrowRepo, d
}

func TestDisputeService_ApplyDisputeEscrowHold(t *testing.T) {
	svc, escrowRepo, d := newEscrowFixture(t)

	d, err := svc.ApplyDisputeEscrowHold(t.Context(), d.ID, 100.004, "pending inspection")
	require.NoError(t, err)
	require.Equal(t, 100.0, d.HoldAmount)

	account, ok, err := escrowRepo.GetByNegotiation(t.Context(), memory.NegotiationIDOakDesk)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, escrow.AccountDisputed, account.Status)

	txs, err := escrowRepo.ListTransactions(t.Context(), account.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, escrow.TxDisputeHold, txs[0].Type)
	require.Equal(t, 100.0, txs[0].Amount)
}

func TestDisputeService_ApplyDisputeEscrowHold_RejectsNonPositive(t *testing.T) {
	svc, _, d := newEscrowFixture(t)

	_, err := svc.ApplyDisputeEscrowHold(t.Context(), d.ID, 0, "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ApplyDisputeEscrowHold(t.Context(), d.ID, -25, "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDisputeService_SettleDisputeEscrowPayout_SplitAcrossParties(t *testing.T) {
	svc, escrowRepo, d := newEscrowFixture(t)

	d, err := svc.ApplyDisputeEscrowHold(t.Context(), d.ID, 100, "pending inspection")
	require.NoError(t, err)

	// Seller gets 60, hold shrinks but the account stays disputed.
	d, err = svc.SettleDisputeEscrowPayout(t.Context(), d.ID, 60, PayoutReleaseToSeller, "partial release")
	require.NoError(t, err)
	require.Equal(t, 40.0, d.HoldAmount)
	require.Equal(t, 60.0, d.ResolutionPayoutAmount)

	account, _, err := escrowRepo.GetByNegotiation(t.Context(), memory.NegotiationIDOakDesk)
	require.NoError(t, err)
	require.Equal(t, escrow.AccountDisputed, account.Status)
	require.Equal(t, 60.0, account.ReleasedAmount)

	// Buyer gets the remaining 40, which empties the hold.
	d, err = svc.SettleDisputeEscrowPayout(t.Context(), d.ID, 40, PayoutRefundToBuyer, "refund remainder")
	require.NoError(t, err)
	require.Equal(t, 0.0, d.HoldAmount)
	require.Equal(t, 100.0, d.ResolutionPayoutAmount)

	account, _, err = escrowRepo.GetByNegotiation(t.Context(), memory.NegotiationIDOakDesk)
	require.NoError(t, err)
	require.Equal(t, escrow.AccountRefunded, account.Status)
	require.Equal(t, 40.0, account.RefundedAmount)

	txs, err := escrowRepo.ListTransactions(t.Context(), account.ID)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	require.Equal(t, escrow.TxDisputePayout, txs[1].Type)
	require.Equal(t, escrow.TxDisputeRelease, txs[2].Type)
}

func TestDisputeService_SettleDisputeEscrowPayout_RejectsOverHold(t *testing.T) {
	svc, _, d := newEscrowFixture(t)

	d, err := svc.ApplyDisputeEscrowHold(t.Context(), d.ID, 50, "")
	require.NoError(t, err)

	_, err = svc.SettleDisputeEscrowPayout(t.Context(), d.ID, 50.02, PayoutReleaseToSeller, "")
	require.ErrorIs(t, err, ErrInvalidInput)

	// Within the ledger epsilon the payout is allowed.
	d, err = svc.SettleDisputeEscrowPayout(t.Context(), d.ID, 50.01, PayoutReleaseToSeller, "")
	require.NoError(t, err)
	require.Equal(t, 0.0, d.HoldAmount)
}

func TestDisputeService_RecordDisputeCounterProposal_Overwrites(t *testing.T) {
	svc, _, d := newEscrowFixture(t)

	d, err := svc.RecordDisputeCounterProposal(t.Context(), d.ID, 80, "seller offer")
	require.NoError(t, err)
	require.Equal(t, 80.0, d.CounterProposalAmount)

	d, err = svc.RecordDisputeCounterProposal(t.Context(), d.ID, 65.555, "buyer counter")
	require.NoError(t, err)
	require.Equal(t, 65.56, d.CounterProposalAmount)
}
