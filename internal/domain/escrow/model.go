package escrow

import "time"

type AccountStatus string

const (
	AccountPending  AccountStatus = "PENDING"
	AccountFunded   AccountStatus = "FUNDED"
	AccountDisputed AccountStatus = "DISPUTED"
	AccountReleased AccountStatus = "RELEASED"
	AccountRefunded AccountStatus = "REFUNDED"
)

type TransactionType string

const (
	TxDisputeHold    TransactionType = "DISPUTE_HOLD"
	TxDisputePayout  TransactionType = "DISPUTE_PAYOUT"
	TxDisputeRelease TransactionType = "DISPUTE_RELEASE"
	TxAdjustment     TransactionType = "ADJUSTMENT"
)

// Account is the escrow ledger head for one negotiation. The ledger invariant
// is FundedAmount - ReleasedAmount - RefundedAmount >= 0 at all times.
type Account struct {
	ID                string
	NegotiationID     string
	Status            AccountStatus
	Currency          string
	FundedAmount      float64
	ReleasedAmount    float64
	RefundedAmount    float64
	ProviderReference string
	FundedAt          *time.Time
	UpdatedAt         time.Time
}

// LedgerBalance is the locally held remainder.
func (a Account) LedgerBalance() float64 {
	return a.FundedAmount - a.ReleasedAmount - a.RefundedAmount
}

// Transaction is one append-only ledger entry.
type Transaction struct {
	ID         string
	AccountID  string
	Type       TransactionType
	Amount     float64
	Reference  string
	Metadata   map[string]any
	OccurredAt time.Time
}

type ReconciliationStatus string

const (
	ReconciliationMatched  ReconciliationStatus = "MATCHED"
	ReconciliationMismatch ReconciliationStatus = "MISMATCH"
)

// Statement is what the external escrow provider reports for an account.
type Statement struct {
	StatementID string
	Balance     float64
	GeneratedAt time.Time
}
