package memory

import (
	"time"

	"github.com/tradeyard/dealops/internal/domain/escrow"
	"github.com/tradeyard/dealops/internal/domain/negotiation"
)

const (
	NegotiationIDVintageLens = "neg-vintage-lens-2401"
	NegotiationIDOakDesk     = "neg-oak-desk-2402"
	NegotiationIDRoadBike    = "neg-road-bike-2403"
)

func SeedNegotiations() []negotiation.Negotiation {
	expiresSoon := time.Now().UTC().Add(6 * time.Hour)
	fulfilmentDue := time.Now().UTC().Add(30 * time.Hour)

	return []negotiation.Negotiation{
		{
			ID:             NegotiationIDVintageLens,
			ListingID:      "lst-vintage-lens",
			BuyerUserID:    "usr-amara",
			SellerUserID:   "usr-bidur",
			Status:         negotiation.StatusActive,
			ExpiresAt:      &expiresSoon,
			AgreedAmount:   0,
			Currency:       "EUR",
			CreatedAt:      time.Now().UTC().Add(-48 * time.Hour),
			LastActivityAt: time.Now().UTC().Add(-3 * time.Hour),
		},
		{
			ID:             NegotiationIDOakDesk,
			ListingID:      "lst-oak-desk",
			BuyerUserID:    "usr-chen",
			SellerUserID:   "usr-dalia",
			Status:         negotiation.StatusAgreed,
			FulfilmentDue:  &fulfilmentDue,
			AgreedAmount:   420,
			Currency:       "EUR",
			CreatedAt:      time.Now().UTC().Add(-96 * time.Hour),
			LastActivityAt: time.Now().UTC().Add(-12 * time.Hour),
		},
		{
			ID:             NegotiationIDRoadBike,
			ListingID:      "lst-road-bike",
			BuyerUserID:    "usr-elif",
			SellerUserID:   "usr-franz",
			Status:         negotiation.StatusAgreed,
			AgreedAmount:   780,
			Currency:       "EUR",
			CreatedAt:      time.Now().UTC().Add(-120 * time.Hour),
			LastActivityAt: time.Now().UTC().Add(-24 * time.Hour),
		},
	}
}

func SeedEscrowAccounts() []escrow.Account {
	fundedAt := time.Now().UTC().Add(-72 * time.Hour)

	return []escrow.Account{
		{
			ID:                "esc-oak-desk",
			NegotiationID:     NegotiationIDOakDesk,
			Status:            escrow.AccountFunded,
			Currency:          "EUR",
			FundedAmount:      420,
			ProviderReference: "prov-ref-4821",
			FundedAt:          &fundedAt,
			UpdatedAt:         fundedAt,
		},
		{
			ID:                "esc-road-bike",
			NegotiationID:     NegotiationIDRoadBike,
			Status:            escrow.AccountFunded,
			Currency:          "EUR",
			FundedAmount:      780,
			ProviderReference: "prov-ref-4822",
			FundedAt:          &fundedAt,
			UpdatedAt:         fundedAt.Add(time.Hour),
		},
	}
}
