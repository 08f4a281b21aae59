package calculator

import (
	"sort"

	"github.com/segyhp/guild-ledger/internal/domain"
	"github.com/segyhp/guild-ledger/internal/money"
)

// MaxOffers is the most offers Schedule returns.
const MaxOffers = 5

// Tier bounds what a credit score qualifies for.
type Tier struct {
	Name         string
	MinScore     int
	AprMinBps    int64
	AprMaxBps    int64
	TermMinDays  int
	TermMaxDays  int
	MaxPrincipal money.Amount
}

// tiers is ordered from the highest score band down.
var tiers = []Tier{
	{Name: "excellent", MinScore: 740, AprMinBps: 600, AprMaxBps: 1200, TermMinDays: 14, TermMaxDays: 30, MaxPrincipal: money.New(500_000)},
	{Name: "good", MinScore: 670, AprMinBps: 1200, AprMaxBps: 2000, TermMinDays: 7, TermMaxDays: 21, MaxPrincipal: money.New(100_000)},
	{Name: "fair", MinScore: 580, AprMinBps: 2000, AprMaxBps: 3000, TermMinDays: 7, TermMaxDays: 14, MaxPrincipal: money.New(25_000)},
	{Name: "poor", MinScore: 0, AprMinBps: 3000, AprMaxBps: 4500, TermMinDays: 3, TermMaxDays: 7, MaxPrincipal: money.New(5_000)},
}

// defaultLadder is used when no amounts are requested, in percent of the tier cap.
var defaultLadder = []int64{10, 25, 50, 75, 100}

// TierFor returns the tier a credit score falls into.
func TierFor(creditScore int) Tier {
	for _, t := range tiers {
		if creditScore >= t.MinScore {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// Schedule builds up to MaxOffers offers for the requested principals. Amounts
// are capped at the tier maximum and deduplicated; larger principals get a
// higher APR and a longer term within the tier ranges. No amounts means a
// ladder of fractions of the tier cap.
func Schedule(amounts []money.Amount, creditScore int) []domain.Offer {
	tier := TierFor(creditScore)

	if len(amounts) == 0 {
		for _, pct := range defaultLadder {
			a, _ := tier.MaxPrincipal.Mul(money.New(pct)).Div(money.New(100))
			amounts = append(amounts, a)
		}
	}

	var principals []money.Amount
	for _, a := range amounts {
		a = money.Min(a.Truncate(), tier.MaxPrincipal)
		if !a.IsPositive() || containsAmount(principals, a) {
			continue
		}
		principals = append(principals, a)
	}
	sort.Slice(principals, func(i, j int) bool { return principals[i].LessThan(principals[j]) })
	if len(principals) > MaxOffers {
		principals = principals[:MaxOffers]
	}

	offers := make([]domain.Offer, 0, len(principals))
	for _, p := range principals {
		offers = append(offers, tier.OfferFor(p))
	}
	return offers
}

// OfferFor prices principal (already capped) inside the tier ranges.
func (t Tier) OfferFor(principal money.Amount) domain.Offer {
	ratio := int64(BpsDenominator)
	if t.MaxPrincipal.IsPositive() {
		r, _ := principal.MulPow10(4).Div(t.MaxPrincipal)
		if v, ok := r.Int64(); ok && v < ratio {
			ratio = v
		}
	}
	apr := t.AprMinBps + (t.AprMaxBps-t.AprMinBps)*ratio/BpsDenominator
	term := t.TermMinDays + int(int64(t.TermMaxDays-t.TermMinDays)*ratio/BpsDenominator)
	return domain.Offer{Principal: principal, AprBps: apr, TermDays: term}
}

func containsAmount(list []money.Amount, a money.Amount) bool {
	for _, x := range list {
		if x.Equal(a) {
			return true
		}
	}
	return false
}
