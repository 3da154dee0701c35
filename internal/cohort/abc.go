package cohort

import (
	"github.com/odyssey-erp/ledger-analytics/internal/growth"
	"github.com/odyssey-erp/ledger-analytics/internal/ledger"
)

// Tier is the Pareto class of a counterparty.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// Cumulative share limits of tiers A and B, in percent.
const (
	tierALimit = 80.0
	tierBLimit = 95.0
)

// Trend labels the change of a counterparty against the comparison period.
type Trend string

const (
	TrendNew       Trend = "new"
	TrendGrowing   Trend = "growing"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// trendBand is the variation, in percent, beyond which a counterparty is growing or
// declining.
const trendBand = 10.0

// TrendLabel classifies current against previous and returns the rounded variation.
// A counterparty without a positive previous amount is new with a variation of 100.
func TrendLabel(current, previous float64) (Trend, float64) {
	if previous <= 0 {
		return TrendNew, 100
	}
	v := (current - previous) / previous * 100
	switch {
	case v > trendBand:
		return TrendGrowing, ledger.Round2(v)
	case v < -trendBand:
		return TrendDeclining, ledger.Round2(v)
	default:
		return TrendStable, ledger.Round2(v)
	}
}

// ClassifyABC assigns tiers to entities already sorted by descending net amount. The
// running cumulative share decides the tier: A up to 80%, B up to 95%, C beyond.
func ClassifyABC(entities []EntityAggregate) []EntityAggregate {
	var sum float64
	for _, e := range entities {
		sum += e.Net
	}
	var cumulative float64
	for i := range entities {
		share := growth.Share(entities[i].Net, sum)
		cumulative += share
		switch {
		case cumulative <= tierALimit:
			entities[i].Tier = TierA
		case cumulative <= tierBLimit:
			entities[i].Tier = TierB
		default:
			entities[i].Tier = TierC
		}
		entities[i].Share = ledger.Round2(share)
		entities[i].CumulativeShare = ledger.Round2(cumulative)
	}
	return entities
}

// TierSummary totals one tier.
type TierSummary struct {
	Tier    Tier    `json:"tier"`
	Count   int     `json:"count"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

// summarize totals every tier of classified entities.
func summarize(entities []EntityAggregate, total float64) []TierSummary {
	out := []TierSummary{{Tier: TierA}, {Tier: TierB}, {Tier: TierC}}
	index := map[Tier]int{TierA: 0, TierB: 1, TierC: 2}
	for _, e := range entities {
		i, ok := index[e.Tier]
		if !ok {
			continue
		}
		out[i].Count++
		out[i].Amount += e.Net
	}
	for i := range out {
		out[i].Percent = ledger.Round2(growth.Share(out[i].Amount, total))
		out[i].Amount = ledger.Round2(out[i].Amount)
	}
	return out
}
