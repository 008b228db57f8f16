package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Tier string

const (
	TierFree    Tier = "free"
	TierCheap   Tier = "cheap"
	TierPremium Tier = "premium"
)

// Rank orders tiers free < cheap < premium. Unknown tiers sort last.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 0
	case TierCheap:
		return 1
	case TierPremium:
		return 2
	default:
		return 3
	}
}

func (t Tier) Valid() bool {
	return t.Rank() < 3
}

// ClassifiedModel is a Model with its pricing tier and display label attached.
type ClassifiedModel struct {
	Model
	Tier      Tier   `json:"tier"`
	CostLabel string `json:"cost_label"`
}

// TierOf derives the tier from the prompt cost alone. The cheap range is
// half-open, so a cost equal to the upper bound is premium.
func TierOf(promptCost float64, opts Options) Tier {
	switch {
	case promptCost == 0:
		return TierFree
	case promptCost < opts.CheapUpperBound:
		return TierCheap
	default:
		return TierPremium
	}
}

func Classify(m Model, opts Options) ClassifiedModel {
	opts = opts.WithDefaults()
	tier := TierOf(m.PromptCost, opts)
	return ClassifiedModel{
		Model:     m,
		Tier:      tier,
		CostLabel: CostLabel(m.PromptCost, tier, opts),
	}
}

// CostLabel renders the scaled prompt rate with two decimals, rounding half
// away from zero. Free models always get the free label.
func CostLabel(promptCost float64, tier Tier, opts Options) string {
	if tier == TierFree {
		return opts.FreeLabel
	}
	amount := decimal.NewFromFloat(promptCost).Mul(decimal.NewFromInt(opts.LabelScale))
	return opts.CurrencyPrefix + amount.StringFixed(2) + opts.CurrencySuffix
}

// ParseCostLabel recovers the per-unit prompt cost from a label produced by
// CostLabel. The result is exact up to the two-decimal label precision.
func ParseCostLabel(label string, opts Options) (float64, bool) {
	opts = opts.WithDefaults()
	if label == opts.FreeLabel {
		return 0, true
	}

	amount, ok := strings.CutPrefix(label, opts.CurrencyPrefix)
	if !ok {
		return 0, false
	}
	amount, ok = strings.CutSuffix(amount, opts.CurrencySuffix)
	if !ok {
		return 0, false
	}

	d, err := decimal.NewFromString(amount)
	if err != nil || d.IsNegative() {
		return 0, false
	}
	f, _ := d.Div(decimal.NewFromInt(opts.LabelScale)).Float64()
	return f, true
}
