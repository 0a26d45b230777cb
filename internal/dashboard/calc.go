package dashboard

import (
	"fmt"
	"math"
)

// Deal desk approval thresholds.
const (
	MaxUnapprovedDiscountPct = 20.0
	MinUnapprovedMarginPct   = 30.0
)

// QuoteInput is a pricing worksheet.
type QuoteInput struct {
	ListPrice   float64
	DiscountPct float64
	Cost        float64
}

// Quote is the margin analysis for a worksheet.
type Quote struct {
	FinalPrice       float64
	Margin           float64
	MarginPct        float64
	ApprovalRequired bool
	Reasons          []string
}

// PriceQuote computes final price and margin, and whether the deal needs
// deal-desk approval.
func PriceQuote(in QuoteInput) (Quote, error) {
	if in.ListPrice <= 0 {
		return Quote{}, fmt.Errorf("list price must be positive")
	}
	if in.DiscountPct < 0 || in.DiscountPct >= 100 {
		return Quote{}, fmt.Errorf("discount must be in [0, 100), got %.1f", in.DiscountPct)
	}
	if in.Cost < 0 {
		return Quote{}, fmt.Errorf("cost must not be negative")
	}

	q := Quote{FinalPrice: in.ListPrice * (1 - in.DiscountPct/100)}
	q.Margin = q.FinalPrice - in.Cost
	q.MarginPct = q.Margin / q.FinalPrice * 100

	if in.DiscountPct > MaxUnapprovedDiscountPct {
		q.Reasons = append(q.Reasons, fmt.Sprintf("discount above %.0f%%", MaxUnapprovedDiscountPct))
	}
	if q.MarginPct < MinUnapprovedMarginPct {
		q.Reasons = append(q.Reasons, fmt.Sprintf("margin below %.0f%%", MinUnapprovedMarginPct))
	}
	q.ApprovalRequired = len(q.Reasons) > 0
	return q, nil
}

// Commission estimates the commission pool for a revenue base under quota
// and win-rate multipliers.
func Commission(base, quotaMult, winRateMult float64) int64 {
	return int64(math.Round(base * 0.1 * quotaMult * winRateMult))
}

// Compensation simulator bounds.
const (
	CommissionBase = 500000.0

	MinQuotaMult  = 0.5
	MaxQuotaMult  = 2.0
	QuotaMultStep = 0.1

	MinWinRateMult  = 0.8
	MaxWinRateMult  = 1.5
	WinRateMultStep = 0.05
)

// CompPlan holds the compensation simulator's multipliers.
type CompPlan struct {
	QuotaMult   float64
	WinRateMult float64
}

// DefaultCompPlan is the plan at 1x on both multipliers.
func DefaultCompPlan() CompPlan {
	return CompPlan{QuotaMult: 1.0, WinRateMult: 1.0}
}

// AdjustQuota moves the quota multiplier by steps, clamped to its range.
func (p CompPlan) AdjustQuota(steps int) CompPlan {
	p.QuotaMult = stepClamp(p.QuotaMult, steps, QuotaMultStep, MinQuotaMult, MaxQuotaMult)
	return p
}

// AdjustWinRate moves the win-rate multiplier by steps, clamped to its range.
func (p CompPlan) AdjustWinRate(steps int) CompPlan {
	p.WinRateMult = stepClamp(p.WinRateMult, steps, WinRateMultStep, MinWinRateMult, MaxWinRateMult)
	return p
}

// Pool is the commission pool on CommissionBase.
func (p CompPlan) Pool() int64 {
	return Commission(CommissionBase, p.QuotaMult, p.WinRateMult)
}

// stepClamp rounds to hundredths so repeated steps do not drift.
func stepClamp(v float64, steps int, step, lo, hi float64) float64 {
	v = math.Round((v+float64(steps)*step)*100) / 100
	return math.Min(math.Max(v, lo), hi)
}

// RiskLevel buckets a compliance risk score.
func RiskLevel(risk int) string {
	switch {
	case risk > 70:
		return "high"
	case risk > 40:
		return "medium"
	default:
		return "low"
	}
}

// RepStatus labels quota attainment.
func RepStatus(attainment int) string {
	switch {
	case attainment >= 100:
		return "Achiever"
	case attainment < 80:
		return "At Risk"
	default:
		return "In Progress"
	}
}

// ConversionRates returns stage-to-stage conversion in percent; the first
// stage has none.
func ConversionRates(stages []PipelineStage) []float64 {
	out := make([]float64, len(stages))
	for i := 1; i < len(stages); i++ {
		if prev := stages[i-1].Count; prev > 0 {
			out[i] = float64(stages[i].Count) / float64(prev) * 100
		}
	}
	return out
}

// HighRisk returns entities above the high-risk threshold.
func (d *Dataset) HighRisk() []RiskScore {
	var out []RiskScore
	for _, r := range d.Risks {
		if RiskLevel(r.Risk) == "high" {
			out = append(out, r)
		}
	}
	return out
}
