package rating

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceStatus tags whether a tier was applied.
type PriceStatus string

const (
	StatusPriced   PriceStatus = "priced"
	StatusUnpriced PriceStatus = "unpriced"
)

// CostResult is the computed charge for a usage quantity.
// An unpriced result carries no tier and zero amounts; callers must check
// Priced before treating Total as a charge.
type CostResult struct {
	Status         PriceStatus     `json:"status"`
	Usage          float64         `json:"usage"`
	Classification Classification  `json:"customer_type"`
	Region         string          `json:"region,omitempty"`
	Tier           *RateTier       `json:"tier,omitempty"`
	Base           decimal.Decimal `json:"base"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ServiceFee     decimal.Decimal `json:"service_fee"`
	Total          decimal.Decimal `json:"total"`
}

// Priced reports whether a tier was applied.
func (r CostResult) Priced() bool { return r.Status == StatusPriced && r.Tier != nil }

// Query selects tiers for a calculation.
type Query struct {
	Usage          float64
	Classification Classification
	Region         string
}

// ComputeCost prices usage for a classification against tiers.
// The first tier in iteration order that applies wins.
func ComputeCost(usage float64, classification Classification, tiers []RateTier) (CostResult, error) {
	return Compute(Query{Usage: usage, Classification: classification}, tiers)
}

// Compute prices a query against tiers, honoring an optional region.
func Compute(q Query, tiers []RateTier) (CostResult, error) {
	if err := ValidateUsage(q.Usage); err != nil {
		return CostResult{}, err
	}
	if q.Classification == "" {
		return CostResult{}, fmt.Errorf("%w: empty customer type", ErrInvalidInput)
	}

	result := CostResult{
		Status:         StatusUnpriced,
		Usage:          q.Usage,
		Classification: q.Classification,
		Region:         q.Region,
		Base:           decimal.Zero,
		TaxAmount:      decimal.Zero,
		ServiceFee:     decimal.Zero,
		Total:          decimal.Zero,
	}

	tier, ok := matchTier(q, tiers)
	if !ok {
		return result, nil
	}

	base := decimal.NewFromFloat(q.Usage).Mul(tier.PricePerM3)
	tax := base.Mul(tier.Tax)
	taxed := base.Add(tax)

	result.Status = StatusPriced
	result.Tier = &tier
	result.Base = base
	result.TaxAmount = tax
	result.ServiceFee = tier.ServiceFee
	result.Total = taxed.Add(tier.ServiceFee)
	return result, nil
}

func matchTier(q Query, tiers []RateTier) (RateTier, bool) {
	for _, tier := range tiers {
		if tier.AppliesTo(q.Classification, q.Region) && tier.Contains(q.Usage) {
			return tier, true
		}
	}
	return RateTier{}, false
}

// ValidateUsage rejects negative, NaN and infinite usage.
func ValidateUsage(usage float64) error {
	if math.IsNaN(usage) || math.IsInf(usage, 0) {
		return fmt.Errorf("%w: usage is not a number", ErrInvalidInput)
	}
	if usage < 0 {
		return fmt.Errorf("%w: usage must be >= 0", ErrInvalidInput)
	}
	return nil
}

// ParseUsage parses typed usage text in cubic meters.
func ParseUsage(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: usage is empty", ErrInvalidInput)
	}
	usage, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: usage %q is not a number", ErrInvalidInput, raw)
	}
	if err := ValidateUsage(usage); err != nil {
		return 0, err
	}
	return usage, nil
}
