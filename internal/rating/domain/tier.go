package rating

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Classification is the customer category a tier applies to.
type Classification string

const (
	ClassificationResidential Classification = "residential"
	ClassificationCommercial  Classification = "commercial"
	ClassificationIndustrial  Classification = "industrial"
)

// NormalizeClassification lower-cases and trims a classification value.
func NormalizeClassification(value string) Classification {
	return Classification(strings.ToLower(strings.TrimSpace(value)))
}

// String returns the raw value.
func (c Classification) String() string { return string(c) }

// RateTier is a usage bracket with its own unit price, tax rate and flat fee.
// Bounds are inclusive on both ends and expressed in cubic meters.
type RateTier struct {
	ID             int64           `json:"rate_id"`
	UsageStart     float64         `json:"usage_tier_start"`
	UsageEnd       float64         `json:"usage_tier_end"`
	PricePerM3     decimal.Decimal `json:"price_per_m3"`
	Classification Classification  `json:"customer_type"`
	Region         string          `json:"region,omitempty"`
	Tax            decimal.Decimal `json:"tax"`
	ServiceFee     decimal.Decimal `json:"service_fee"`
}

// Contains reports whether usage lies within [UsageStart, UsageEnd].
func (t RateTier) Contains(usage float64) bool {
	return usage >= t.UsageStart && usage <= t.UsageEnd
}

// AppliesTo reports whether the tier serves the classification and region.
// An empty request region does not filter; a tier without a region applies everywhere.
func (t RateTier) AppliesTo(classification Classification, region string) bool {
	if t.Classification != classification {
		return false
	}
	if region == "" || t.Region == "" {
		return true
	}
	return strings.EqualFold(t.Region, region)
}

// Validate checks tier invariants.
func (t RateTier) Validate() error {
	if t.Classification == "" {
		return fmt.Errorf("%w: empty customer type", ErrInvalidTier)
	}
	if !finite(t.UsageStart) || !finite(t.UsageEnd) {
		return fmt.Errorf("%w: usage bounds must be finite", ErrInvalidTier)
	}
	if t.UsageStart < 0 {
		return fmt.Errorf("%w: usage_tier_start must be >= 0", ErrInvalidTier)
	}
	if t.UsageStart > t.UsageEnd {
		return fmt.Errorf("%w: usage_tier_start %.3f > usage_tier_end %.3f", ErrInvalidTier, t.UsageStart, t.UsageEnd)
	}
	if t.PricePerM3.IsNegative() {
		return fmt.Errorf("%w: negative price_per_m3", ErrInvalidTier)
	}
	if t.Tax.IsNegative() {
		return fmt.Errorf("%w: negative tax", ErrInvalidTier)
	}
	if t.ServiceFee.IsNegative() {
		return fmt.Errorf("%w: negative service_fee", ErrInvalidTier)
	}
	return nil
}

// Overlaps reports whether two tiers compete for the same usage values.
// A tier without a region competes with tiers of every region.
func (t RateTier) Overlaps(other RateTier) bool {
	if t.Classification != other.Classification {
		return false
	}
	if t.Region != "" && other.Region != "" && !strings.EqualFold(t.Region, other.Region) {
		return false
	}
	return t.UsageStart <= other.UsageEnd && other.UsageStart <= t.UsageEnd
}

// Overlap names two tiers that share a usage range.
type Overlap struct {
	First  RateTier
	Second RateTier
}

func (o Overlap) String() string {
	return fmt.Sprintf("%s/%s: rate %d [%g, %g] overlaps rate %d [%g, %g]",
		o.First.Classification, regionLabel(o.First.Region),
		o.First.ID, o.First.UsageStart, o.First.UsageEnd,
		o.Second.ID, o.Second.UsageStart, o.Second.UsageEnd)
}

// FindOverlaps returns every overlapping pair in tiers, in input order.
func FindOverlaps(tiers []RateTier) []Overlap {
	var result []Overlap
	for i := 0; i < len(tiers); i++ {
		for j := i + 1; j < len(tiers); j++ {
			if tiers[i].Overlaps(tiers[j]) {
				result = append(result, Overlap{First: tiers[i], Second: tiers[j]})
			}
		}
	}
	return result
}

// ValidateTable validates every tier and rejects overlaps.
func ValidateTable(tiers []RateTier) error {
	for _, tier := range tiers {
		if err := tier.Validate(); err != nil {
			return fmt.Errorf("rate %d: %w", tier.ID, err)
		}
	}
	if overlaps := FindOverlaps(tiers); len(overlaps) > 0 {
		return fmt.Errorf("%w: %s", ErrOverlappingTiers, overlaps[0])
	}
	return nil
}

func regionLabel(region string) string {
	if region == "" {
		return "any-region"
	}
	return region
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
