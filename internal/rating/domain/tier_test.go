package rating

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRateTierValidate(t *testing.T) {
	valid := RateTier{ID: 1, UsageStart: 0, UsageEnd: 10, PricePerM3: dec(5), Classification: ClassificationResidential, Tax: dec(0.15), ServiceFee: dec(5)}
	require.NoError(t, valid.Validate())

	cases := map[string]RateTier{
		"inverted bounds": {UsageStart: 11, UsageEnd: 10, Classification: ClassificationResidential},
		"negative start":  {UsageStart: -1, UsageEnd: 10, Classification: ClassificationResidential},
		"no class":        {UsageStart: 0, UsageEnd: 10},
		"negative price":  {UsageStart: 0, UsageEnd: 10, Classification: ClassificationResidential, PricePerM3: dec(-1)},
		"negative tax":    {UsageStart: 0, UsageEnd: 10, Classification: ClassificationResidential, Tax: dec(-0.1)},
		"negative fee":    {UsageStart: 0, UsageEnd: 10, Classification: ClassificationResidential, ServiceFee: dec(-2)},
	}
	for name, tier := range cases {
		require.ErrorIsf(t, tier.Validate(), ErrInvalidTier, name)
	}
}

func TestFindOverlaps(t *testing.T) {
	require.Empty(t, FindOverlaps(residentialTiers()))

	tiers := append(residentialTiers(), RateTier{ID: 9, UsageStart: 10, UsageEnd: 12, Classification: ClassificationResidential})
	overlaps := FindOverlaps(tiers)
	require.Len(t, overlaps, 2)
	require.Equal(t, int64(1), overlaps[0].First.ID)
	require.Equal(t, int64(9), overlaps[0].Second.ID)
	require.Equal(t, int64(2), overlaps[1].First.ID)
}

func TestOverlapsIgnoresOtherRegion(t *testing.T) {
	a := RateTier{ID: 1, UsageStart: 0, UsageEnd: 10, Classification: ClassificationResidential, Region: "North"}
	b := RateTier{ID: 2, UsageStart: 0, UsageEnd: 10, Classification: ClassificationResidential, Region: "South"}
	require.False(t, a.Overlaps(b))
	b.Region = "north"
	require.True(t, a.Overlaps(b))
	b.Region = ""
	require.True(t, a.Overlaps(b))
}

func TestValidateTable(t *testing.T) {
	require.NoError(t, ValidateTable(residentialTiers()))

	overlapping := append(residentialTiers(), RateTier{ID: 5, UsageStart: 5, UsageEnd: 6, Classification: ClassificationCommercial})
	require.ErrorIs(t, ValidateTable(overlapping), ErrOverlappingTiers)

	invalid := append(residentialTiers(), RateTier{ID: 6, UsageStart: 30, UsageEnd: 25, Classification: ClassificationCommercial})
	require.ErrorIs(t, ValidateTable(invalid), ErrInvalidTier)
}

func TestNormalizeClassification(t *testing.T) {
	require.Equal(t, ClassificationCommercial, NormalizeClassification("  Commercial "))
}
