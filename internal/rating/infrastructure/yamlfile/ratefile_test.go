package yamlfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	rating "waterbill/internal/rating/domain"
)

const sample = `
rates:
  - usage_tier_start: 0
    usage_tier_end: 10
    price_per_m3: "5.00"
    customer_type: Residential
    tax: "0.15"
    service_fee: "5"
  - usage_tier_start: 11
    usage_tier_end: 20
    price_per_m3: "10.00"
    customer_type: residential
    region: North
    tax: "0.15"
    service_fee: "5"
`

func TestDecode(t *testing.T) {
	tiers, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	require.Equal(t, rating.ClassificationResidential, tiers[0].Classification)
	require.True(t, decimal.RequireFromString("0.15").Equal(tiers[0].Tax))
	require.Equal(t, "North", tiers[1].Region)
	require.NoError(t, rating.ValidateTable(tiers))
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(strings.NewReader("rates:\n  - price_per_m3: abc\n"))
	require.ErrorContains(t, err, "rates[0]")

	_, err = Decode(strings.NewReader("rates:\n  - colour: blue\n"))
	require.Error(t, err)

	tiers, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, tiers)
}

func TestEncodeThenLoad(t *testing.T) {
	tiers, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, tiers))
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.True(t, tiers[1].PricePerM3.Equal(loaded[1].PricePerM3))
	require.Equal(t, tiers[1].Region, loaded[1].Region)
}
