// Package yamlfile reads and writes rate tables as YAML documents.
package yamlfile

import (
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	rating "waterbill/internal/rating/domain"
)

// File is the on-disk rate table layout.
type File struct {
	Rates []Tier `yaml:"rates"`
}

// Tier is one rate row. Money fields are decimal strings so files keep
// exact cents.
type Tier struct {
	ID             int64   `yaml:"id,omitempty"`
	UsageTierStart float64 `yaml:"usage_tier_start"`
	UsageTierEnd   float64 `yaml:"usage_tier_end"`
	PricePerM3     string  `yaml:"price_per_m3"`
	CustomerType   string  `yaml:"customer_type"`
	Region         string  `yaml:"region,omitempty"`
	Tax            string  `yaml:"tax"`
	ServiceFee     string  `yaml:"service_fee"`
}

// Load reads a rate file from disk.
func Load(path string) ([]rating.RateTier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tiers, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tiers, nil
}

// Decode parses a rate document. Rows are returned in file order.
func Decode(r io.Reader) ([]rating.RateTier, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	tiers := make([]rating.RateTier, 0, len(file.Rates))
	for i, row := range file.Rates {
		tier, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("rates[%d]: %w", i, err)
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}

// Encode writes tiers as a rate document.
func Encode(w io.Writer, tiers []rating.RateTier) error {
	file := File{Rates: make([]Tier, 0, len(tiers))}
	for _, tier := range tiers {
		file.Rates = append(file.Rates, Tier{
			ID:             tier.ID,
			UsageTierStart: tier.UsageStart,
			UsageTierEnd:   tier.UsageEnd,
			PricePerM3:     tier.PricePerM3.String(),
			CustomerType:   tier.Classification.String(),
			Region:         tier.Region,
			Tax:            tier.Tax.String(),
			ServiceFee:     tier.ServiceFee.String(),
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return err
	}
	return enc.Close()
}

func (t Tier) toDomain() (rating.RateTier, error) {
	price, err := parseAmount("price_per_m3", t.PricePerM3)
	if err != nil {
		return rating.RateTier{}, err
	}
	tax, err := parseAmount("tax", t.Tax)
	if err != nil {
		return rating.RateTier{}, err
	}
	fee, err := parseAmount("service_fee", t.ServiceFee)
	if err != nil {
		return rating.RateTier{}, err
	}
	return rating.RateTier{
		ID:             t.ID,
		UsageStart:     t.UsageTierStart,
		UsageEnd:       t.UsageTierEnd,
		PricePerM3:     price,
		Classification: rating.NormalizeClassification(t.CustomerType),
		Region:         t.Region,
		Tax:            tax,
		ServiceFee:     fee,
	}, nil
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %q: %w", field, raw, err)
	}
	return value, nil
}
