package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	rateapp "waterbill/internal/rating/application"
	rating "waterbill/internal/rating/domain"
	ratememory "waterbill/internal/rating/infrastructure/memory"
	ratepg "waterbill/internal/rating/infrastructure/postgres"
	"waterbill/internal/rating/infrastructure/yamlfile"
)

var (
	quoteUsage     string
	quoteType      string
	quoteRegion    string
	quoteRatesFile string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a usage quantity against the rate table",
	Long: `Price a usage quantity. Rates come from --rates when given,
otherwise from the database.`,
	RunE: runQuote,
}

func init() {
	quoteCmd.Flags().StringVar(&quoteUsage, "usage", "", "usage in cubic meters [REQUIRED]")
	quoteCmd.Flags().StringVar(&quoteType, "type", "residential", "customer type")
	quoteCmd.Flags().StringVar(&quoteRegion, "region", "", "billing region")
	quoteCmd.Flags().StringVar(&quoteRatesFile, "rates", "", "YAML rate file to price against")
	_ = quoteCmd.MarkFlagRequired("usage")
}

func runQuote(cmd *cobra.Command, args []string) error {
	usage, err := rating.ParseUsage(quoteUsage)
	if err != nil {
		return err
	}

	var repo rating.Repository
	if quoteRatesFile != "" {
		tiers, err := yamlfile.Load(quoteRatesFile)
		if err != nil {
			return err
		}
		repo = ratememory.NewRateRepository(tiers...)
	} else {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = ratepg.NewRateRepository(db)
	}

	service, err := rateapp.NewRateService(repo, rateapp.WithCacheTTL(0))
	if err != nil {
		return err
	}
	result, err := service.Quote(cmd.Context(), rateapp.QuoteRequest{
		Usage:          usage,
		Classification: quoteType,
		Region:         quoteRegion,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Priced() {
		return fmt.Errorf("no rate tier covers %s m3 for %s", quoteUsage, quoteType)
	}
	return nil
}
