package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	rateapp "waterbill/internal/rating/application"
	rating "waterbill/internal/rating/domain"
	ratepg "waterbill/internal/rating/infrastructure/postgres"
	"waterbill/internal/rating/infrastructure/yamlfile"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Rate table management",
}

var ratesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a YAML rate file for invalid or overlapping tiers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tiers, err := yamlfile.Load(args[0])
		if err != nil {
			return err
		}
		if err := rating.ValidateTable(tiers); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tier(s) ok\n", args[0], len(tiers))
		return nil
	},
}

var ratesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Append the tiers of a YAML rate file to the rate table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tiers, err := yamlfile.Load(args[0])
		if err != nil {
			return err
		}
		service, logger, closeDB, err := dbRateService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()
		created, err := service.Import(cmd.Context(), tiers)
		if err != nil {
			return err
		}
		logger.Info("rate file imported", zap.String("file", args[0]), zap.Int("count", len(created)))
		fmt.Fprintf(cmd.OutOrStdout(), "%d tier(s) imported\n", len(created))
		return nil
	},
}

var ratesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the rate table as YAML to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		service, _, closeDB, err := dbRateService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()
		tiers, err := service.List(cmd.Context())
		if err != nil {
			return err
		}
		return yamlfile.Encode(cmd.OutOrStdout(), tiers)
	},
}

func init() {
	ratesCmd.AddCommand(ratesValidateCmd)
	ratesCmd.AddCommand(ratesImportCmd)
	ratesCmd.AddCommand(ratesExportCmd)
}

func dbRateService(cmd *cobra.Command) (*rateapp.RateService, *zap.Logger, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	service, err := rateapp.NewRateService(ratepg.NewRateRepository(db), rateapp.WithCacheTTL(0), rateapp.WithLogger(logger))
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return service, logger, func() { _ = db.Close() }, nil
}
