package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/gateway"
	"github.com/symeon158/CVF-Survey-App/internal/seed"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

var seedOpts seed.Options

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Append synthetic responses to the configured gateway",
	Long: `Generates random, valid respondents and submits each one through the
survey form, so every row passes the same validation as a real submit.
Useful for demos and for measuring gateway throughput.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVarP(&seedOpts.Count, "count", "n", 100, "responses to append")
	seedCmd.Flags().IntVarP(&seedOpts.Workers, "workers", "w", 4, "concurrent respondents")
	seedCmd.Flags().Int64Var(&seedOpts.Seed, "seed", 42, "random seed")
	seedCmd.Flags().IntVar(&seedOpts.ReportEvery, "report-every", 1000, "progress log interval in rows")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := cfg.Validate(); err != nil {
		return err
	}
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	backend, err := gateway.Open(ctx, cfg, cat, logger)
	if err != nil {
		return fmt.Errorf("open %s gateway: %w", cfg.Gateway, err)
	}
	defer backend.Close()
	if ox, ok := backend.(*gateway.OxiDB); ok {
		if err := ox.EnsureIndexes(ctx); err != nil {
			return err
		}
	}

	form := survey.NewForm(cat, backend, survey.WithLocation(loc))
	stats, err := seed.Run(ctx, form, seedOpts, logger)
	logger.Info("seed finished",
		zap.Int("appended", stats.Appended),
		zap.Duration("elapsed", stats.Elapsed.Round(time.Millisecond)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%d rows appended to %s in %s (%.0f rows/s)\n",
		stats.Appended, backend.Name(), stats.Elapsed.Round(time.Millisecond), stats.Rate())
	return err
}
