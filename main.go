package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/config"
	"github.com/symeon158/CVF-Survey-App/internal/logging"
)

var (
	// Global flags
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cvfsurvey",
	Short: "CVF organizational culture survey",
	Long: `cvfsurvey serves the Competing Values Framework culture survey.

Respondents distribute exactly 100 points across the four culture types in
each of six sections; completed responses are appended as one row to the
configured store (memory, sheets, xlsx, sqlite, postgres or oxidb).

Configuration is read from the environment; see "cvfsurvey serve --help".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		var err error
		logger, err = logging.New(verbose, cfg.GELFAddr)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(serveCmd, exportCmd, catalogCmd, hashPasswordCmd)
}

// loadCatalog applies SURVEY_CATALOG and SURVEY_STEP.
func loadCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	if err := cat.SetStep(cfg.Step); err != nil {
		return nil, fmt.Errorf("SURVEY_STEP: %w", err)
	}
	return cat, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
