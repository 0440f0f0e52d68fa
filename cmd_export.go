package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/export"
	"github.com/symeon158/CVF-Survey-App/internal/gateway"
)

var (
	exportOut   string
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored responses to an xlsx workbook",
	Long: `Reads rows back from the configured gateway and writes a workbook with a
Responses sheet and a Summary sheet holding the mean allocation per culture
type in every section.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "cvf_export.xlsx", "output file")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "export only the most recent N rows (0 = all)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := cfg.Validate(); err != nil {
		return err
	}
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	backend, err := gateway.Open(ctx, cfg, cat, logger)
	if err != nil {
		return fmt.Errorf("open %s gateway: %w", cfg.Gateway, err)
	}
	defer backend.Close()

	rows, err := backend.ReadRows(ctx, exportLimit)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}

	f, err := os.Create(exportOut)
	if err != nil {
		return err
	}
	if err := export.WriteWorkbook(f, cat, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("export written", zap.String("path", exportOut), zap.Int("rows", len(rows)))
	fmt.Fprintf(cmd.OutOrStdout(), "%d rows written to %s\n", len(rows), exportOut)
	return nil
}
