package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var catalogFormat string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the effective survey catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch catalogFormat {
		case "yaml":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(cat); err != nil {
				return err
			}
			return enc.Close()
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(cat)
		case "columns":
			for _, c := range cat.Columns() {
				fmt.Fprintln(out, c)
			}
			return nil
		}
		return fmt.Errorf("unknown format %q (yaml, json, columns)", catalogFormat)
	},
}

func init() {
	catalogCmd.Flags().StringVarP(&catalogFormat, "format", "f", "yaml", "yaml, json or columns")
}
