package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/gradectl/internal/dataset"
)

var (
	valSheet     string
	valDelimiter string
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|->",
	Short: "Check a dataset against the required sampling schema without storing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		raw, err := readTable(args[0], valSheet, valDelimiter)
		if err != nil {
			return err
		}
		c, err := dataset.Validate(raw, dataset.RequiredColumns(cfg.FeatureColumns))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ %s: %d records, %d columns\n", raw.Name, c.Len(), len(c.Columns()))
		for _, col := range c.Columns() {
			fmt.Fprintf(out, "  - %s (%s)\n", col.Name, col.Kind)
		}
		if c.Len() > 0 {
			fmt.Fprintln(out, "Domain:")
			printDomain(out, c)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&valSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	validateCmd.Flags().StringVar(&valDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (default by extension)")
}
