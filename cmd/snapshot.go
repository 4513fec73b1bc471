package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/gradectl/internal/analysis"
	"github.com/KaramelBytes/gradectl/internal/dataset"
	"github.com/KaramelBytes/gradectl/internal/export"
	"github.com/KaramelBytes/gradectl/internal/filter"
	"github.com/KaramelBytes/gradectl/internal/store"
	"github.com/KaramelBytes/gradectl/internal/utils"
)

var (
	snapDomain   bool
	snapClassify bool
	snapCSVPath  string
	snapXLSXPath string
	snapFilters  filterFlags
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Re-filter and summarize the stored dataset without ingesting anything",
	Long: `Reads the latest snapshot from the database, applies the filter flags and prints the
per-material statistics. Nothing is written to the database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		c, err := st.Snapshot(cmd.Context())
		if errors.Is(err, store.ErrNoSnapshot) {
			return fmt.Errorf("no dataset stored yet: run 'gradectl run <file>' first")
		}
		if err != nil {
			return err
		}
		if snapDomain {
			fmt.Fprintf(out, "✓ Snapshot: %d records\n", c.Len())
			printDomain(out, c)
			return nil
		}

		group, metricCols := snapFilters.group, snapFilters.metricColumns()
		if err := analysis.CheckColumns(c, group, metricCols); err != nil {
			return err
		}
		v := filter.Apply(c, snapFilters.overrides(cmd).Resolve(c))
		fmt.Fprintf(out, "✓ Filtered: %d of %d records\n", v.Len(), c.Len())

		if snapClassify {
			v, err = classifyView(cmd.Context(), v)
			if err != nil {
				return err
			}
		}

		stats, err := analysis.Summarize(v, group, metricCols)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, stats.Markdown())

		if snapCSVPath != "" {
			b, err := export.Text(v)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(snapCSVPath, b); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote %s\n", snapCSVPath)
		}
		if snapXLSXPath != "" {
			b, err := export.Spreadsheet(v, stats)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(snapXLSXPath, b); err != nil {
				return fmt.Errorf("write xlsx: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote %s\n", snapXLSXPath)
		}
		return nil
	},
}

// classifyView attaches predictions, degrading to the unclassified view with a
// warning when no usable model is configured.
func classifyView(ctx context.Context, v *dataset.View) (*dataset.View, error) {
	a, err := openClassifier(ctx)
	if err != nil {
		return nil, err
	}
	if !a.Available() {
		fmt.Fprintln(os.Stderr, "⚠ Warning: no trained model found; classification skipped")
		return v, nil
	}
	cv, err := a.Classify(ctx, v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: classification skipped: %v\n", err)
		return v, nil
	}
	return cv, nil
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().BoolVar(&snapDomain, "domain", false, "print the observed Profil/Material values and depth range only")
	snapshotCmd.Flags().BoolVar(&snapClassify, "classify", false, "apply the configured model to the filtered records")
	snapshotCmd.Flags().StringVar(&snapCSVPath, "csv", "", "write the filtered records as CSV to this path")
	snapshotCmd.Flags().StringVar(&snapXLSXPath, "xlsx", "", "write the two-sheet workbook to this path")
	snapFilters.register(snapshotCmd)
}
