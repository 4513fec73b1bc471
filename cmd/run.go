package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/gradectl/internal/dataset"
	"github.com/KaramelBytes/gradectl/internal/metrics"
	"github.com/KaramelBytes/gradectl/internal/pipeline"
	"github.com/KaramelBytes/gradectl/internal/utils"
)

var (
	runSheet     string
	runDelimiter string
	runOutputDir string
	runNoWrite   bool
	runCSVPath   string
	runXLSXPath  string
	runQuiet     bool
	runFilters   filterFlags
)

var runCmd = &cobra.Command{
	Use:   "run <file|->",
	Short: "Ingest a sampling dataset and run the full grade-control pipeline",
	Long: `Validates the dataset, replaces the stored snapshot, filters it, classifies ore grade when a
model is available, prints per-material statistics, writes CSV/XLSX exports and appends the
filtered records to the classification log.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		raw, err := readTable(args[0], runSheet, runDelimiter)
		if err != nil {
			return err
		}

		// a broken model must fail before anything is persisted
		adapter, err := openClassifier(cmd.Context())
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		rec := metrics.NewRecorder()
		p := pipeline.New(pipeline.Deps{Store: st, Classifier: adapter, Metrics: rec})

		outDir := cfg.OutputDir
		if runOutputDir != "" {
			outDir = runOutputDir
		}
		if runNoWrite {
			outDir = ""
		}
		in := pipeline.Input{
			Table:       raw,
			Required:    dataset.RequiredColumns(cfg.FeatureColumns),
			GroupColumn: runFilters.group,
			Metrics:     runFilters.metricColumns(),
			OutputDir:   outDir,
		}
		res, runErr := p.Run(cmd.Context(), in, runFilters.overrides(cmd).Resolve)
		if cfg.MetricsTextfile != "" {
			if err := rec.WriteTextfile(cfg.MetricsTextfile); err != nil {
				fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
			}
		}
		if runErr != nil {
			return runErr
		}

		fmt.Fprintf(out, "✓ Ingested %d records from %s\n", res.Ingested, raw.Name)
		fmt.Fprintf(out, "✓ Filtered: %d of %d records\n", res.View.Len(), res.Ingested)
		if res.Classified() {
			fmt.Fprintf(out, "✓ Classified %d records (%s)\n", res.View.Len(), dataset.ColOreClass)
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "⚠ Warning: %s\n", w.Message)
		}
		if !runQuiet {
			fmt.Fprintln(out)
			fmt.Fprint(out, res.Stats.Markdown())
			fmt.Fprintln(out)
		}

		for _, f := range res.Files {
			fmt.Fprintf(out, "✓ Wrote %s\n", f)
		}
		if runCSVPath != "" {
			if err := utils.SafeWriteFile(runCSVPath, res.CSV); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote %s\n", runCSVPath)
		}
		if runXLSXPath != "" {
			if err := utils.SafeWriteFile(runXLSXPath, res.XLSX); err != nil {
				return fmt.Errorf("write xlsx: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote %s\n", runXLSXPath)
		}
		fmt.Fprintf(out, "✓ Logged run %s at %s\n", res.RunID, res.Timestamp.Format("2006-01-02 15:04:05"))
		zap.L().Info("run complete", zap.String("run_id", res.RunID), zap.Int("warnings", len(res.Warnings)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	runCmd.Flags().StringVar(&runDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (default by extension)")
	runCmd.Flags().StringVarP(&runOutputDir, "output-dir", "o", "", "directory for classified_data.csv and grade_control_export.xlsx (overrides config)")
	runCmd.Flags().BoolVar(&runNoWrite, "no-write", false, "do not write export files to the output directory")
	runCmd.Flags().StringVar(&runCSVPath, "csv", "", "also write the CSV export to this path")
	runCmd.Flags().StringVar(&runXLSXPath, "xlsx", "", "also write the XLSX export to this path")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "do not print statistics")
	runFilters.register(runCmd)
}
