package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/gradectl/internal/utils"
)

var (
	histJSON bool
	histRows bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List runs recorded in the classification log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if histRows {
			log, err := st.ReadLog(cmd.Context())
			if err != nil {
				return err
			}
			if len(log.Columns) == 0 {
				fmt.Fprintln(out, "No runs logged yet")
				return nil
			}
			fmt.Fprintln(out, strings.Join(log.Columns, "\t"))
			for _, row := range log.Rows {
				fmt.Fprintln(out, strings.Join(row, "\t"))
			}
			return nil
		}

		runs, err := st.Runs(cmd.Context())
		if err != nil {
			return err
		}
		if histJSON {
			type runJSON struct {
				RunID     string `json:"run_id"`
				CreatedAt string `json:"created_at"`
				Records   int    `json:"records"`
			}
			list := make([]runJSON, 0, len(runs))
			for _, r := range runs {
				list = append(list, runJSON{RunID: r.ID, CreatedAt: r.CreatedAt, Records: r.Records})
			}
			b, err := utils.PrettyJSON(list)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs logged yet")
			return nil
		}
		total := 0
		fmt.Fprintf(out, "%-20s  %-36s  %s\n", "CREATED_AT", "RUN_ID", "RECORDS")
		for _, r := range runs {
			fmt.Fprintf(out, "%-20s  %-36s  %d\n", r.CreatedAt, r.ID, r.Records)
			total += r.Records
		}
		fmt.Fprintf(out, "✓ %d runs, %d log entries\n", len(runs), total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&histJSON, "json", false, "print runs as JSON")
	historyCmd.Flags().BoolVar(&histRows, "rows", false, "print every log row (tab separated)")
}
