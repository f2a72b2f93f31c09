package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	perfCmd := &cobra.Command{
		Use:   "perf",
		Short: "Performance samples (analytics consent required)",
	}

	recordCmd := &cobra.Command{
		Use:   "record <metric> <duration>",
		Short: "Record a timing sample (e.g. lcp 1200ms)",
		Args:  cobra.ExactArgs(2),
		Run:   runPerfRecord,
	}

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarise samples per metric",
		Run:   runPerfSummary,
	}

	perfCmd.AddCommand(recordCmd, summaryCmd)
	RootCmd.AddCommand(perfCmd)
}

func runPerfRecord(cmd *cobra.Command, args []string) {
	d, err := parseTTL(args[1])
	if err != nil {
		exitErr("perf record", err)
	}

	vc := mustOpen(cmd)
	defer vc.Close()

	ok := vc.Perf.Record(cmd.Context(), args[0], d)
	fmt.Fprintf(cmd.OutOrStdout(), `{"metric":%q,"stored":%t}`+"\n", args[0], ok)
}

func runPerfSummary(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	printJSON(cmd, vc.Perf.Summary(cmd.Context()))
}
