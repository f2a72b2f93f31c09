package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rcliao/visitor-store/internal/persist"
	"github.com/rcliao/visitor-store/internal/record"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show record and database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type statsReport struct {
	Records record.Stats   `json:"records"`
	Storage *persist.Stats `json:"storage,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	rep := statsReport{Records: vc.Records.Stats(cmd.Context())}
	if vc.SQLite != nil {
		st, err := vc.SQLite.Stats(cmd.Context())
		if err != nil {
			exitErr("stats", err)
		}
		rep.Storage = st
	}

	if !textOutput() {
		printJSON(cmd, rep)
		return
	}

	out := cmd.OutOrStdout()
	for _, t := range persist.Tiers {
		fmt.Fprintf(out, "%-10s %s records\n", t, humanize.Comma(int64(rep.Records.Tiers[t.String()])))
	}
	for cat, n := range rep.Records.Categories {
		fmt.Fprintf(out, "  %-10s %s\n", cat, humanize.Comma(int64(n)))
	}
	fmt.Fprintf(out, "expired    %d (run gc to purge)\n", rep.Records.Expired)
	fmt.Fprintf(out, "malformed  %d\n", rep.Records.Malformed)
	if rep.Storage != nil {
		fmt.Fprintf(out, "database   %s (%s, %s entries)\n",
			rep.Storage.DBPath, humanize.Bytes(uint64(rep.Storage.DBSizeBytes)), humanize.Comma(int64(rep.Storage.TotalEntries)))
		for _, s := range rep.Storage.Scopes {
			last := s.LastUpdated
			if ts, err := time.Parse(time.RFC3339, s.LastUpdated); err == nil {
				last = humanize.Time(ts)
			}
			fmt.Fprintf(out, "  %-10s %s entries, updated %s\n", s.Scope, humanize.Comma(int64(s.Entries)), last)
		}
	}
}
