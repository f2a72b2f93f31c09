package cli

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/visitor-store/internal/persist"
)

func init() {
	nsCmd := &cobra.Command{
		Use:   "ns",
		Short: "Namespace management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List record namespaces with their key counts",
		Run:   runNSList,
	}

	nsCmd.AddCommand(listCmd)
	RootCmd.AddCommand(nsCmd)
}

type nsRow struct {
	NS    string `json:"ns"`
	Tier  string `json:"tier"`
	Count int    `json:"count"`
}

func runNSList(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	var rows []nsRow
	for _, t := range persist.Tiers {
		counts := map[string]int{}
		for _, k := range vc.Records.Keys(cmd.Context(), t) {
			ns := ""
			if i := strings.Index(k, ":"); i >= 0 {
				ns = k[:i]
			}
			counts[ns]++
		}
		for ns, n := range counts {
			rows = append(rows, nsRow{NS: ns, Tier: t.String(), Count: n})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Tier != rows[j].Tier {
			return rows[i].Tier < rows[j].Tier
		}
		return rows[i].NS < rows[j].NS
	})
	if rows == nil {
		rows = []nsRow{}
	}
	printJSON(cmd, rows)
}
