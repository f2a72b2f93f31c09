package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	journeyCmd := &cobra.Command{
		Use:   "journey",
		Short: "Pages visited this session",
	}

	addCmd := &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Record a page view",
		Args:  cobra.ExactArgs(2),
		Run:   runJourneyAdd,
	}
	addCmd.Flags().StringP("tag", "t", "", "Interest tag of the page (department or service)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the journey, oldest first",
		Run:   runJourneyList,
	}

	prevCmd := &cobra.Command{
		Use:   "prev",
		Short: "Show the page before the current one",
		Run:   runJourneyPrev,
	}

	hasCmd := &cobra.Command{
		Use:   "has <name>",
		Short: "Report whether a page name is in the journey",
		Args:  cobra.ExactArgs(1),
		Run:   runJourneyHas,
	}

	journeyCmd.AddCommand(addCmd, listCmd, prevCmd, hasCmd)
	RootCmd.AddCommand(journeyCmd)
}

func runJourneyAdd(cmd *cobra.Command, args []string) {
	tag, _ := cmd.Flags().GetString("tag")

	vc := mustOpen(cmd)
	defer vc.Close()

	vc.Visit(cmd.Context(), args[0], args[1], tag)
	printJSON(cmd, vc.Journey.GetJourney(cmd.Context()))
}

func runJourneyList(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	entries := vc.Journey.GetJourney(cmd.Context())
	if !textOutput() {
		printJSON(cmd, entries)
		return
	}
	for i, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%2d. %-24s %-32s %s\n",
			i+1, e.PageName, e.URL, humanize.Time(time.UnixMilli(e.Timestamp)))
	}
}

func runJourneyPrev(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	prev, ok := vc.Journey.GetPreviousPage(cmd.Context())
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "null")
		return
	}
	printJSON(cmd, prev)
}

func runJourneyHas(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	fmt.Fprintf(cmd.OutOrStdout(), `{"name":%q,"visited":%t}`+"\n", args[0], vc.Journey.HasVisited(cmd.Context(), args[0]))
}
