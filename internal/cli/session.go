package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Browsing session state",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start or resume the session",
		Run:   runSessionStart,
	}

	endCmd := &cobra.Command{
		Use:   "end",
		Short: "End the session, clearing every session-scoped record",
		Run:   runSessionEnd,
	}

	visitCmd := &cobra.Command{
		Use:   "visit <path>",
		Short: "Mark a path as visited this session",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionVisit,
	}

	visitedCmd := &cobra.Command{
		Use:   "visited",
		Short: "List the paths visited this session",
		Run:   runSessionVisited,
	}

	returningCmd := &cobra.Command{
		Use:   "returning",
		Short: "Report whether this is a returning visitor",
		Run:   runSessionReturning,
	}

	sessionCmd.AddCommand(startCmd, endCmd, visitCmd, visitedCmd, returningCmd)
	RootCmd.AddCommand(sessionCmd)
}

func runSessionStart(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	printJSON(cmd, vc.StartSession(cmd.Context()))
}

func runSessionEnd(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	vc.EndSession(cmd.Context())
	fmt.Fprintln(cmd.OutOrStdout(), `{"ok":true}`)
}

func runSessionVisit(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	vc.Session.MarkVisited(cmd.Context(), args[0])
	printJSON(cmd, vc.Session.GetVisited(cmd.Context()))
}

func runSessionVisited(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	printJSON(cmd, vc.Session.GetVisited(cmd.Context()))
}

func runSessionReturning(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	fmt.Fprintf(cmd.OutOrStdout(), `{"returning":%t}`+"\n", vc.Session.IsReturningUser(cmd.Context()))
}
