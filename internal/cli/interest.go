package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/visitor-store/internal/intent"
)

func init() {
	interestCmd := &cobra.Command{
		Use:   "interest",
		Short: "Lead intent collected this session",
	}

	markCmd := &cobra.Command{
		Use:   "mark <tag>",
		Short: "Mark interest in a department or service",
		Args:  cobra.ExactArgs(1),
		Run:   runInterestMark,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List interest tags",
		Run:   runInterestList,
	}

	rankCmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank quick links for this visitor",
		Long:  `Rank quick links read from stdin or --links as JSON: [{"label":"..","path":"..","tag":".."}].`,
		Run:   runInterestRank,
	}
	rankCmd.Flags().String("links", "", "JSON file of quick links (default: stdin)")

	interestCmd.AddCommand(markCmd, listCmd, rankCmd)
	RootCmd.AddCommand(interestCmd)
}

func runInterestMark(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	vc.Intent.MarkInterest(cmd.Context(), args[0])
	printJSON(cmd, vc.Intent.GetInterests(cmd.Context()))
}

func runInterestList(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	printJSON(cmd, vc.Intent.GetInterests(cmd.Context()))
}

func runInterestRank(cmd *cobra.Command, args []string) {
	file, _ := cmd.Flags().GetString("links")

	var data []byte
	var err error
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read links", err)
	}

	var links []intent.QuickLink
	if err := json.Unmarshal(data, &links); err != nil {
		exitErr("parse json", fmt.Errorf("links: %w", err))
	}

	vc := mustOpen(cmd)
	defer vc.Close()

	printJSON(cmd, vc.QuickLinks(cmd.Context(), links))
}
