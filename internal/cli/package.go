package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	packageCmd := &cobra.Command{
		Use:   "package",
		Short: "Pricing package interest",
	}

	viewCmd := &cobra.Command{
		Use:   "view <package>",
		Short: "Count a view of a pricing package",
		Args:  cobra.ExactArgs(1),
		Run:   runPackageView,
	}

	topCmd := &cobra.Command{
		Use:   "top",
		Short: "List the most viewed packages",
		Run:   runPackageTop,
	}
	topCmd.Flags().IntP("limit", "n", 3, "Number of packages")

	packageCmd.AddCommand(viewCmd, topCmd)
	RootCmd.AddCommand(packageCmd)
}

func runPackageView(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	n := vc.Packages.Bump(cmd.Context(), args[0])
	printJSON(cmd, map[string]any{"package": args[0], "views": n})
}

func runPackageTop(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	vc := mustOpen(cmd)
	defer vc.Close()

	top := vc.Packages.Top(cmd.Context(), limit)
	if top == nil {
		printJSON(cmd, []any{})
		return
	}
	printJSON(cmd, top)
}
