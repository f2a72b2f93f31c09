package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	scrollCmd := &cobra.Command{
		Use:   "scroll",
		Short: "Remembered scroll positions",
	}

	saveCmd := &cobra.Command{
		Use:   "save <path> <y>",
		Short: "Remember the scroll position of a page",
		Args:  cobra.ExactArgs(2),
		Run:   runScrollSave,
	}

	getCmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Show the remembered position (0 if none)",
		Args:  cobra.ExactArgs(1),
		Run:   runScrollGet,
	}

	scrollCmd.AddCommand(saveCmd, getCmd)
	RootCmd.AddCommand(scrollCmd)
}

func runScrollSave(cmd *cobra.Command, args []string) {
	y, err := strconv.Atoi(args[1])
	if err != nil {
		exitErr("scroll save", fmt.Errorf("invalid position %q", args[1]))
	}

	vc := mustOpen(cmd)
	defer vc.Close()

	ok := vc.Scroll.Save(cmd.Context(), args[0], y)
	fmt.Fprintf(cmd.OutOrStdout(), `{"path":%q,"y":%d,"stored":%t}`+"\n", args[0], y, ok)
}

func runScrollGet(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	fmt.Fprintf(cmd.OutOrStdout(), `{"path":%q,"y":%d}`+"\n", args[0], vc.Scroll.Get(cmd.Context(), args[0]))
}
