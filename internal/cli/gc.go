package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Purge expired and malformed records",
		Run:   runGC,
	}

	RootCmd.AddCommand(cmd)
}

func runGC(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	n := vc.Records.Sweep(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"removed":%d}`+"\n", n)
}
