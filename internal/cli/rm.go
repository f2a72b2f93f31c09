package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <key>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	cmd.Flags().BoolP("session", "s", false, "Delete from the session tier")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	key := args[0]

	vc := mustOpen(cmd)
	defer vc.Close()

	opts := readOptions(cmd)
	vc.Records.Remove(cmd.Context(), key, opts)

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"key":%q,"tier":%q}`+"\n", key, opts.Tier())
}
