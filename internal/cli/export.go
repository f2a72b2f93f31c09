package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the profile as JSON",
		Long:  "Export the consent decision and every live record as JSON. Expired records are purged, not exported.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	printJSON(cmd, vc.Export(cmd.Context()))
}
