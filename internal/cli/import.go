package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/visitor-store/internal/visitor"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a profile from JSON",
		Long:  "Import a profile from JSON on stdin. Expects the format produced by export.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var snap visitor.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		exitErr("parse json", err)
	}

	vc := mustOpen(cmd)
	defer vc.Close()

	res, err := vc.Import(cmd.Context(), snap)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"imported":%d,"skipped":%d}`+"\n", res.Imported, res.Skipped)
}
