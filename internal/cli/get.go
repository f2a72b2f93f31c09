package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Read a record",
		Long:  "Read a record's value. Missing, expired or unreadable records print the default.",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	cmd.Flags().BoolP("session", "s", false, "Read from the session tier")
	cmd.Flags().String("path", "", "Extract a field with a gjson path (e.g. departments.0)")
	cmd.Flags().String("default", "null", "JSON value printed when the record is absent")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	key := args[0]
	path, _ := cmd.Flags().GetString("path")
	def, _ := cmd.Flags().GetString("default")

	vc := mustOpen(cmd)
	defer vc.Close()

	raw, ok := vc.Records.Raw(cmd.Context(), key, readOptions(cmd))
	if ok && path != "" {
		res := gjson.GetBytes(raw, path)
		ok = res.Exists()
		raw = json.RawMessage(res.Raw)
	}
	if !ok {
		raw = parseValue(def)
	}

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		exitErr("get", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
}
