package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	prefsCmd := &cobra.Command{
		Use:   "prefs",
		Short: "Visitor preferences",
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Read a preference, or the device flags without a key",
		Args:  cobra.MaximumNArgs(1),
		Run:   runPrefsGet,
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a preference",
		Args:  cobra.MinimumNArgs(2),
		Run:   runPrefsSet,
	}
	setCmd.Flags().Bool("merge", false, "Shallow-merge into the existing value")

	incrCmd := &cobra.Command{
		Use:   "incr <key> <field>",
		Short: "Increment a counter field of a preference",
		Args:  cobra.ExactArgs(2),
		Run:   runPrefsIncr,
	}

	prefsCmd.AddCommand(getCmd, setCmd, incrCmd)
	RootCmd.AddCommand(prefsCmd)
}

func runPrefsGet(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	if len(args) == 0 {
		printJSON(cmd, vc.Prefs.Flags(cmd.Context()))
		return
	}
	var v json.RawMessage
	if !vc.Prefs.Get(cmd.Context(), args[0], &v) {
		fmt.Fprintln(cmd.OutOrStdout(), "null")
		return
	}
	printJSON(cmd, v)
}

func runPrefsSet(cmd *cobra.Command, args []string) {
	merge, _ := cmd.Flags().GetBool("merge")
	value, err := readValue(args[1:])
	if err != nil {
		exitErr("prefs set", err)
	}

	vc := mustOpen(cmd)
	defer vc.Close()

	var stored bool
	if merge {
		stored = vc.Prefs.Update(cmd.Context(), args[0], parseValue(value))
	} else {
		stored = vc.Prefs.Set(cmd.Context(), args[0], parseValue(value))
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"key":%q,"stored":%t}`+"\n", args[0], stored)
}

func runPrefsIncr(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	n := vc.Prefs.Increment(cmd.Context(), args[0], args[1])
	fmt.Fprintf(cmd.OutOrStdout(), `{"key":%q,"field":%q,"count":%d}`+"\n", args[0], args[1], n)
}
