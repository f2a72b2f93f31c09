package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update <key> [patch]",
		Short: "Merge a patch into a record",
		Long: `Shallow-merge a JSON object into a record's value. Non-object values
replace the record. An existing expiry is kept unless --ttl is given.`,
		Args: cobra.MinimumNArgs(1),
		Run:  runUpdate,
	}

	addRecordFlags(cmd)
	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	key := args[0]
	patch, err := readValue(args[1:])
	if err != nil {
		exitErr("update", err)
	}
	opts, err := recordOptions(cmd)
	if err != nil {
		exitErr("update", err)
	}

	vc := mustOpen(cmd)
	defer vc.Close()

	stored := vc.Records.Update(cmd.Context(), key, parseValue(patch), opts)
	printJSON(cmd, writeResult{
		Key:      key,
		Stored:   stored,
		Tier:     opts.Tier().String(),
		Category: string(opts.Category),
		Lifetime: string(opts.Lifetime),
	})
}
