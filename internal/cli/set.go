package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Write a record",
		Long: `Write a record. The value can be a positional arg or piped via stdin;
valid JSON is stored as JSON, anything else as a string. Writes of a
category without consent are dropped and reported as stored=false.`,
		Args: cobra.MinimumNArgs(1),
		Run:  runSet,
	}

	addRecordFlags(cmd)
	RootCmd.AddCommand(cmd)
}

type writeResult struct {
	Key      string `json:"key"`
	Stored   bool   `json:"stored"`
	Tier     string `json:"tier"`
	Category string `json:"category"`
	Lifetime string `json:"lifetime"`
}

func runSet(cmd *cobra.Command, args []string) {
	key := args[0]
	value, err := readValue(args[1:])
	if err != nil {
		exitErr("set", err)
	}
	opts, err := recordOptions(cmd)
	if err != nil {
		exitErr("set", err)
	}

	vc := mustOpen(cmd)
	defer vc.Close()

	stored := vc.Records.Set(cmd.Context(), key, parseValue(value), opts)
	printJSON(cmd, writeResult{
		Key:      key,
		Stored:   stored,
		Tier:     opts.Tier().String(),
		Category: string(opts.Category),
		Lifetime: string(opts.Lifetime),
	})
}
