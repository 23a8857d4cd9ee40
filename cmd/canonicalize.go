package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var canonicalizeCmd = &cobra.Command{
	Use:   "canonicalize [names...]",
	Short: "Print the canonical key for each region name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		canon, err := initCanonicalizer(cfg)
		if err != nil {
			return err
		}
		for _, name := range args {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, canon.Canonicalize(name))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(canonicalizeCmd)
}
