package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/pipeprep"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of pipeprep",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pipeprep version %s\n", pipeprep.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
