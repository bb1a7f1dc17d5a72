package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aretw0/pipeprep/pkg/adapters/loam"
	"github.com/aretw0/pipeprep/pkg/registry"
)

var datasourcesCmd = &cobra.Command{
	Use:   "datasources",
	Short: "List the datasources of the pipeline graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		graph, err := loam.Open(cfg.GraphDir)
		if err != nil {
			return err
		}
		nodes, err := graph.Nodes(cmd.Context())
		if err != nil {
			return err
		}
		options := registry.ListDatasources(nodes)

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(options)
		}

		if len(options) == 0 {
			fmt.Fprintln(out, "No datasources found.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NODE\tLABEL\tKIND\tPLUGIN")
		for _, opt := range options {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", opt.Value, opt.Label, opt.Data.ProviderType, opt.Data.PluginID)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(datasourcesCmd)
	datasourcesCmd.Flags().Bool("json", false, "Print as JSON")
}
