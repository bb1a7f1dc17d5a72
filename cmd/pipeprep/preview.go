package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/pipeprep/internal/presentation/tui"
	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/preview"
)

var previewCmd = &cobra.Command{
	Use:   "preview [outputs.json|-]",
	Short: "Render the chunk preview of a test run's outputs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		limit := cfg.Preview.Limit
		if cmd.Flags().Changed("limit") {
			limit, _ = cmd.Flags().GetInt("limit")
		}

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		var outputs domain.PreviewOutputs
		if err := json.NewDecoder(in).Decode(&outputs); err != nil {
			return fmt.Errorf("invalid outputs: %w", err)
		}
		chunks, err := preview.Format(&outputs, limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(chunks)
		}

		render := tui.NewRenderer(os.Stdout)
		text, err := render(preview.Render(chunks))
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, text)
		return err
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().Int("limit", preview.DefaultLimit, "Maximum chunks to show")
	previewCmd.Flags().Bool("json", false, "Print the chunks as JSON")
}
