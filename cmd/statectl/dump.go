package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newDumpCmd(opts *options) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the persisted session state maps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			snap := store.Snapshot()
			var out []byte
			switch format {
			case "json":
				out, err = json.MarshalIndent(snap, "", "  ")
				out = append(out, '\n')
			case "yaml", "yml":
				out, err = yaml.Marshal(snap)
			default:
				return fmt.Errorf("unsupported format %q (use json or yaml)", format)
			}
			if err != nil {
				return fmt.Errorf("encode state failed: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	return cmd
}
