package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newForgetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <workspace-id>",
		Short: "Remove the session state of one workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid workspace id %q", args[0])
			}
			store, closeFn, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			if store.Forget(cmd.Context(), uint(id)) {
				fmt.Fprintf(cmd.OutOrStdout(), "forgot workspace %d\n", id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "no state stored for workspace %d\n", id)
			return nil
		},
	}
}
