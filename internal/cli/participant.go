package cli

import (
	"github.com/spf13/cobra"
)

func newParticipantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participant",
		Short: "Inspect connected participants",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <participant-id>",
		Short: "Show when a participant connected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := client.Participant(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(*p)
			return nil
		},
	})
	return cmd
}
