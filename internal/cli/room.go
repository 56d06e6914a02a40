package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Inspect live rooms",
	}
	cmd.AddCommand(newRoomListCmd(), newRoomGetCmd(), newRoomQRCmd())
	return cmd
}

func newRoomListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := client.Rooms(cmd.Context())
			if err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(*list)
			return nil
		},
	}
}

func newRoomGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <room-id>",
		Short: "Show a room's host and members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := client.Room(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(*room)
			return nil
		},
	}
}

func newRoomQRCmd() *cobra.Command {
	var (
		file string
		size int
	)

	cmd := &cobra.Command{
		Use:   "qr <room-id>",
		Short: "Save a room's invite QR code as a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			png, err := client.RoomQR(cmd.Context(), args[0], size)
			if err != nil {
				return err
			}
			if file == "" {
				file = args[0] + ".png"
			}
			if err := os.WriteFile(file, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", file, err)
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage("Saved invite to " + file)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "output path (default <room-id>.png)")
	cmd.Flags().IntVar(&size, "size", 0, "edge length in pixels (server default when 0)")
	return cmd
}
