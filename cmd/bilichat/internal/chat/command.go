package chat

import (
	"github.com/spf13/cobra"
)

func NewChatCommand() *cobra.Command {
	var (
		debug bool
		room  int64
	)

	cmd := &cobra.Command{
		Use:     "chat",
		Aliases: []string{"c"},
		Short:   "Listen to a live room and send messages interactively",
		Args:    cobra.NoArgs,
		Example: `  bilichat chat
  bilichat chat --room 32362442`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return chatCmd(cmd, room, debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().Int64VarP(&room, "room", "r", 0, "Room id (default: first configured room)")

	return cmd
}
