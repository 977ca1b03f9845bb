package authcmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/bilichat/cmd/bilichat/internal"
	"github.com/tinyland-inc/bilichat/pkg/auth"
	"github.com/tinyland-inc/bilichat/pkg/config"
)

func NewAuthCommand() *cobra.Command {
	var room int64

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Store the login cookie used to send messages",
		Args:  cobra.NoArgs,
		Example: `  bilichat auth
  bilichat auth --room 32362442`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return authCmd(internal.ConfigPath(cmd), os.Stdin, room)
		},
	}

	cmd.Flags().Int64VarP(&room, "room", "r", 0, "Also make this the default room")

	return cmd
}

func authCmd(path string, in io.Reader, room int64) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	cred, err := auth.ReadCookie(in)
	if err != nil {
		return err
	}

	cfg.Credential = config.CredentialConfig{
		SessData: cred.SessData,
		BiliJct:  cred.CSRF,
	}
	if room > 0 {
		cfg.Rooms = append([]int64{room}, removeRoom(cfg.Rooms, room)...)
	}

	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	fmt.Printf("%s Credential saved to %s\n", internal.Logo, path)
	return nil
}

func removeRoom(rooms []int64, room int64) []int64 {
	out := make([]int64, 0, len(rooms))
	for _, r := range rooms {
		if r != room {
			out = append(out, r)
		}
	}
	return out
}
