// bilichat - Live-room chat client for Bilibili
// Listens to a room's danmaku stream and sends messages from the terminal.
// License: MIT
//
// Copyright (c) 2026 bilichat contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/bilichat/cmd/bilichat/internal"
	"github.com/tinyland-inc/bilichat/cmd/bilichat/internal/authcmd"
	"github.com/tinyland-inc/bilichat/cmd/bilichat/internal/chat"
	"github.com/tinyland-inc/bilichat/cmd/bilichat/internal/listen"
	"github.com/tinyland-inc/bilichat/cmd/bilichat/internal/send"
	"github.com/tinyland-inc/bilichat/cmd/bilichat/internal/version"
)

func NewBilichatCommand() *cobra.Command {
	short := fmt.Sprintf("%s bilichat - Bilibili live chat client v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:          "bilichat",
		Short:        short,
		Example:      "bilichat chat --room 32362442",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String(internal.ConfigFlag, "",
		"Config file path (default: ~/.bilichat/config.json)")

	cmd.AddCommand(
		chat.NewChatCommand(),
		listen.NewListenCommand(),
		send.NewSendCommand(),
		authcmd.NewAuthCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewBilichatCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
