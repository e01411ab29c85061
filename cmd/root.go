package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tapalogi/game-room/internal/ui"
	"github.com/Tapalogi/game-room/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "game-room",
	Short: "WebSocket room router for game servers and their clients",
	Long: `game-room routes WebSocket traffic between a game server and its clients.

A game server opens a room under its own UUID; clients join that room by id.
Frames from the server are fanned out to every client in the room, and frames
from a client are delivered to the server only. The router never inspects
payloads.`,
	Version: version.Version,
}

// Execute runs the root command. Interrupts cancel the command's context so
// long-running commands can shut down cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
