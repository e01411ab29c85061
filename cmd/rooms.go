package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tapalogi/game-room/internal/emulator"
	"github.com/Tapalogi/game-room/internal/ui"
)

var flagRoomsAddr string

var roomsCmd = &cobra.Command{
	Use:     "rooms",
	Aliases: []string{"ls"},
	Short:   "List the open rooms of a running router",
	Long: `List the open rooms of a running router.

Examples:
  game-room rooms
  game-room rooms --addr https://rooms.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint, err := emulator.ParseEndpoint(flagRoomsAddr)
		if err != nil {
			return err
		}

		stopSpinner := ui.RunConnectionSpinner("Fetching rooms...")
		ids, err := emulator.ListRooms(cmd.Context(), endpoint)
		stopSpinner()
		if err != nil {
			return err
		}

		items := make([]ui.RoomTableItem, len(ids))
		for i, id := range ids {
			items[i] = ui.RoomTableItem{Index: i + 1, RoomID: id.String()}
		}
		ui.RenderRoomTable(items)
		fmt.Println(ui.MutedStyle.Render(fmt.Sprintf("%d open room(s) on %s", len(ids), endpoint)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(roomsCmd)
	roomsCmd.Flags().StringVarP(&flagRoomsAddr, "addr", "a", "localhost:7575", "Router address")
}
