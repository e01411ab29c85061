package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RoomTableItem is one row of the room listing.
type RoomTableItem struct {
	Index  int
	RoomID string
}

// RoomTableView renders open rooms using lipgloss/table.
func RoomTableView(items []RoomTableItem) string {
	if len(items) == 0 {
		return MutedStyle.Render("No open rooms")
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{fmt.Sprintf("%d", item.Index), item.RoomID})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Room ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func RenderRoomTable(items []RoomTableItem) {
	fmt.Println(RoomTableView(items))
}
