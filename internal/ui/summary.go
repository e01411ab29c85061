package ui

import (
	"fmt"
	"time"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
)

// RunSummary is printed when an emulator stops.
type RunSummary struct {
	Role        string
	Duration    time.Duration
	Sent        uint64
	Received    uint64
	Notices     uint64
	Other       uint64
	MeanLatency time.Duration
	MaxLatency  time.Duration
}

func RunSummaryView(title string, s RunSummary) string {
	t := prettytable.NewWriter()
	t.SetTitle(title)
	t.SetStyle(prettytable.StyleRounded)
	t.AppendHeader(prettytable.Row{"Metric", "Value"})
	t.AppendRows([]prettytable.Row{
		{"Role", s.Role},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
		{"Frames sent", s.Sent},
		{"Frames received", s.Received},
		{"Notices", s.Notices},
		{"Other frames", s.Other},
		{"Mean latency", formatLatency(s.MeanLatency)},
		{"Max latency", formatLatency(s.MaxLatency)},
	})
	return t.Render()
}

func RenderRunSummary(title string, s RunSummary) {
	fmt.Println(RunSummaryView(title, s))
}

func formatLatency(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Microsecond).String()
}
