package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Tapalogi/game-room/internal/emulator"
	"github.com/Tapalogi/game-room/internal/logging"
	"github.com/Tapalogi/game-room/internal/ui"
)

var (
	flagEmuAddr     string
	flagEmuClientID string
	flagEmuRoomID   string
	flagEmuInterval time.Duration
	flagEmuDuration time.Duration
	flagEmuBody     string
	flagEmuEnvelope bool
	flagEmuLive     bool
	flagEmuDebug    bool
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a fake game server or client against a router",
}

var emulateServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Open a room and send a wave frame every interval",
	Long: `Open a room and send a wave frame every interval.

Clients running "game-room emulate client" acknowledge each wave, and the
round trip time is reported.

Examples:
  game-room emulate server
  game-room emulate server --client-id 6ba7b810-9dad-11d1-80b4-00c04fd430c8 --interval 10ms --live
  game-room emulate server --enveloped`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := emulatorConfig(true)
		if err != nil {
			return err
		}
		fmt.Println(ui.TitleStyle.Render(fmt.Sprintf("%s Server emulator, room %s", ui.IconRoom, cfg.ClientID)))
		return runEmulator(cmd.Context(), "server", cfg, emulator.RunServer)
	},
}

var emulateClientCmd = &cobra.Command{
	Use:   "client",
	Short: "Join a room and acknowledge every wave frame",
	Long: `Join a room and acknowledge every wave frame.

Examples:
  game-room emulate client --room-id 6ba7b810-9dad-11d1-80b4-00c04fd430c8
  game-room emulate client --room-id 6ba7b810-9dad-11d1-80b4-00c04fd430c8 --live`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := emulatorConfig(false)
		if err != nil {
			return err
		}
		fmt.Println(ui.TitleStyle.Render(fmt.Sprintf("%s Client emulator %s, room %s", ui.IconPeer, cfg.ClientID, cfg.RoomID)))
		return runEmulator(cmd.Context(), "client", cfg, emulator.RunClient)
	},
}

type runFunc func(context.Context, emulator.Config, chan<- emulator.Event) (emulator.Stats, error)

func emulatorConfig(server bool) (emulator.Config, error) {
	endpoint, err := emulator.ParseEndpoint(flagEmuAddr)
	if err != nil {
		return emulator.Config{}, err
	}

	clientID := uuid.Nil
	if flagEmuClientID != "" {
		if clientID, err = uuid.Parse(flagEmuClientID); err != nil {
			return emulator.Config{}, fmt.Errorf("invalid client id: %w", err)
		}
	} else if !server {
		clientID = uuid.New()
	}

	var roomID uuid.UUID
	if !server {
		if roomID, err = uuid.Parse(flagEmuRoomID); err != nil {
			return emulator.Config{}, fmt.Errorf("invalid room id: %w", err)
		}
	}

	body, err := hex.DecodeString(flagEmuBody)
	if err != nil {
		return emulator.Config{}, fmt.Errorf("invalid body: %w", err)
	}

	return emulator.Config{
		Endpoint:  endpoint,
		ClientID:  clientID,
		RoomID:    roomID,
		Interval:  flagEmuInterval,
		Body:      body,
		Enveloped: flagEmuEnvelope,
		Logger:    logging.New(flagEmuDebug),
	}, nil
}

func runEmulator(ctx context.Context, role string, cfg emulator.Config, run runFunc) error {
	if flagEmuDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flagEmuDuration)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var monitor *ui.MonitorUI
	if flagEmuLive {
		monitor = ui.NewMonitorUI(fmt.Sprintf("%s emulator on %s", role, cfg.Endpoint))
		monitor.Start()
		go func() {
			select {
			case <-monitor.Exited():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	events := make(chan emulator.Event, 64)
	type result struct {
		stats emulator.Stats
		err   error
	}
	done := make(chan result, 1)
	start := time.Now()

	stopSpinner := ui.RunConnectionSpinner("Connecting to router...")
	go func() {
		st, err := run(ctx, cfg, events)
		done <- result{st, err}
	}()

	connected := false
	for {
		select {
		case ev := <-events:
			if !connected {
				stopSpinner()
				connected = true
			}
			if monitor != nil {
				monitor.Update(monitorUpdate(ev))
			} else {
				printEvent(ev)
			}

		case res := <-done:
			stopSpinner()
			if monitor != nil {
				monitor.Stop()
			}
			if connected {
				fmt.Println()
				ui.RenderRunSummary(fmt.Sprintf("%s %s emulator", ui.IconWave, role), ui.RunSummary{
					Role:        role,
					Duration:    time.Since(start),
					Sent:        res.stats.Sent,
					Received:    res.stats.Received,
					Notices:     res.stats.Notices,
					Other:       res.stats.Other,
					MeanLatency: res.stats.MeanLatency(),
					MaxLatency:  res.stats.LatencyMax,
				})
			}
			if errors.Is(res.err, emulator.ErrRoomClosed) {
				ui.PrintWarning("Room closed by its server")
				return nil
			}
			return res.err
		}
	}
}

func monitorUpdate(ev emulator.Event) ui.MonitorUpdate {
	return ui.MonitorUpdate{
		Event:       describeEvent(ev),
		Sent:        ev.Stats.Sent,
		Received:    ev.Stats.Received,
		Notices:     ev.Stats.Notices,
		LastLatency: ev.Latency,
		MeanLatency: ev.Stats.MeanLatency(),
	}
}

func printEvent(ev emulator.Event) {
	switch ev.Kind {
	case emulator.EventConnected:
		ui.PrintSuccessf("Connected (%s)", ev.Peer)
	case emulator.EventJoin, emulator.EventLeave:
		fmt.Printf("%s %s\n", ui.IconPeer, ui.AccentStyle.Render(describeEvent(ev)))
	case emulator.EventOther:
		fmt.Println(ui.WarningStyle.Render(describeEvent(ev)))
	default:
		fmt.Println(ui.MutedStyle.Render(describeEvent(ev)))
	}
}

func describeEvent(ev emulator.Event) string {
	switch ev.Kind {
	case emulator.EventConnected:
		return fmt.Sprintf("connected %s", ev.Peer)
	case emulator.EventWaveSent:
		return fmt.Sprintf("-> wave #%d", ev.Seq)
	case emulator.EventWave:
		return fmt.Sprintf("<- wave #%d after %s", ev.Seq, ev.Latency.Round(time.Microsecond))
	case emulator.EventAck:
		return fmt.Sprintf("<- ack #%d rtt %s", ev.Seq, ev.Latency.Round(time.Microsecond))
	case emulator.EventJoin:
		return fmt.Sprintf("client %s joined", ev.Peer)
	case emulator.EventLeave:
		return fmt.Sprintf("client %s left", ev.Peer)
	default:
		return fmt.Sprintf("<- %d bytes %s", len(ev.Data), hex.EncodeToString(ev.Data))
	}
}

func init() {
	rootCmd.AddCommand(emulateCmd)
	emulateCmd.AddCommand(emulateServerCmd, emulateClientCmd)

	pf := emulateCmd.PersistentFlags()
	pf.StringVarP(&flagEmuAddr, "addr", "a", "localhost:7575", "Router address")
	pf.StringVarP(&flagEmuClientID, "client-id", "c", "", "Peer UUID (server default: all-zero, client default: random)")
	pf.DurationVar(&flagEmuDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	pf.BoolVar(&flagEmuLive, "live", false, "Show a live monitor instead of line output")
	pf.BoolVarP(&flagEmuDebug, "debug", "d", false, "Log emulator debug output")

	emulateServerCmd.Flags().DurationVarP(&flagEmuInterval, "interval", "i", time.Second, "Time between waves")
	emulateServerCmd.Flags().StringVar(&flagEmuBody, "body", "aabb", "Hex bytes attached to every wave")
	emulateServerCmd.Flags().BoolVar(&flagEmuEnvelope, "enveloped", false, "Decode envelopes and notices (router runs with --notify-server)")

	emulateClientCmd.Flags().StringVarP(&flagEmuRoomID, "room-id", "r", uuid.Nil.String(), "Room to join")
}
