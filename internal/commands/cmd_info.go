package commands

import (
	"context"
	"fmt"
	"time"

	"meshgate/internal/domain"
)

func infoCommand() Command {
	return Command{
		Name: "INFO",
		Help: "INFO <node> - show everything known about one node",
		Execute: func(ctx context.Context, env *Env, nick string, args []string) {
			if len(args) != 1 {
				env.Responder.NoticeTo(nick, "Usage: INFO <node>")

				return
			}
			node, ok := env.resolveNode(nick, args[0])
			if !ok {
				return
			}

			notice := func(format string, a ...any) {
				env.Responder.NoticeTo(nick, fmt.Sprintf(format, a...))
			}
			notice("Node %s (%s)", node.DisplayName(), domain.FormatNodeNum(node.Num))
			if node.LongName != "" {
				notice("  Long name: %s", node.LongName)
			}
			notice("  Last heard: %s", formatAgo(node.LastHeardAt))
			if node.SNR != nil && node.RSSI != nil {
				quality := domain.DetermineSignalQuality(*node.SNR, *node.RSSI)
				notice("  Signal: SNR %.1f dB, RSSI %d dBm (%s)", *node.SNR, *node.RSSI, quality)
			}
			if m := node.Metrics; m != nil {
				if m.BatteryLevel != nil {
					notice("  Battery: %d%%", *m.BatteryLevel)
				}
				if m.Voltage != nil {
					notice("  Voltage: %.2fV", *m.Voltage)
				}
				if m.UptimeSeconds != nil {
					notice("  Uptime: %s", (time.Duration(*m.UptimeSeconds) * time.Second).String())
				}
			}
			if node.Position != nil {
				notice("  Position: %s", formatPosition(*node.Position))
			}
		},
	}
}

func formatPosition(pos domain.Position) string {
	line := fmt.Sprintf("%.5f, %.5f", pos.Latitude, pos.Longitude)
	if pos.Altitude != nil {
		line += fmt.Sprintf(" alt %dm", *pos.Altitude)
	}
	if !pos.Time.IsZero() {
		line += " (fix " + formatAgo(pos.Time) + ")"
	}

	return line
}
