package commands

import (
	"context"
	"fmt"
	"time"

	"meshgate/internal/domain"
)

func nodesCommand() Command {
	return Command{
		Name: "NODES",
		Help: "NODES - list known mesh nodes, most recently heard first",
		Execute: func(ctx context.Context, env *Env, nick string, args []string) {
			nodes := env.Nodes.SnapshotSorted()
			if len(nodes) == 0 {
				env.Responder.NoticeTo(nick, "No nodes heard yet")

				return
			}
			env.Responder.NoticeTo(nick, fmt.Sprintf("%d known node(s):", len(nodes)))
			for _, node := range nodes {
				env.Responder.NoticeTo(nick, formatNodeLine(node))
			}
		},
	}
}

func formatNodeLine(node domain.Node) string {
	line := fmt.Sprintf("%s %-4s", domain.FormatNodeNum(node.Num), node.ShortName)
	if node.LongName != "" {
		line += " " + node.LongName
	}
	line += " | heard " + formatAgo(node.LastHeardAt)
	if node.SNR != nil && node.RSSI != nil {
		quality := domain.DetermineSignalQuality(*node.SNR, *node.RSSI)
		line += fmt.Sprintf(" | SNR %.1f RSSI %d (%s)", *node.SNR, *node.RSSI, quality)
	}

	return line
}

func formatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm ago", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours())/24)
	}
}
