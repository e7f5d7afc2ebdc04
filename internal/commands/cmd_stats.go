package commands

import (
	"context"
	"fmt"
	"time"

	"meshgate/internal/domain"
)

func statsCommand() Command {
	return Command{
		Name: "STATS",
		Help: "STATS - show gateway uptime and counters",
		Execute: func(ctx context.Context, env *Env, nick string, args []string) {
			uptime := time.Since(env.StartedAt).Round(time.Second)
			env.Responder.NoticeTo(nick, fmt.Sprintf("Uptime: %s | Clients: %d | Nodes: %d | Pending requests: %d",
				uptime, env.SessionCount(), env.Nodes.Len(), env.Pending.Len()))
			if num, ok := env.Mesh.MyNodeNum(); ok {
				env.Responder.NoticeTo(nick, "Gateway node: "+domain.FormatNodeNum(num))
			} else {
				env.Responder.NoticeTo(nick, "Gateway node: not yet known (radio config pending)")
			}
		},
	}
}
