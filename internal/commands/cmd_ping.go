package commands

import (
	"context"
	"fmt"
	"time"

	"meshgate/internal/pending"
)

func pingCommand() Command {
	return Command{
		Name: "PING",
		Help: "PING <node> - request an over-the-air echo from one node",
		Execute: func(ctx context.Context, env *Env, nick string, args []string) {
			if len(args) != 1 {
				env.Responder.NoticeTo(nick, "Usage: PING <node>")

				return
			}
			node, ok := env.resolveNode(nick, args[0])
			if !ok {
				return
			}

			id, err := env.Mesh.Ping(node.Num)
			if err != nil {
				env.Responder.NoticeTo(nick, "Ping failed: "+err.Error())

				return
			}
			env.Pending.Register(id, pending.Request{
				Kind:       pending.KindPing,
				Nick:       nick,
				TargetNum:  node.Num,
				TargetName: node.DisplayName(),
				CreatedAt:  time.Now(),
			})
			env.Responder.NoticeTo(nick, fmt.Sprintf("Ping sent to %s", node.DisplayName()))
		},
	}
}
