package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"meshgate/internal/pending"
)

func dmCommand() Command {
	return Command{
		Name: "DM",
		Help: "DM <node> <text> - direct message one node; delivery is reported back",
		Execute: func(ctx context.Context, env *Env, nick string, args []string) {
			if len(args) < 2 {
				env.Responder.NoticeTo(nick, "Usage: DM <node> <text>")

				return
			}
			node, ok := env.resolveNode(nick, args[0])
			if !ok {
				return
			}
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			if text == "" {
				env.Responder.NoticeTo(nick, "Usage: DM <node> <text>")

				return
			}

			id, err := env.Mesh.SendDirect(node.Num, text, true)
			if err != nil {
				env.Responder.NoticeTo(nick, "DM failed: "+err.Error())

				return
			}
			env.Pending.Register(id, pending.Request{
				Kind:       pending.KindDirectMessage,
				Nick:       nick,
				TargetNum:  node.Num,
				TargetName: node.DisplayName(),
				CreatedAt:  time.Now(),
			})
			env.Logger.Info("direct message queued", "nick", nick, "target", node.DisplayName(), "packet_id", id)
			env.Responder.NoticeTo(nick, fmt.Sprintf("DM queued to %s, awaiting delivery (timeout %s)",
				node.DisplayName(), env.AckTimeout))
		},
	}
}
