package commands

import (
	"context"
	"fmt"
	"strings"
)

func sendCommand() Command {
	return Command{
		Name: "SEND",
		Help: "SEND <text> - broadcast text on the mesh primary channel",
		Execute: func(ctx context.Context, env *Env, nick string, args []string) {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				env.Responder.NoticeTo(nick, "Usage: SEND <text>")

				return
			}
			id, err := env.Mesh.SendText(env.DefaultChannel, text)
			if err != nil {
				env.Responder.NoticeTo(nick, "Send failed: "+err.Error())

				return
			}
			env.Logger.Info("broadcast queued", "nick", nick, "packet_id", id, "bytes", len(text))
			env.Responder.NoticeTo(nick, fmt.Sprintf("Broadcast sent on channel %d", env.DefaultChannel))
		},
	}
}
