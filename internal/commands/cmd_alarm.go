package commands

import (
	"context"
	"fmt"
	"strings"
)

// alarmPrefix marks urgent traffic so mesh-side clients can highlight it.
const alarmPrefix = "ALARM: "

func alarmCommand() Command {
	return Command{
		Name: "ALARM",
		Help: "ALARM <text> - broadcast an urgent, prefixed alert to the mesh",
		Execute: func(ctx context.Context, env *Env, nick string, args []string) {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				env.Responder.NoticeTo(nick, "Usage: ALARM <text>")

				return
			}
			id, err := env.Mesh.SendText(env.DefaultChannel, alarmPrefix+text)
			if err != nil {
				env.Responder.NoticeTo(nick, "Alarm send failed: "+err.Error())

				return
			}
			env.Logger.Warn("alarm broadcast", "nick", nick, "packet_id", id)
			env.Responder.NoticeTo(nick, "Alarm broadcast sent")
			env.Responder.SendToRoom("gateway", fmt.Sprintf("[ALARM Tx] %s: %s", nick, text))
		},
	}
}
