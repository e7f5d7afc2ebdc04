package commands

import (
	"context"
	"time"
)

func timeCommand() Command {
	return Command{
		Name: "TIME",
		Help: "TIME - show the gateway's current time",
		Execute: func(ctx context.Context, env *Env, nick string, args []string) {
			now := time.Now()
			env.Responder.NoticeTo(nick, "Gateway time: "+now.Format("2006-01-02 15:04:05 MST")+
				" (UTC "+now.UTC().Format("15:04:05")+")")
		},
	}
}
