package commands

import (
	"context"
	"strings"
)

func helpCommand(registry func() *Registry) Command {
	return Command{
		Name: "HELP",
		Help: "HELP [command] - list commands or show usage for one",
		Execute: func(ctx context.Context, env *Env, nick string, args []string) {
			r := registry()
			if len(args) > 0 {
				cmd, ok := r.Lookup(args[0])
				if !ok {
					env.Responder.NoticeTo(nick, "Unknown command: "+strings.ToUpper(args[0]))

					return
				}
				env.Responder.NoticeTo(nick, cmd.Help)

				return
			}
			env.Responder.NoticeTo(nick, "Commands: "+strings.Join(r.Names(), ", "))
			env.Responder.NoticeTo(nick, "HELP <command> shows usage. Anything else is relayed as chat.")
		},
	}
}
