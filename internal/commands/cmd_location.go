package commands

import "context"

func locationCommand() Command {
	return Command{
		Name: "LOCATION",
		Help: "LOCATION [node] - show the gateway radio's position, or one node's",
		Execute: func(ctx context.Context, env *Env, nick string, args []string) {
			switch len(args) {
			case 0:
				reportGatewayLocation(env, nick)
			case 1:
				node, ok := env.resolveNode(nick, args[0])
				if !ok {
					return
				}
				if node.Position == nil {
					env.Responder.NoticeTo(nick, "No position known for "+node.DisplayName())

					return
				}
				env.Responder.NoticeTo(nick, node.DisplayName()+" position: "+formatPosition(*node.Position))
			default:
				env.Responder.NoticeTo(nick, "Usage: LOCATION [node]")
			}
		},
	}
}

// reportGatewayLocation answers the bare form with the position of the
// gateway's own radio node.
func reportGatewayLocation(env *Env, nick string) {
	num, ok := env.Mesh.MyNodeNum()
	if !ok {
		env.Responder.NoticeTo(nick, "Gateway location not available")

		return
	}
	node, ok := env.Nodes.Get(num)
	if !ok || node.Position == nil {
		env.Responder.NoticeTo(nick, "Gateway location not available")

		return
	}
	env.Responder.NoticeTo(nick, "Gateway position: "+formatPosition(*node.Position))
}
