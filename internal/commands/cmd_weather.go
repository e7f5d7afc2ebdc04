package commands

import "context"

func weatherCommand() Command {
	return Command{
		Name: "WEATHER",
		Help: "WEATHER - current conditions for the gateway's configured location",
		Execute: func(ctx context.Context, env *Env, nick string, args []string) {
			runReport(ctx, env, nick, env.Weather, "Weather lookup is not configured", "Weather lookup failed: ")
		},
	}
}

func hfConditionsCommand() Command {
	return Command{
		Name: "HFCONDITIONS",
		Help: "HFCONDITIONS - NOAA space weather outlook for HF propagation",
		Execute: func(ctx context.Context, env *Env, nick string, args []string) {
			runReport(ctx, env, nick, env.HF, "HF conditions lookup is not configured", "HF conditions lookup failed: ")
		},
	}
}

func runReport(ctx context.Context, env *Env, nick string, reporter Reporter, missingMsg, errPrefix string) {
	if reporter == nil {
		env.Responder.NoticeTo(nick, missingMsg)

		return
	}
	lines, err := reporter.Report(ctx)
	if err != nil {
		env.Responder.NoticeTo(nick, errPrefix+err.Error())

		return
	}
	for _, line := range lines {
		env.Responder.NoticeTo(nick, line)
	}
}
