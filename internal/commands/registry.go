package commands

// DefaultRegistry wires up the full command set. HELP needs the finished
// registry, hence the late binding.
func DefaultRegistry() *Registry {
	var r *Registry
	r = NewRegistry(
		sendCommand(),
		alarmCommand(),
		dmCommand(),
		pingCommand(),
		nodesCommand(),
		infoCommand(),
		locationCommand(),
		timeCommand(),
		statsCommand(),
		weatherCommand(),
		hfConditionsCommand(),
		helpCommand(func() *Registry { return r }),
	)

	return r
}
