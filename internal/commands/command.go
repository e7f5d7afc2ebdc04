package commands

import (
	"context"
	"sort"
	"strings"

	"github.com/google/shlex"
)

// Command is one operator verb available in the control channel.
type Command struct {
	Name    string
	Help    string
	Execute func(ctx context.Context, env *Env, nick string, args []string)
}

// Registry maps upper-cased command names to their handlers. It is built once
// at startup; Dispatch only reads it.
type Registry struct {
	commands map[string]Command
}

func NewRegistry(cmds ...Command) *Registry {
	r := &Registry{commands: make(map[string]Command, len(cmds))}
	for _, cmd := range cmds {
		r.commands[strings.ToUpper(cmd.Name)] = cmd
	}

	return r
}

func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[strings.ToUpper(name)]

	return cmd, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Dispatch inspects one control-channel line. When its first word names a
// command it runs it and reports true; otherwise the line is ordinary chat.
// Arguments are shell-split so multi-word node names can be quoted.
func (r *Registry) Dispatch(ctx context.Context, env *Env, nick, text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	first := strings.Fields(trimmed)[0]
	cmd, ok := r.Lookup(first)
	if !ok {
		return false
	}

	args, err := shlex.Split(trimmed)
	if err != nil {
		env.Responder.NoticeTo(nick, "Could not parse command: "+err.Error())

		return true
	}
	cmd.Execute(ctx, env, nick, args[1:])

	return true
}
