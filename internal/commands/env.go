package commands

import (
	"context"
	"log/slog"
	"time"

	"meshgate/internal/domain"
	"meshgate/internal/mesh"
	"meshgate/internal/pending"
)

// Responder delivers command output back into the chat server.
type Responder interface {
	// NoticeTo addresses one nick; unknown nicks are dropped silently.
	NoticeTo(nick, text string)
	// SendToRoom addresses every room member.
	SendToRoom(prefix, text string)
}

// Reporter produces a formatted multi-line report from an external source.
type Reporter interface {
	Report(ctx context.Context) ([]string, error)
}

// Env is the bridge state commands operate on. One instance is shared by all
// commands; every field is safe for concurrent use.
type Env struct {
	Logger         *slog.Logger
	Nodes          *domain.NodeStore
	Pending        *pending.Tracker
	Mesh           mesh.Interface
	Responder      Responder
	DefaultChannel uint32
	AckTimeout     time.Duration
	StartedAt      time.Time
	SessionCount   func() int

	// Weather and HF are nil when the corresponding lookup is unconfigured.
	Weather Reporter
	HF      Reporter
}

// resolveNode maps an operator-supplied node reference to a directory entry,
// noticing the requester on a miss. No mesh traffic happens for misses.
func (env *Env) resolveNode(nick, ref string) (domain.Node, bool) {
	node, ok := env.Nodes.Resolve(ref)
	if !ok {
		env.Responder.NoticeTo(nick, "Node not found: "+ref)

		return domain.Node{}, false
	}

	return node, true
}
