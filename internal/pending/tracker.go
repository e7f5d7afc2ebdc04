// Package pending correlates fire-and-forget mesh requests with the
// asynchronous delivery/ping events that complete them.
package pending

import (
	"context"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Kind distinguishes what the requester is waiting for.
type Kind int

const (
	KindDirectMessage Kind = iota + 1
	KindPing
)

func (k Kind) String() string {
	switch k {
	case KindDirectMessage:
		return "dm"
	case KindPing:
		return "ping"
	default:
		return "unknown"
	}
}

// Request is one outstanding mesh operation awaiting a terminal outcome.
type Request struct {
	Kind       Kind
	Nick       string
	TargetNum  uint32
	TargetName string
	CreatedAt  time.Time
}

// TimeoutFunc is invoked exactly once for every request whose deadline passes
// without a matching Resolve. It runs on the tracker's expiry goroutine.
type TimeoutFunc func(requestID uint32, req Request)

// Tracker owns the active set of pending requests. Entries leave the set the
// moment they are resolved or expire; resolving an unknown or already-removed
// id is a no-op.
type Tracker struct {
	logger    *slog.Logger
	cache     *ttlcache.Cache[uint32, Request]
	onTimeout TimeoutFunc
}

func NewTracker(logger *slog.Logger, ttl time.Duration, onTimeout TimeoutFunc) *Tracker {
	t := &Tracker{
		logger:    logger,
		onTimeout: onTimeout,
	}
	t.cache = ttlcache.New[uint32, Request](
		ttlcache.WithTTL[uint32, Request](ttl),
		ttlcache.WithDisableTouchOnHit[uint32, Request](),
	)
	t.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[uint32, Request]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		t.logger.Debug("request timed out", "request_id", item.Key(), "kind", item.Value().Kind.String(), "nick", item.Value().Nick)
		if t.onTimeout != nil {
			t.onTimeout(item.Key(), item.Value())
		}
	})

	return t
}

// Start runs the expiry sweep until Stop is called.
func (t *Tracker) Start() {
	go t.cache.Start()
}

func (t *Tracker) Stop() {
	t.cache.Stop()
}

// Register adds a pending request under the mesh-assigned request id.
func (t *Tracker) Register(requestID uint32, req Request) {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	t.cache.Set(requestID, req, ttlcache.DefaultTTL)
	t.logger.Debug("request registered", "request_id", requestID, "kind", req.Kind.String(), "nick", req.Nick)
}

// Resolve removes and returns the matching request. The second return is
// false for unknown, expired, or already-resolved ids, making duplicate
// completion events harmless. Lookup and removal happen under one cache
// lock, so an entry can never both resolve and expire.
func (t *Tracker) Resolve(requestID uint32) (Request, bool) {
	item, found := t.cache.GetAndDelete(requestID)
	if !found {
		return Request{}, false
	}

	return item.Value(), true
}

func (t *Tracker) Len() int {
	return t.cache.Len()
}
