// Package callback implements the server-side path->subscriber registry
// described in spec.md §4.6: clients register a return address against a
// path, and a path update atomically drains the list and fans out one
// envelope delivery per subscriber. It is grounded on rdgproto/server.go's
// mutex-guarded client map (lock, copy the slice out, unlock, then act --
// the same shape as that file's Broadcast) and
// original_source/.../middleware/callback.rs plus
// rfs_server/server/callbacks.rs, which hold the per-path pending
// return-address list this registry reimplements.
package callback

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/ridgewireio/dgrpc/envelope"
	"github.com/ridgewireio/dgrpc/metrics"
	"github.com/ridgewireio/dgrpc/transport"
	"github.com/ridgewireio/dgrpc/wire"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Subscriber is one pending registration: a return address reachable over
// proto, plus the timeout/retry budget to use when delivering to it
// (spec.md §3 "Callback registration entry").
type Subscriber struct {
	Addr    net.Addr
	Conn    net.PacketConn
	Proto   transport.Protocol
	Timeout time.Duration
	Retries int
}

// Registry is a path -> []Subscriber map (spec.md §4.6). The package
// holds no shared instance: each call to New returns an independent
// registry. The zero value is not usable; construct one with New.
type Registry struct {
	mu   sync.Mutex
	subs map[string][]Subscriber

	limiter     *rate.Limiter
	fanoutLimit int
	log         *logrus.Logger
	metrics     *metrics.Registry
}

// Config controls fan-out behavior.
type Config struct {
	// FanoutLimit bounds the number of concurrent subscriber sends per
	// Trigger call. Zero means unbounded.
	FanoutLimit int
	// SendRateLimit bounds the aggregate rate of subscriber deliveries
	// across all Trigger calls, guarding against a pathological
	// subscriber list (SPEC_FULL.md §4: golang.org/x/time/rate wiring).
	// Zero disables rate limiting.
	SendRateLimit rate.Limit
	Log           *logrus.Logger
	Metrics       *metrics.Registry
}

// New constructs an empty Registry.
func New(cfg Config) *Registry {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	var limiter *rate.Limiter
	if cfg.SendRateLimit > 0 {
		limiter = rate.NewLimiter(cfg.SendRateLimit, 1)
	}
	return &Registry{
		subs:        make(map[string][]Subscriber),
		limiter:     limiter,
		fanoutLimit: cfg.FanoutLimit,
		log:         log,
		metrics:     cfg.Metrics,
	}
}

// Register appends sub to path's subscriber list. Duplicates are allowed
// (spec.md §4.6: "append (duplicates allowed)").
func (r *Registry) Register(path string, sub Subscriber) {
	r.mu.Lock()
	r.subs[path] = append(r.subs[path], sub)
	n := len(r.subs[path])
	r.mu.Unlock()

	r.metrics.AddSubscriptions(1)
	r.log.WithFields(logrus.Fields{"path": path, "addr": sub.Addr.String(), "pending": n}).Debug("callback: registered subscriber")
}

// Trigger atomically drains path's subscriber list and delivers update to
// each subscriber exactly once, returning the number notified without
// error. The lock is held only long enough to remove the slice from the
// map (spec.md §5: "never .await an unrelated operation while holding
// it") -- the network sends happen after release.
func (r *Registry) Trigger(ctx context.Context, path string, update wire.Marshaler) int {
	r.mu.Lock()
	subs := r.subs[path]
	delete(r.subs, path)
	r.mu.Unlock()

	if len(subs) == 0 {
		return 0
	}

	r.metrics.AddSubscriptions(-float64(len(subs)))

	payload := wire.Marshal(update)
	out := envelope.Encode(envelope.NewPayload(payload))

	g, gctx := errgroup.WithContext(ctx)
	if r.fanoutLimit > 0 {
		g.SetLimit(r.fanoutLimit)
	}
	notified := 0
	var mu sync.Mutex

	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			if r.limiter != nil {
				if err := r.limiter.Wait(gctx); err != nil {
					r.log.WithError(err).Debug("callback: rate limiter wait aborted")
					r.metrics.IncFanout("rate_limited")
					return nil
				}
			}
			if _, err := sub.Proto.SendBytes(gctx, sub.Conn, sub.Addr, out, sub.Timeout, sub.Retries); err != nil {
				r.log.WithError(err).WithField("addr", sub.Addr.String()).Warn("callback: notify failed")
				r.metrics.IncFanout("failed")
				return nil
			}
			mu.Lock()
			notified++
			mu.Unlock()
			r.metrics.IncFanout("delivered")
			return nil
		})
	}
	g.Wait()
	return notified
}

// Pending reports the current subscriber count for path, for diagnostics
// and tests.
func (r *Registry) Pending(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[path])
}
