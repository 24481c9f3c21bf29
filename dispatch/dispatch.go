// Package dispatch implements the server-side receive loop: one shared
// UDP socket, a pluggable transmission protocol, and a rpcsig.Registry of
// handlers, routing every received envelope to its reply (spec.md §4.5).
// It is grounded on rdgproto/server.go's Server.Start accept loop (here
// adapted from one-goroutine-per-TCP-connection to one-goroutine-per-
// datagram, bounded by errgroup instead of left unbounded) and
// original_source/.../middleware/dispatch.rs's Dispatcher::dispatch
// routing switch.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/ridgewireio/dgrpc/envelope"
	"github.com/ridgewireio/dgrpc/metrics"
	"github.com/ridgewireio/dgrpc/rpcsig"
	"github.com/ridgewireio/dgrpc/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Config controls a Dispatcher's concurrency and timing behavior.
type Config struct {
	// Sequential forces one-at-a-time handling instead of the default
	// parallel-by-default model (spec.md §4.5).
	Sequential bool
	// AllowDuplicates disables the content-hash dedup window when true.
	AllowDuplicates bool
	// MaxConcurrent bounds the number of in-flight handler goroutines when
	// not Sequential. Zero means unbounded.
	MaxConcurrent int
	Timeout       time.Duration
	Retries       int
	Log           *logrus.Logger
	Metrics       *metrics.Registry
}

// Dispatcher is the server-side receive loop.
type Dispatcher struct {
	conn     net.PacketConn
	proto    transport.Protocol
	registry *rpcsig.Registry
	cfg      Config
	log      *logrus.Logger
	dedup    *dedupWindow
}

// New constructs a Dispatcher. registry must satisfy rpcsig.CheckPrefixFree;
// New validates this and returns an error if it does not.
func New(conn net.PacketConn, proto transport.Protocol, registry *rpcsig.Registry, cfg Config) (*Dispatcher, error) {
	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		conn:     conn,
		proto:    proto,
		registry: registry,
		cfg:      cfg,
		log:      log,
		dedup:    newDedupWindow(dedupWindowSize),
	}, nil
}

// Run blocks, receiving and dispatching datagrams until ctx is canceled.
// Receive timeouts are skipped silently; other receive errors are logged
// and the loop keeps receiving. It always waits for in-flight handlers to
// finish before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if d.cfg.MaxConcurrent > 0 {
		g.SetLimit(d.cfg.MaxConcurrent)
	}

	for {
		if ctx.Err() != nil {
			break
		}
		addr, raw, err := d.proto.RecvBytes(ctx, d.conn, d.cfg.Timeout, d.cfg.Retries)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			d.log.WithError(err).Warn("dispatch: recv error")
			continue
		}
		if len(raw) == 0 {
			continue // spec.md §4.5 step 2: drop zero-length datagrams
		}

		if d.cfg.Sequential {
			d.handle(gctx, addr, raw)
			continue
		}
		g.Go(func() error {
			d.handle(gctx, addr, raw)
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, addr net.Addr, raw []byte) {
	invocationID := uuid.New()
	log := d.log.WithField("invocation_id", invocationID)

	env, err := envelope.Decode(raw)
	if err != nil {
		log.WithError(err).Debug("dispatch: dropping malformed envelope")
		return
	}

	switch env.Kind {
	case envelope.Ping:
		d.reply(ctx, addr, envelope.Encode(envelope.NewPing()))
	case envelope.Payload:
		d.handlePayload(ctx, addr, env.PayloadBytes, log)
	case envelope.Callback:
		log.Debug("dispatch: Callback envelope is reserved; dropping stray")
	case envelope.Ack, envelope.Error:
		log.WithField("kind", env.Kind.String()).Debug("dispatch: stray envelope dropped")
	}
}

func (d *Dispatcher) handlePayload(ctx context.Context, addr net.Addr, payload []byte, log *logrus.Entry) {
	if !d.cfg.AllowDuplicates {
		hash := envelope.ContentHash(payload)
		if d.dedup.observe(hash) {
			log.Debug("dispatch: duplicate request suppressed")
			return
		}
	}

	respEnv := d.dispatchPayload(payload, log)
	if respEnv.Kind == envelope.Error {
		d.reply(ctx, addr, envelope.EncodeError(respEnv.Err))
		return
	}
	d.reply(ctx, addr, envelope.Encode(respEnv))
}

func (d *Dispatcher) dispatchPayload(payload []byte, log *logrus.Entry) *envelope.Envelope {
	sig, handler, body, ok := d.registry.Lookup(payload)
	if !ok {
		d.cfg.Metrics.IncError(envelope.HandlerNotFound.String())
		return envelope.NewError(&envelope.InvokeError{Kind: envelope.HandlerNotFound})
	}

	respBody, err := invokeSafely(handler, body)
	if err != nil {
		kind := envelope.HandlerFailed
		if errors.Is(err, ErrDeserialization) {
			kind = envelope.DeserializationFailed
		}
		d.cfg.Metrics.IncError(kind.String())
		log.WithError(err).WithField("signature", sig.String()).Debug("dispatch: handler failed")
		return envelope.NewError(&envelope.InvokeError{Kind: kind, Detail: err.Error()})
	}

	d.cfg.Metrics.IncRequest(sig.String())
	return envelope.NewPayload(rpcsig.EncodeRequest(sig, respBody))
}

// invokeSafely recovers a handler panic into a HandlerFailed-classified
// error (spec.md §4.5: "Handler panic/error -> InvokeError::HandlerFailed").
func invokeSafely(handler rpcsig.Handler, body []byte) (resp []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: handler panicked: %v", r)
		}
	}()
	return handler(body)
}

func (d *Dispatcher) reply(ctx context.Context, addr net.Addr, data []byte) {
	if _, err := d.proto.SendBytes(ctx, d.conn, addr, data, d.cfg.Timeout, d.cfg.Retries); err != nil {
		d.log.WithError(err).Warn("dispatch: failed to send reply")
	}
}
