// Package connector owns the connection to the local client: dialing with
// retry, the handshake, push-event dispatch, and the inbox through which
// other goroutines schedule work onto the connection's event context.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maxilosgr/leagueofleagues-client/internal/lcu"
	"github.com/maxilosgr/leagueofleagues-client/internal/session"
)

const (
	phasePath    = "/lol-gameflow/v1/gameflow-phase"
	summonerPath = "/lol-summoner/v1/current-summoner"
	regionPath   = "/riotclient/region-locale"
)

var (
	// ErrNotConnected means a command was attempted with no live connection.
	ErrNotConnected = errors.New("not connected to the League client")
	// ErrConnectionExhausted means every connection attempt failed. It is
	// terminal for the session and reported once; later commands fail with
	// ErrNotConnected instead.
	ErrConnectionExhausted = errors.New("gave up connecting to the League client")
	// ErrConnectionLost means the transport dropped mid-session. Terminal
	// only when reconnecting is disabled.
	ErrConnectionLost = errors.New("connection to the League client lost")
)

// Handle is the slice of lcu.Handle the connector drives. Tests swap in a
// fake; production uses the real transport.
type Handle interface {
	Request(ctx context.Context, method, path string, body, out any) (int, error)
	Subscribe(ctx context.Context, uri string) error
	Events() <-chan lcu.Event
	Close() error
}

// DialFunc builds one fresh Handle per connection attempt.
type DialFunc func(ctx context.Context) (Handle, error)

type Config struct {
	LockfileDir string
	Dial        DialFunc // defaults to lockfile discovery + lcu.Dial
	RetryDelay  time.Duration
	MaxAttempts int
	// DisableReconnect makes a transport drop terminal instead of
	// re-entering the dial cycle.
	DisableReconnect bool
}

func (c Config) withDefaults() Config {
	if c.RetryDelay == 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 30
	}
	return c
}

type Msg interface{ isMsg() }

// Invoke schedules Fn onto the connection's event context. The result is
// delivered on Reply, which must have capacity for one value.
type Invoke struct {
	Fn    func(ctx context.Context, h Handle) (any, error)
	Reply chan Result
}

func (Invoke) isMsg() {}

type Result struct {
	Value any
	Err   error
}

type registryKey struct {
	URI       string
	EventType string
}

type handlerFn func(ctx context.Context, h Handle, ev lcu.Event) error

type Connector struct {
	cfg      Config
	store    *session.Store
	log      *zap.Logger
	inbox    chan Msg
	handlers map[registryKey]handlerFn

	// mu orders Do's connected-check-plus-enqueue against teardown, so a
	// job can never land in the inbox after the post-drop drain.
	mu        sync.Mutex
	connected bool
}

func New(cfg Config, store *session.Store, log *zap.Logger) *Connector {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Connector{
		cfg:   cfg.withDefaults(),
		store: store,
		log:   log.Named("connector"),
		inbox: make(chan Msg, 64),
	}
	if c.cfg.Dial == nil {
		c.cfg.Dial = c.dialLockfile
	}
	// Resolved once; events outside this table are ignored explicitly.
	c.handlers = map[registryKey]handlerFn{
		{phasePath, "UPDATE"}:    c.onPhase,
		{phasePath, "CREATE"}:    c.onPhase,
		{phasePath, "DELETE"}:    c.onPhase,
		{summonerPath, "UPDATE"}: c.onSummoner,
		{summonerPath, "CREATE"}: c.onSummoner,
	}
	return c
}

// Snapshot reads the shared session state. Safe from any goroutine and
// never goes through the inbox.
func (c *Connector) Snapshot() session.State {
	return c.store.Snapshot()
}

// Do enqueues fn for execution inside the connection's event context, FIFO
// relative to other enqueues. The returned channel delivers exactly one
// Result. When no live connection exists the call fails fast with
// ErrNotConnected and fn never runs.
func (c *Connector) Do(fn func(ctx context.Context, h Handle) (any, error)) <-chan Result {
	reply := make(chan Result, 1)
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		reply <- Result{Err: ErrNotConnected}
		return reply
	}
	c.inbox <- Invoke{Fn: fn, Reply: reply}
	c.mu.Unlock()
	return reply
}

// Run drives the connection lifecycle until ctx is canceled, the attempt
// budget is exhausted, or (with DisableReconnect) the transport drops.
func (c *Connector) Run(ctx context.Context) error {
	for {
		h, err := c.dialWithRetry(ctx)
		if err != nil {
			c.failPending()
			return err
		}

		if err := c.handshake(ctx, h); err != nil {
			c.log.Warn("handshake failed", zap.Error(err))
			h.Close()
			c.store.Reset()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.cfg.DisableReconnect {
				return err
			}
			// An unreachable socket right after a successful dial still
			// spaces the next attempt; never hot-loop the client.
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		err = c.serve(ctx, h)
		c.teardown()
		c.store.Reset()
		h.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Info("connection to client lost")
		if c.cfg.DisableReconnect {
			return err
		}
	}
}

func (c *Connector) dialLockfile(ctx context.Context) (Handle, error) {
	lf, err := lcu.Discover(c.cfg.LockfileDir)
	if err != nil {
		return nil, err
	}
	return lcu.Dial(ctx, lcu.Config{
		Port:     lf.Port,
		Password: lf.Password,
		Protocol: lf.Protocol,
		Logger:   c.log,
	})
}

func (c *Connector) dialWithRetry(ctx context.Context) (Handle, error) {
	pol := retryPolicy{max: c.cfg.MaxAttempts, delay: c.cfg.RetryDelay}
	for {
		h, err := c.cfg.Dial(ctx)
		if err == nil {
			return h, nil
		}

		delay, retry := pol.next()
		if !retry {
			c.log.Error("client unreachable, giving up",
				zap.Int("attempts", c.cfg.MaxAttempts), zap.Error(err))
			return nil, ErrConnectionExhausted
		}
		c.log.Info("client unreachable, retrying",
			zap.Int("attempt", pol.attempt),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// handshake reads the initial phase, identity and region, publishes them
// together with ready=true in one swap, then subscribes to push topics.
func (c *Connector) handshake(ctx context.Context, h Handle) error {
	phase := c.fetchPhase(ctx, h)
	identity := c.fetchIdentity(ctx, h)
	region := c.fetchRegion(ctx, h)

	c.store.Update(func(s session.State) session.State {
		s.Ready = true
		s.Phase = phase
		s.Identity = identity
		s.Region = region
		return s
	})
	c.log.Info("connected to client",
		zap.String("phase", phase), zap.String("region", region))

	if err := h.Subscribe(ctx, phasePath); err != nil {
		return err
	}
	return h.Subscribe(ctx, summonerPath)
}

// serve is the connection's single event context: it dispatches push
// events in arrival order and runs enqueued Invokes, one at a time.
func (c *Connector) serve(ctx context.Context, h Handle) error {
	events := h.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return ErrConnectionLost
			}
			c.dispatch(ctx, h, ev)

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Invoke:
				v, err := msg.Fn(ctx, h)
				msg.Reply <- Result{Value: v, Err: err}
			}
		}
	}
}

func (c *Connector) dispatch(ctx context.Context, h Handle, ev lcu.Event) {
	fn, ok := c.handlers[registryKey{ev.URI, strings.ToUpper(ev.EventType)}]
	if !ok {
		c.log.Debug("ignoring event",
			zap.String("uri", ev.URI), zap.String("type", ev.EventType))
		return
	}
	if err := fn(ctx, h, ev); err != nil {
		// Contained: a broken handler never takes the loop down.
		c.log.Error("event handler failed",
			zap.String("uri", ev.URI), zap.Error(err))
	}
}

// teardown retires the dead connection. The first drain frees any sender
// blocked on a full inbox, which may be holding mu. Any enqueue that saw
// connected=true finished its send under mu before the flag flips here,
// so the second drain is guaranteed to see it.
func (c *Connector) teardown() {
	c.failPending()
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.failPending()
}

// failPending drains queued jobs after a drop so none of them runs against
// a stale handle.
func (c *Connector) failPending() {
	for {
		select {
		case m := <-c.inbox:
			if inv, ok := m.(Invoke); ok {
				inv.Reply <- Result{Err: ErrNotConnected}
			}
		default:
			return
		}
	}
}

// onPhase handles gameflow-phase pushes. A plain string payload is used
// directly; any other shape triggers a re-fetch of the endpoint. A failed
// re-fetch clears the phase rather than keeping a stale one.
func (c *Connector) onPhase(ctx context.Context, h Handle, ev lcu.Event) error {
	var phase string
	if err := json.Unmarshal(ev.Data, &phase); err != nil {
		phase = c.fetchPhase(ctx, h)
	}
	c.store.Update(func(s session.State) session.State {
		s.Phase = phase
		return s
	})
	c.log.Debug("phase changed", zap.String("phase", phase))
	return nil
}

// onSummoner handles identity pushes. Partial payloads (missing name or
// tag) fall back to re-fetching the endpoint; a still-unknown identity
// never clears one we already have. Region is refreshed alongside and
// published in the same swap as the identity.
func (c *Connector) onSummoner(ctx context.Context, h Handle, ev lcu.Event) error {
	var payload struct {
		GameName string `json:"gameName"`
		TagLine  string `json:"tagLine"`
	}
	_ = json.Unmarshal(ev.Data, &payload)

	identity := &session.Identity{Name: payload.GameName, Tag: payload.TagLine}
	if identity.Name == "" || identity.Tag == "" {
		identity = c.fetchIdentity(ctx, h)
	}
	region := c.fetchRegion(ctx, h)

	c.store.Update(func(s session.State) session.State {
		if identity != nil {
			s.Identity = identity
		}
		if region != "" {
			s.Region = region
		}
		return s
	})
	if identity != nil {
		c.log.Info("summoner updated",
			zap.String("name", identity.Name), zap.String("tag", identity.Tag),
			zap.String("region", region))
	}
	return nil
}

func (c *Connector) fetchPhase(ctx context.Context, h Handle) string {
	var phase string
	if _, err := h.Request(ctx, http.MethodGet, phasePath, nil, &phase); err != nil {
		c.log.Warn("phase fetch failed", zap.Error(err))
		return ""
	}
	return phase
}

func (c *Connector) fetchIdentity(ctx context.Context, h Handle) *session.Identity {
	var out struct {
		GameName string `json:"gameName"`
		TagLine  string `json:"tagLine"`
	}
	status, err := h.Request(ctx, http.MethodGet, summonerPath, nil, &out)
	if err != nil || status != http.StatusOK || out.GameName == "" || out.TagLine == "" {
		if err != nil {
			c.log.Warn("summoner fetch failed", zap.Error(err))
		}
		return nil
	}
	return &session.Identity{Name: out.GameName, Tag: out.TagLine}
}

func (c *Connector) fetchRegion(ctx context.Context, h Handle) string {
	var out struct {
		Region string `json:"region"`
	}
	status, err := h.Request(ctx, http.MethodGet, regionPath, nil, &out)
	if err != nil || status != http.StatusOK {
		return ""
	}
	return strings.ToUpper(out.Region)
}
