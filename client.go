package wsupervisor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Client is the public façade spec.md §4.6 names: open/close/send plus the
// using_* configuration setters.
type Client interface {
	// Open transitions to Opening from any non-open state; idempotent
	// otherwise.
	Open(ctx context.Context) error
	// Close initiates a graceful close with the given code (NormalClosure
	// is the conventional default).
	Close(code CloseCode)
	// Send forwards a message to the transport. Fails with ErrNotOpened
	// unless Status() is Opened.
	Send(m Message) error
	// SendPing issues a protocol-level ping; onPong is invoked with the
	// send error, if any (not the eventual pong itself — that arrives via
	// OnMessage like any other control frame).
	SendPing(onPong func(error)) error

	// UsingPinging configures the heartbeat subsystem. Must be called
	// before Open or between closes.
	UsingPinging(cfg PingingConfig)
	// UsingRetrier configures the retry engine. Must be called before Open
	// or between closes.
	UsingRetrier(policy Policy, limits uint32, filter Filter)
	// UsingMonitor enables or disables reachability-driven auto close/reopen.
	UsingMonitor(enabled bool)

	// Status returns the current connection status.
	Status() Status
	// ID returns this client's identity, used to correlate logs/metrics.
	ID() ClientID
}

// EventHandlers are the host-facing callbacks of spec.md §6. Every field is
// optional. OnChallenge defaults to ChallengeUseDefault when unset.
type EventHandlers struct {
	OnStatus    func(cli Client, old, new Status)
	OnMessage   func(cli Client, m Message)
	OnError     func(cli Client, err error)
	OnChallenge func(cli Client, c Challenge) ChallengeDisposition
}

// Config is the construction-time configuration surface of spec.md §6.
type Config struct {
	// Transport is the external WebSocket capability this client drives.
	Transport Transport
	// Params names the connect target: URL or full request, plus
	// subprotocols.
	Params ConnectParams

	Retrier *RetrierConfig
	Pinging *PingingConfig
	Monitor Monitor

	// Dispatch overrides the default serial-goroutine event lane with a
	// host-chosen one (e.g. marshal onto a UI thread).
	Dispatch DispatchFunc

	Handlers EventHandlers

	Clock  Clock
	Logger Logger
	Meter  metric.Meter
}

// RetrierConfig mirrors spec.md §3's RetryPolicy record shape for
// construction-time configuration.
type RetrierConfig struct {
	Policy Policy
	Limits uint32
	Filter Filter
}

type client struct {
	id ClientID

	sup *Supervisor
	dsp *dispatcher
	mtr *metrics
	log logger

	reach          *reachabilitySupervisor
	monitorEnabled bool
}

// NewClient builds a Client wired per cfg: supervisor, dispatcher and
// metrics are constructed and bound together first; the retrier and pinging
// configuration is applied next; finally the reachability supervisor is
// built and, when cfg.Monitor is set, started.
func NewClient(cfg Config) Client {
	log := cfg.Logger
	if log == nil {
		log = newNoopLogger()
	}

	mtr := newMetrics(cfg.Meter)
	dsp := newDispatcher(cfg.Dispatch)
	dsp.onStatus = cfg.Handlers.OnStatus
	dsp.onMessage = cfg.Handlers.OnMessage
	dsp.onError = cfg.Handlers.OnError
	dsp.onChallenge = cfg.Handlers.OnChallenge

	sup := newSupervisor(cfg.Transport, cfg.Params, cfg.Clock, log, mtr, dsp)

	id := newClientID()
	c := &client{
		id:  id,
		sup: sup,
		dsp: dsp,
		mtr: mtr,
		log: log.WithField("client_id", id),
	}

	sup.bindClient(c)

	if cfg.Retrier != nil {
		sup.UsingRetrier(cfg.Retrier.Policy, cfg.Retrier.Limits, cfg.Retrier.Filter)
	}
	if cfg.Pinging != nil {
		sup.UsingPinging(*cfg.Pinging)
	}

	c.reach = newReachabilitySupervisor(cfg.Monitor, sup)
	if cfg.Monitor != nil {
		c.UsingMonitor(true)
	}

	return c
}

func (c *client) Open(ctx context.Context) error {
	return c.sup.Open(ctx)
}

func (c *client) Close(code CloseCode) {
	c.sup.Close(code)
}

func (c *client) Send(m Message) error {
	return c.sup.Send(m)
}

func (c *client) SendPing(onPong func(error)) error {
	return c.sup.SendPing(onPong)
}

func (c *client) UsingPinging(cfg PingingConfig) {
	c.sup.UsingPinging(cfg)
}

func (c *client) UsingRetrier(policy Policy, limits uint32, filter Filter) {
	c.sup.UsingRetrier(policy, limits, filter)
}

func (c *client) UsingMonitor(enabled bool) {
	if enabled == c.monitorEnabled {
		return
	}
	c.monitorEnabled = enabled

	if enabled {
		if err := c.reach.start(); err != nil {
			c.log.Warnf("monitor failed to start: %s", err)
		}
		return
	}
	c.reach.stop()
}

func (c *client) Status() Status {
	return c.sup.Status()
}

func (c *client) ID() ClientID {
	return c.id
}
