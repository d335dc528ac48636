package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/thejerf/abtime"
)

// DefaultSendTimeout bounds a single delivery.
const DefaultSendTimeout = 10 * time.Second

// Dispatcher implements Notifier over a bounded queue drained by Run.
// When the queue is full the message is dropped and logged.
type Dispatcher struct {
	gateway Gateway
	queue   chan Message
	logger  logging.Logger
	clock   abtime.AbstractTime
	timeout time.Duration
	dropped atomic.Int64
}

func NewDispatcher(g Gateway, size int, l logging.Logger, clock abtime.AbstractTime) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		gateway: g,
		queue:   make(chan Message, size),
		logger:  l.With("module", "notify"),
		clock:   clock,
		timeout: DefaultSendTimeout,
	}
}

func (d *Dispatcher) SendConfirmation(email, token, link string) {
	d.enqueue(Message{Kind: KindConfirmation, To: email, Token: token, Link: link})
}

func (d *Dispatcher) SendReset(email, token, link string) {
	d.enqueue(Message{Kind: KindReset, To: email, Token: token, Link: link})
}

func (d *Dispatcher) SendWelcome(email, name string) {
	d.enqueue(Message{Kind: KindWelcome, To: email, Name: name})
}

// Dropped returns how many messages were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

func (d *Dispatcher) enqueue(m Message) {
	m.CreatedAt = d.clock.Now().UTC()
	select {
	case d.queue <- m:
	default:
		d.dropped.Add(1)
		d.logger.Warn(context.Background(), "notification queue full, message dropped", "kind", m.Kind)
	}
}

// Run delivers queued messages until ctx is done, then flushes whatever is
// still queued and returns.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info(ctx, "Starting notification dispatcher")
	for {
		select {
		case m := <-d.queue:
			d.deliver(m)
		case <-ctx.Done():
			d.flush()
			d.logger.Info(context.Background(), "Notification dispatcher stopped")
			return
		}
	}
}

func (d *Dispatcher) flush() {
	for {
		select {
		case m := <-d.queue:
			d.deliver(m)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(m Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.gateway.Deliver(ctx, m); err != nil {
		d.logger.Error(ctx, "notification delivery failed", "kind", m.Kind, "error", err)
	}
}
