package notifyService

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"streakEngine/metrics"
	"streakEngine/pkg/contracts/events"
)

const (
	DefaultQueueSize = 1024
	deliveryTimeout  = 10 * time.Second

	// queueSink labels events dropped before any sink saw them.
	queueSink = "queue"
)

var (
	errQueueFull = errors.New("notification queue full")
	errClosed    = errors.New("notifications closed")
)

// Notifier delivers engine events to one sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev events.Envelope) error
}

// NewEnvelope stamps an event with a fresh id.
func NewEnvelope(eventType string, userID uint, payload interface{}) events.Envelope {
	return events.Envelope{
		ID:      uuid.NewString(),
		Type:    eventType,
		UserID:  userID,
		Ts:      time.Now().UTC(),
		Payload: payload,
	}
}

// FanOut queues events and sends each one to every sink from a single delivery
// goroutine, in publish order. Failures and overflow are logged and counted,
// never returned: the ledger is the record, notifications are advisory.
type FanOut struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	sinks   []Notifier

	mu     sync.RWMutex
	closed bool
	queue  chan events.Envelope
	done   chan struct{}
}

// NewFanOut starts the delivery goroutine. Stop it with Close.
func NewFanOut(log *zap.Logger, m *metrics.Metrics, queueSize int, sinks ...Notifier) *FanOut {
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	f := &FanOut{
		log:     log,
		metrics: m,
		sinks:   sinks,
		queue:   make(chan events.Envelope, queueSize),
		done:    make(chan struct{}),
	}
	go f.run()
	return f
}

// Publish never blocks. Events that do not fit in the queue are dropped.
func (f *FanOut) Publish(evs ...events.Envelope) {
	if f == nil {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ev := range evs {
		if f.closed {
			f.dropped(queueSink, ev, errClosed)
			continue
		}
		select {
		case f.queue <- ev:
		default:
			f.dropped(queueSink, ev, errQueueFull)
		}
	}
}

// Close stops accepting events and waits until the queue is delivered or ctx ends.
func (f *FanOut) Close(ctx context.Context) error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()

	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FanOut) run() {
	defer close(f.done)
	for ev := range f.queue {
		f.deliver(ev)
	}
}

func (f *FanOut) deliver(ev events.Envelope) {
	for _, s := range f.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err := s.Notify(ctx, ev)
		cancel()
		if err != nil {
			f.dropped(s.Name(), ev, err)
		}
	}
}

func (f *FanOut) dropped(sink string, ev events.Envelope, err error) {
	f.log.Warn("notification dropped",
		zap.String("sink", sink),
		zap.String("event", ev.Type),
		zap.String("event_id", ev.ID),
		zap.Uint("user_id", ev.UserID),
		zap.Error(err),
	)
	f.metrics.NotifyError(sink)
}
