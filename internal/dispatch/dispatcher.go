// Package dispatch pulls inbound events off an event source, fans them out
// to per-user workers and drives the dialog engine. Events from the same
// user always land on the same worker, so a user's updates are applied in
// arrival order.
package dispatch

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivolkov/matchbot/internal/dialog"
	"github.com/ivolkov/matchbot/internal/observability/metrics"
	"github.com/ivolkov/matchbot/internal/session"
	"github.com/ivolkov/matchbot/internal/vk"
	"github.com/ivolkov/matchbot/pkg/logging"
)

// EventSource produces inbound events until its context ends.
type EventSource interface {
	Events(ctx context.Context) <-chan vk.Event
	Close() error
}

// SessionStore is the persistence surface the dispatcher mutates.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (*session.Session, error)
	Upsert(ctx context.Context, userID int64, u session.Update) error
	RecordShown(ctx context.Context, userID, shownID int64) error
	AddFavorite(ctx context.Context, userID, favoriteID int64, name, link string) error
}

// Sender delivers outbound messages to the chat platform.
type Sender interface {
	SendMessage(ctx context.Context, msg vk.OutboundMessage) error
}

// Handler decides what one inbound text means for the user's session.
type Handler interface {
	Handle(ctx context.Context, userID int64, text string, sess *session.Session) (*dialog.Result, error)
}

const (
	defaultEventTimeout = 25 * time.Second
	defaultMaxAttempts  = 3
	retryBackoff        = 500 * time.Millisecond
	sendRetries         = 2
)

// Option configures optional dispatcher collaborators.
type Option func(*Dispatcher)

func WithMetrics(m *metrics.BotMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithEventTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.eventTimeout = timeout
		}
	}
}

func WithMaxAttempts(attempts int) Option {
	return func(d *Dispatcher) {
		if attempts > 0 {
			d.maxAttempts = attempts
		}
	}
}

// Dispatcher owns the worker pool between the event source and the engine.
type Dispatcher struct {
	store   SessionStore
	sender  Sender
	handler Handler
	logger  *logging.Logger
	metrics *metrics.BotMetrics

	workerCount  int
	queueDepth   int
	eventTimeout time.Duration
	maxAttempts  int

	queues []chan vk.Event
	wg     sync.WaitGroup
}

func NewDispatcher(store SessionStore, sender Sender, handler Handler, workerCount, queueDepth int, logger *logging.Logger, opts ...Option) *Dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		store:        store,
		sender:       sender,
		handler:      handler,
		logger:       logger,
		workerCount:  workerCount,
		queueDepth:   queueDepth,
		eventTimeout: defaultEventTimeout,
		maxAttempts:  defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run consumes events until ctx ends or the source channel closes, then
// drains the worker queues and returns. Cancellation stops intake only:
// events already queued still run to completion under their own per-event
// timeout, so a shutdown does not drop work mid-flight.
func (d *Dispatcher) Run(ctx context.Context, source EventSource) error {
	drainCtx, stopDrain := context.WithCancel(context.Background())
	defer stopDrain()

	d.queues = make([]chan vk.Event, d.workerCount)
	for i := range d.queues {
		d.queues[i] = make(chan vk.Event, d.queueDepth)
		d.wg.Add(1)
		go d.worker(drainCtx, i, d.queues[i])
	}

	events := source.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				d.shutdown()
				return nil
			}
			// Group-chat chatter is not addressed to the bot.
			if !event.DirectedAtBot {
				d.metrics.ObserveEvent("message_new", "skipped")
				continue
			}
			d.queues[d.workerFor(event.UserID)] <- event
		}
	}
}

func (d *Dispatcher) shutdown() {
	for _, q := range d.queues {
		close(q)
	}
	d.wg.Wait()
}

// workerFor hashes the user ID so one user's events stay ordered.
func (d *Dispatcher) workerFor(userID int64) int {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatInt(userID, 10)))
	return int(h.Sum32()) % d.workerCount
}

func (d *Dispatcher) worker(ctx context.Context, id int, queue <-chan vk.Event) {
	defer d.wg.Done()
	for event := range queue {
		d.processWithRetry(ctx, id, event)
	}
}

func (d *Dispatcher) processWithRetry(ctx context.Context, workerID int, event vk.Event) {
	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err := d.process(ctx, event); err != nil {
			lastErr = err
			d.logger.Warn("event attempt failed",
				"worker", workerID, "user_id", event.UserID, "attempt", attempt, "error", err)
			if attempt < d.maxAttempts {
				select {
				case <-ctx.Done():
					attempt = d.maxAttempts
				case <-time.After(time.Duration(attempt) * retryBackoff):
				}
			}
			continue
		}
		d.metrics.ObserveEvent("message_new", "ok")
		d.metrics.ObserveEventDuration("message_new", time.Since(start).Seconds())
		return
	}
	// Dropped after exhausting attempts. The ID makes the record findable
	// when a user reports a lost reply.
	d.logger.Error("event dead-lettered",
		"dead_letter_id", uuid.NewString(),
		"worker", workerID,
		"user_id", event.UserID,
		"text", event.Text,
		"error", lastErr)
	d.metrics.ObserveEvent("message_new", "dead_letter")
	d.metrics.ObserveEventDuration("message_new", time.Since(start).Seconds())
}

// process runs one event through load, decide, mutate, deliver. Store
// failures return an error so the caller retries; delivery failures after
// the mutations are applied only log, the state change already happened.
func (d *Dispatcher) process(ctx context.Context, event vk.Event) error {
	ctx, cancel := context.WithTimeout(ctx, d.eventTimeout)
	defer cancel()

	sess, err := d.store.Get(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("dispatch: load session: %w", err)
	}

	result, err := d.handler.Handle(ctx, event.UserID, event.Text, sess)
	if err != nil {
		return fmt.Errorf("dispatch: handle event: %w", err)
	}

	for _, update := range result.Updates {
		if err := d.store.Upsert(ctx, event.UserID, update); err != nil {
			return fmt.Errorf("dispatch: apply session update: %w", err)
		}
	}
	if result.ShownID != nil {
		if err := d.store.RecordShown(ctx, event.UserID, *result.ShownID); err != nil {
			return fmt.Errorf("dispatch: record shown profile: %w", err)
		}
	}
	if fav := result.Favorite; fav != nil {
		if err := d.store.AddFavorite(ctx, fav.UserID, fav.ID, fav.Name, fav.Link); err != nil {
			return fmt.Errorf("dispatch: add favorite: %w", err)
		}
	}

	for _, intent := range result.Intents {
		d.send(ctx, event.UserID, intent)
	}
	return nil
}

// send delivers one intent with a short retry. Failures are logged and
// dropped: re-running the whole event here would re-apply mutations.
func (d *Dispatcher) send(ctx context.Context, userID int64, intent dialog.Intent) {
	msg := vk.OutboundMessage{
		PeerID:     userID,
		Text:       intent.Text,
		Attachment: intent.Attachment,
		Keyboard:   intent.Keyboard,
	}
	var lastErr error
	for attempt := 0; attempt <= sendRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				d.logger.Warn("send abandoned", "user_id", userID, "error", ctx.Err())
				d.metrics.ObserveSend("error")
				return
			case <-time.After(retryBackoff):
			}
		}
		if lastErr = d.sender.SendMessage(ctx, msg); lastErr == nil {
			d.metrics.ObserveSend("sent")
			return
		}
	}
	d.logger.Error("send failed", "user_id", userID, "error", lastErr)
	d.metrics.ObserveSend("error")
}
