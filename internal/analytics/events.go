package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/reelbridge/reelbridge/internal/metrics"
)

// Event types.
const (
	EventUserLogin       = "user.login"
	EventSearchQuery     = "search.query"
	EventMovieView       = "movie.view"
	EventTVView          = "tv.view"
	EventWatchlistAdd    = "watchlist.add"
	EventWatchlistRemove = "watchlist.remove"
	EventFavoriteAdd     = "favorite.add"
	EventFavoriteRemove  = "favorite.remove"
	EventAPIError        = "api.error"
	EventCacheHit        = "cache.hit"
	EventCacheMiss       = "cache.miss"
)

const (
	// DefaultFlushInterval is how often queued events are flushed.
	DefaultFlushInterval = 30 * time.Second

	// DefaultQueueBatchSize triggers an early flush.
	DefaultQueueBatchSize = 100

	// PublishBatchSize is the max events handed to a sink at once.
	PublishBatchSize = 50

	// maxQueueLen bounds the queue when the sink keeps failing.
	maxQueueLen = 10000
)

// ErrInvalidEvent is returned for events without a type or timestamp.
var ErrInvalidEvent = errors.New("event must have type and timestamp")

// Event is one analytics record.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Metadata  map[string]any `json:"metadata"`
}

// Validate checks the required fields.
func (e Event) Validate() error {
	if e.Type == "" || e.Timestamp <= 0 {
		return ErrInvalidEvent
	}
	return nil
}

// Sink receives flushed events.
type Sink interface {
	Publish(ctx context.Context, events []Event) error
}

// QueueOptions configures an EventQueue.
type QueueOptions struct {
	Sink          Sink
	Environment   string
	FlushInterval time.Duration
	BatchSize     int
	Logger        *slog.Logger
	Recorder      metrics.Recorder
	Now           func() time.Time
}

// EventQueue buffers events and flushes them to a Sink.
type EventQueue struct {
	sink          Sink
	environment   string
	flushInterval time.Duration
	batchSize     int
	logger        *slog.Logger
	metrics       metrics.Recorder
	now           func() time.Time

	mu      sync.Mutex
	queue   []Event
	flushMu sync.Mutex
	kick    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEventQueue creates a queue. Call Start to begin periodic flushing.
func NewEventQueue(opts QueueOptions) *EventQueue {
	if opts.Sink == nil {
		opts.Sink = NoopSink{}
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultQueueBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NewNoop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &EventQueue{
		sink:          opts.Sink,
		environment:   opts.Environment,
		flushInterval: opts.FlushInterval,
		batchSize:     opts.BatchSize,
		logger:        opts.Logger.With("component", "analytics.events"),
		metrics:       opts.Recorder,
		now:           opts.Now,
		kick:          make(chan struct{}, 1),
	}
}

// Start launches the background flusher.
func (q *EventQueue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = cancel
	q.done = make(chan struct{})

	go func() {
		defer close(q.done)
		ticker := time.NewTicker(q.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-q.kick:
			}
			if err := q.Flush(ctx); err != nil {
				q.logger.Warn("event flush failed", "error", err)
			}
		}
	}()
}

// Track enqueues an event. Errors only for invalid input.
func (q *EventQueue) Track(_ context.Context, eventType string, data, metadata map[string]any) error {
	event := Event{
		ID:        ulid.Make().String(),
		Type:      eventType,
		Timestamp: q.now().UnixMilli(),
		Data:      data,
		Metadata:  map[string]any{},
	}
	for k, v := range metadata {
		event.Metadata[k] = v
	}
	if q.environment != "" {
		event.Metadata["environment"] = q.environment
	}
	if event.Data == nil {
		event.Data = map[string]any{}
	}
	if err := event.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	q.queue = append(q.queue, event)
	depth := len(q.queue)
	q.mu.Unlock()
	q.metrics.SetEventQueueDepth(int64(depth))

	if depth >= q.batchSize {
		select {
		case q.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Flush publishes queued events in batches. Unpublished events go back to
// the front of the queue.
func (q *EventQueue) Flush(ctx context.Context) error {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	q.mu.Lock()
	pending := q.queue
	q.queue = nil
	q.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	for start := 0; start < len(pending); start += PublishBatchSize {
		end := min(start+PublishBatchSize, len(pending))
		if err := q.sink.Publish(ctx, pending[start:end]); err != nil {
			q.requeue(pending[start:])
			q.metrics.IncEventPublished("dropped")
			return err
		}
		q.metrics.IncEventPublished("success")
	}

	q.logger.Debug("events flushed", "count", len(pending))
	q.metrics.SetEventQueueDepth(int64(q.Len()))
	return nil
}

func (q *EventQueue) requeue(events []Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]Event, 0, len(events)+len(q.queue))
	merged = append(merged, events...)
	merged = append(merged, q.queue...)
	if len(merged) > maxQueueLen {
		q.logger.Warn("event queue full, dropping oldest", "dropped", len(merged)-maxQueueLen)
		merged = merged[len(merged)-maxQueueLen:]
	}
	q.queue = merged
}

// Close stops the flusher and flushes what is left.
func (q *EventQueue) Close(ctx context.Context) error {
	if q.cancel != nil {
		q.cancel()
		<-q.done
	}
	return q.Flush(ctx)
}
