package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/reelbridge/reelbridge/internal/metrics"
	"github.com/reelbridge/reelbridge/internal/testutil"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]Event
	fail    int
	flushed chan struct{}
}

func (s *fakeSink) Publish(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("sink down")
	}
	s.batches = append(s.batches, append([]Event(nil), events...))
	if s.flushed != nil {
		select {
		case s.flushed <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *fakeSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestEventQueue_TrackBuildsEvent(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	q := NewEventQueue(QueueOptions{Sink: sink, Environment: "test", Now: func() time.Time { return now }})

	err := q.Track(context.Background(), EventFavoriteAdd, map[string]any{"tmdb_id": 550}, map[string]any{"userId": "u1"})
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if err := q.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	e := sink.batches[0][0]
	if e.ID == "" || e.Type != EventFavoriteAdd || e.Timestamp != now.UnixMilli() {
		t.Errorf("event = %+v", e)
	}
	if e.Metadata["environment"] != "test" || e.Metadata["userId"] != "u1" {
		t.Errorf("metadata = %v", e.Metadata)
	}
}

func TestEventQueue_RejectsInvalid(t *testing.T) {
	t.Parallel()
	q := NewEventQueue(QueueOptions{})
	if err := q.Track(context.Background(), "", nil, nil); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("err = %v, want ErrInvalidEvent", err)
	}
	if q.Len() != 0 {
		t.Errorf("queue len = %d", q.Len())
	}
}

func TestEventQueue_FlushBatches(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	rec := metrics.NewInMemory()
	q := NewEventQueue(QueueOptions{Sink: sink, BatchSize: 1000, Recorder: rec})
	for i := 0; i < 120; i++ {
		_ = q.Track(context.Background(), EventSearchQuery, map[string]any{"i": i}, nil)
	}

	if err := q.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(sink.batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(sink.batches))
	}
	if len(sink.batches[0]) != PublishBatchSize || len(sink.batches[2]) != 20 {
		t.Errorf("batch sizes = %d/%d", len(sink.batches[0]), len(sink.batches[2]))
	}
	if got := rec.Snapshot().EventsPublished; got != 3 {
		t.Errorf("published success = %d, want 3", got)
	}
}

func TestEventQueue_RequeueOnFailure(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{fail: 1}
	q := NewEventQueue(QueueOptions{Sink: sink, BatchSize: 1000})
	for i := 0; i < 3; i++ {
		_ = q.Track(context.Background(), EventMovieView, map[string]any{"i": i}, nil)
	}

	if err := q.Flush(context.Background()); err == nil {
		t.Fatal("Flush should fail")
	}
	if q.Len() != 3 {
		t.Fatalf("requeued = %d, want 3", q.Len())
	}
	_ = q.Track(context.Background(), EventMovieView, map[string]any{"i": 3}, nil)

	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if sink.total() != 4 {
		t.Fatalf("published = %d, want 4", sink.total())
	}
	if sink.batches[0][0].Data["i"] != 0 {
		t.Errorf("requeued events should keep their order, got %v", sink.batches[0][0].Data)
	}
}

func TestEventQueue_FlushesAtBatchSize(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{flushed: make(chan struct{}, 1)}
	q := NewEventQueue(QueueOptions{Sink: sink, BatchSize: 2, FlushInterval: time.Hour})
	q.Start(context.Background())
	t.Cleanup(func() { _ = q.Close(context.Background()) })

	_ = q.Track(context.Background(), EventTVView, nil, nil)
	_ = q.Track(context.Background(), EventTVView, nil, nil)

	select {
	case <-sink.flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an early flush")
	}
	if sink.total() != 2 {
		t.Errorf("published = %d, want 2", sink.total())
	}
}

type fakeNATS struct {
	msgs    []*nats.Msg
	flushes int
}

func (f *fakeNATS) PublishMsg(m *nats.Msg) error {
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeNATS) FlushWithContext(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return nats.ErrNoDeadlineContext
	}
	f.flushes++
	return nil
}

func TestNATSSink_Subjects(t *testing.T) {
	t.Parallel()
	conn := &fakeNATS{}
	sink := NewNATSSink(conn)

	err := sink.Publish(context.Background(), []Event{
		{ID: "a", Type: EventWatchlistAdd, Timestamp: 1},
		{ID: "b", Type: EventAPIError, Timestamp: 2},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(conn.msgs) != 2 || conn.flushes != 1 {
		t.Fatalf("msgs = %d flushes = %d", len(conn.msgs), conn.flushes)
	}
	if conn.msgs[0].Subject != "analytics.watchlist.add" || conn.msgs[1].Subject != "analytics.api.error" {
		t.Errorf("subjects = %s, %s", conn.msgs[0].Subject, conn.msgs[1].Subject)
	}
	if conn.msgs[1].Header.Get("Event-Id") != "b" {
		t.Errorf("header = %v", conn.msgs[1].Header)
	}
	var decoded Event
	if err := json.Unmarshal(conn.msgs[0].Data, &decoded); err != nil || decoded.ID != "a" {
		t.Errorf("payload = %s, %v", conn.msgs[0].Data, err)
	}
}

func TestRedisStreamSink_Publish(t *testing.T) {
	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	if err := testutil.FlushRedis(ctx, client); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	sink := NewRedisStreamSink(client, nil)
	if err := sink.Publish(ctx, []Event{{ID: "e1", Type: EventUserLogin, Timestamp: 1}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	entries, err := client.XRange(ctx, StreamKey, "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(entries) != 1 || entries[0].Values["type"] != EventUserLogin {
		t.Errorf("entries = %v", entries)
	}
}
