package analytics

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/app/shortlink/memstore"

	"github.com/segmentio/kafka-go"
)

func TestChannelDispatcherDropsWhenFull(t *testing.T) {
	d := NewChannelDispatcher(1)
	defer d.Close()

	done := make(chan struct{})
	go func() {
		d.Dispatch(shortlink.RecordRequest{LinkID: "a"})
		d.Dispatch(shortlink.RecordRequest{LinkID: "b"}) // 队列满，必须立即返回
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}

	got := <-d.Events()
	if got.LinkID != "a" {
		t.Errorf("first event = %q, want a", got.LinkID)
	}
}

func TestChannelDispatcherCloseIsSafe(t *testing.T) {
	d := NewChannelDispatcher(4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Dispatch(shortlink.RecordRequest{LinkID: "x"})
			}
		}()
	}
	d.Close()
	d.Close()
	wg.Wait()

	// 关闭后仍可调用，只是被丢弃
	d.Dispatch(shortlink.RecordRequest{LinkID: "late"})
}

func newLinkedStore(t *testing.T) (*memstore.Store, shortlink.ShortLink) {
	t.Helper()
	store := memstore.New()
	link, err := store.Create(context.Background(), shortlink.NewLink{
		OwnerID:        "U1",
		DestinationURL: "https://example.com",
		Slug:           "queue1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return store, link
}

func countEvents(t *testing.T, store *memstore.Store, linkID string) int {
	t.Helper()
	events, err := store.ListByLinks(context.Background(), []string{linkID})
	if err != nil {
		t.Fatalf("ListByLinks: %v", err)
	}
	return len(events)
}

// dispatcher 关闭后 consumer 把剩余事件写完再退出
func TestConsumerFlushesOnClose(t *testing.T) {
	store, link := newLinkedStore(t)
	d := NewChannelDispatcher(10)
	c := NewConsumer(NewRecorder(store), d, ConsumerOptions{BatchSize: 100, FlushInterval: time.Hour})

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	for i := 0; i < 3; i++ {
		d.Dispatch(shortlink.RecordRequest{LinkID: link.ID})
	}
	d.Dispatch(shortlink.RecordRequest{LinkID: "missing"}) // 失败只记日志
	d.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after Close")
	}
	if n := countEvents(t, store, link.ID); n != 3 {
		t.Errorf("events = %d, want 3", n)
	}
}

func TestConsumerFlushesByInterval(t *testing.T) {
	store, link := newLinkedStore(t)
	d := NewChannelDispatcher(10)
	defer d.Close()
	c := NewConsumer(NewRecorder(store), d, ConsumerOptions{BatchSize: 100, FlushInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	d.Dispatch(shortlink.RecordRequest{LinkID: link.ID})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if countEvents(t, store, link.ID) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("event was not flushed by the ticker")
}

func TestConsumerDrainsOnCancel(t *testing.T) {
	store, link := newLinkedStore(t)
	d := NewChannelDispatcher(10)
	defer d.Close()

	for i := 0; i < 5; i++ {
		d.Dispatch(shortlink.RecordRequest{LinkID: link.ID})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewConsumer(NewRecorder(store), d, ConsumerOptions{BatchSize: 2, FlushInterval: time.Hour}).Run(ctx)

	if n := countEvents(t, store, link.ID); n != 5 {
		t.Errorf("events = %d, want 5", n)
	}
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs chan kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m, ok := <-r.msgs:
		if !ok {
			return kafka.Message{}, io.EOF
		}
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error { return nil }

func TestKafkaRoundTrip(t *testing.T) {
	store, link := newLinkedStore(t)
	w := &fakeWriter{}
	kd := &KafkaDispatcher{writer: w}

	country := "DE"
	kd.Dispatch(shortlink.RecordRequest{LinkID: link.ID, DeviceType: shortlink.DeviceMobile, Country: &country})
	kd.Dispatch(shortlink.RecordRequest{LinkID: link.ID})

	if len(w.msgs) != 2 {
		t.Fatalf("written = %d, want 2", len(w.msgs))
	}
	if string(w.msgs[0].Key) != link.ID {
		t.Errorf("key = %q, want link id", w.msgs[0].Key)
	}

	r := &fakeReader{msgs: make(chan kafka.Message, 3)}
	for _, m := range w.msgs {
		r.msgs <- m
	}
	r.msgs <- kafka.Message{Value: []byte("not json")}
	close(r.msgs)

	kc := &KafkaConsumer{reader: r, recorder: NewRecorder(store), opts: ConsumerOptions{}.withDefaults()}
	kc.Run(context.Background())

	events, _ := store.ListByLinks(context.Background(), []string{link.ID})
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].DeviceType != shortlink.DeviceMobile || events[0].Country == nil || *events[0].Country != "DE" {
		t.Errorf("first event = %+v", events[0])
	}
}

func TestKafkaDispatchErrorIsSwallowed(t *testing.T) {
	kd := &KafkaDispatcher{writer: &fakeWriter{err: errors.New("broker down")}}
	kd.Dispatch(shortlink.RecordRequest{LinkID: "x"})
	kd.Close()
}
