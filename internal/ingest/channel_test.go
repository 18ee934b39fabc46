package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gymaccess/access-panel/internal/domain"
)

type fakeConn struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-c.frames:
		return websocket.TextMessage, frame, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// serverClose simulates a transport error / server-initiated close.
func (c *fakeConn) serverClose() { _ = c.Close() }

type recordingSink struct {
	mu     sync.Mutex
	events []domain.AccessEvent
}

func (s *recordingSink) Deliver(event domain.AccessEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() []domain.AccessEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AccessEvent, len(s.events))
	copy(out, s.events)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestChannel(t *testing.T, sink Sink, retryDelay time.Duration) (*Channel, chan *fakeConn) {
	t.Helper()

	channel, err := NewChannel("ws://gym.local/ws", retryDelay, []Sink{sink}, nil)
	if err != nil {
		t.Fatalf("NewChannel() error = %v", err)
	}

	conns := make(chan *fakeConn, 4)
	channel.dial = func(ctx context.Context, url string) (conn, error) {
		c := newFakeConn()
		conns <- c
		return c, nil
	}

	return channel, conns
}

func TestNewChannelRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewChannel("  ", 0, nil, nil); err == nil {
		t.Fatal("NewChannel() error = nil, want error for empty url")
	}
}

func TestChannelDeliversEventsToSinks(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	channel, conns := newTestChannel(t, sink, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = channel.Run(ctx)
	}()

	c := <-conns
	waitFor(t, time.Second, func() bool { return channel.State() == StateOpen })

	c.frames <- []byte(`{"topic":"evento","data":{"id":1,"nombre":"Ana","mensaje":"Bienvenida","permitido":true,"hora":"10:00"}}`)
	waitFor(t, time.Second, func() bool { return len(sink.snapshot()) == 1 })

	got := sink.snapshot()[0]
	if got.SubjectName != "Ana" || !got.AccessGranted {
		t.Fatalf("delivered event = %+v", got)
	}

	cancel()
	<-done
}

func TestChannelIgnoresHeartbeatAndForeignFrames(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	channel, conns := newTestChannel(t, sink, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = channel.Run(ctx) }()

	c := <-conns
	waitFor(t, time.Second, func() bool { return channel.State() == StateOpen })

	c.frames <- []byte("ping")
	c.frames <- []byte(`{"topic":"chat","data":{"nombre":"Ana"}}`)
	c.frames <- []byte("{{malformed")
	// A trailing valid frame proves the invalid ones were processed and the
	// connection survived them.
	c.frames <- []byte(`{"topic":"evento","data":{"nombre":"Luis","mensaje":"Acceso denegado","permitido":false}}`)

	waitFor(t, time.Second, func() bool { return len(sink.snapshot()) == 1 })
	if channel.State() != StateOpen {
		t.Fatalf("State() = %s after dropped frames, want OPEN", channel.State())
	}
	if got := sink.snapshot()[0].SubjectName; got != "Luis" {
		t.Fatalf("delivered subject = %s, want Luis", got)
	}
}

func TestChannelReconnectsAfterFixedDelay(t *testing.T) {
	t.Parallel()

	const retryDelay = 50 * time.Millisecond

	sink := &recordingSink{}
	channel, _ := newTestChannel(t, sink, retryDelay)

	var mu sync.Mutex
	var dialTimes []time.Time
	conns := make(chan *fakeConn, 4)
	channel.dial = func(ctx context.Context, url string) (conn, error) {
		mu.Lock()
		dialTimes = append(dialTimes, time.Now())
		mu.Unlock()
		c := newFakeConn()
		conns <- c
		return c, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = channel.Run(ctx) }()

	first := <-conns
	waitFor(t, time.Second, func() bool { return channel.State() == StateOpen })

	closedAt := time.Now()
	first.serverClose()

	waitFor(t, time.Second, func() bool { return channel.State() == StateClosed || channel.State() == StateConnecting || channel.State() == StateOpen })

	second := <-conns
	_ = second

	mu.Lock()
	dialCount := len(dialTimes)
	var redialAt time.Time
	if dialCount >= 2 {
		redialAt = dialTimes[1]
	}
	mu.Unlock()

	if dialCount < 2 {
		t.Fatalf("dial count = %d, want >= 2 after server close", dialCount)
	}
	if elapsed := redialAt.Sub(closedAt); elapsed < retryDelay {
		t.Fatalf("redial after %s, want >= %s", elapsed, retryDelay)
	}
	waitFor(t, time.Second, func() bool { return channel.State() == StateOpen })
}

func TestChannelStopsOnTeardown(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	channel, conns := newTestChannel(t, sink, 10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := channel.Run(ctx); err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	}()

	<-conns
	waitFor(t, time.Second, func() bool { return channel.State() == StateOpen })

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}

	if channel.State() != StateClosed {
		t.Fatalf("State() = %s after teardown, want CLOSED", channel.State())
	}

	// No reconnect may be scheduled after teardown.
	select {
	case <-conns:
		t.Fatal("channel dialed again after teardown")
	case <-time.After(50 * time.Millisecond):
	}
}
