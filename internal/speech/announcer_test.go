package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gymaccess/access-panel/internal/audio"
	"github.com/gymaccess/access-panel/internal/domain"
)

// blockingEngine blocks each utterance until released or canceled.
type blockingEngine struct {
	mu      sync.Mutex
	spoken  []string
	release chan struct{}
	err     error
}

func newBlockingEngine() *blockingEngine {
	return &blockingEngine{release: make(chan struct{}, 16)}
}

func (e *blockingEngine) Speak(ctx context.Context, text string) error {
	e.mu.Lock()
	e.spoken = append(e.spoken, text)
	e.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.release:
		return e.err
	}
}

func (e *blockingEngine) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.spoken))
	copy(out, e.spoken)
	return out
}

type fakePlayer struct {
	mu     sync.Mutex
	volume float64
}

func (p *fakePlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *fakePlayer) SetVolume(volume float64) {
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
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

func grantedEvent(name string) domain.AccessEvent {
	return domain.AccessEvent{ID: "ev-" + name, SubjectName: name, AccessGranted: true}
}

func TestAnnounceDucksAndRestoresExactVolume(t *testing.T) {
	t.Parallel()

	engine := newBlockingEngine()
	ducker := audio.NewDucker(0.1, nil, nil)
	ambient := &fakePlayer{volume: 0.8}
	defer ducker.Register(ambient)()

	announcer := NewAnnouncer(engine, ducker, nil)

	announcer.Announce(grantedEvent("Ana"))
	waitFor(t, time.Second, func() bool { return ambient.Volume() == 0.1 })

	engine.release <- struct{}{}
	waitFor(t, time.Second, func() bool { return ambient.Volume() == 0.8 })
}

func TestAnnounceRestoresOnEngineError(t *testing.T) {
	t.Parallel()

	engine := newBlockingEngine()
	engine.err = errors.New("synthesis unavailable")
	ducker := audio.NewDucker(0.1, nil, nil)
	ambient := &fakePlayer{volume: 0.6}
	defer ducker.Register(ambient)()

	announcer := NewAnnouncer(engine, ducker, nil)

	announcer.Announce(grantedEvent("Ana"))
	waitFor(t, time.Second, func() bool { return ambient.Volume() == 0.1 })

	engine.release <- struct{}{}
	waitFor(t, time.Second, func() bool { return ambient.Volume() == 0.6 })
}

func TestAnnouncePreemptsInFlightUtterance(t *testing.T) {
	t.Parallel()

	engine := newBlockingEngine()
	ducker := audio.NewDucker(0.1, nil, nil)
	ambient := &fakePlayer{volume: 0.8}
	defer ducker.Register(ambient)()

	announcer := NewAnnouncer(engine, ducker, nil)

	announcer.Announce(grantedEvent("Ana"))
	waitFor(t, time.Second, func() bool { return len(engine.snapshot()) == 1 })

	// The second announcement flushes the first without releasing it.
	announcer.Announce(grantedEvent("Luis"))
	waitFor(t, time.Second, func() bool { return len(engine.snapshot()) == 2 })

	// While the second utterance plays the ambient stays ducked, even
	// though the first one already ran its restore.
	time.Sleep(20 * time.Millisecond)
	if ambient.Volume() != 0.1 {
		t.Fatalf("volume during second utterance = %v, want 0.1", ambient.Volume())
	}

	engine.release <- struct{}{}
	waitFor(t, time.Second, func() bool { return ambient.Volume() == 0.8 })
}

func TestAnnounceSkipsEmptyPhrases(t *testing.T) {
	t.Parallel()

	engine := newBlockingEngine()
	announcer := NewAnnouncer(engine, nil, nil)

	// Denied events speak the raw message; an empty one yields nothing.
	announcer.Announce(domain.AccessEvent{ID: "ev-1", SubjectName: "Luis", AccessGranted: false, Message: "  "})
	announcer.Stop()

	if got := engine.snapshot(); len(got) != 0 {
		t.Fatalf("spoken = %v, want none", got)
	}
}

func TestStopFlushesInFlightUtterance(t *testing.T) {
	t.Parallel()

	engine := newBlockingEngine()
	ducker := audio.NewDucker(0.1, nil, nil)
	ambient := &fakePlayer{volume: 0.8}
	defer ducker.Register(ambient)()

	announcer := NewAnnouncer(engine, ducker, nil)
	announcer.Announce(grantedEvent("Ana"))
	waitFor(t, time.Second, func() bool { return len(engine.snapshot()) == 1 })

	announcer.Stop()

	if ambient.Volume() != 0.8 {
		t.Fatalf("volume after Stop() = %v, want 0.8", ambient.Volume())
	}
}
