// Package speech composes and plays voice announcements for access events.
package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gymaccess/access-panel/internal/audio"
	"github.com/gymaccess/access-panel/internal/domain"
	"github.com/gymaccess/access-panel/internal/observability"
	"go.uber.org/zap"
)

// Announcer plays at most one utterance at a time. Starting a new
// announcement flushes the one in flight (last request wins). Ambient audio
// is ducked for the duration of the utterance and restored on completion or
// error; engine failures never surface past this type.
type Announcer struct {
	engine  Engine
	ducker  *audio.Ducker
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	active sync.WaitGroup
}

func NewAnnouncer(engine Engine, ducker *audio.Ducker, logger *zap.Logger) *Announcer {
	if engine == nil {
		engine = NopEngine{}
	}
	if ducker == nil {
		ducker = audio.NewDucker(audio.DefaultDuckLevel, nil, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Announcer{
		engine: engine,
		ducker: ducker,
		logger: logger,
		now:    time.Now,
	}
}

func (a *Announcer) SetMetrics(metrics *observability.Metrics) {
	if a == nil {
		return
	}
	a.metrics = metrics
}

// Announce starts speaking the composed message for event, preempting any
// utterance already playing. It returns immediately; playback happens on
// its own goroutine.
func (a *Announcer) Announce(event domain.AccessEvent) {
	text := ComposeAnnouncement(event, a.now())
	if strings.TrimSpace(text) == "" {
		return
	}

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.active.Add(1)
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.IncAnnouncementStarted()
	}

	go a.speak(ctx, cancel, text)
}

func (a *Announcer) speak(ctx context.Context, cancel context.CancelFunc, text string) {
	defer a.active.Done()
	defer cancel()

	a.ducker.Duck()
	// The restore is the cleanup path: it must run on normal completion,
	// on error, and on preemption alike.
	defer a.ducker.Restore()

	err := a.engine.Speak(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		// Flushed by a newer announcement; not a failure.
	default:
		a.logger.Debug("speech playback failed", zap.Error(err))
		if a.metrics != nil {
			a.metrics.IncAnnouncementFailed()
		}
	}
}

// Stop flushes any in-flight utterance and waits for its cleanup.
func (a *Announcer) Stop() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()

	a.active.Wait()
}
