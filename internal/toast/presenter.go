// Package toast renders the ephemeral, self-dismissing notification cards.
package toast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gymaccess/access-panel/internal/domain"
	"github.com/gymaccess/access-panel/internal/observability"
	"go.uber.org/zap"
)

// DefaultTTL is how long a toast stays up before dismissing itself.
const DefaultTTL = 6 * time.Second

// queueCapacity bounds the hand-off between the ingestion channel and the
// presentation worker. The channel never blocks on the UI; overflow drops.
const queueCapacity = 64

// Toast is one visible notification card.
type Toast struct {
	ID       string
	Event    domain.AccessEvent
	Severity domain.Severity
	ShownAt  time.Time
}

// Listener observes toast lifecycle edges.
type Listener interface {
	ToastShown(toast Toast)
	ToastDismissed(id string, byUser bool)
}

// Announcer voices a presented event. Dismissing the toast does not stop
// the announcement; the two lifecycles are deliberately decoupled.
type Announcer interface {
	Announce(event domain.AccessEvent)
}

type entry struct {
	toast Toast
	timer *time.Timer
}

// Presenter turns delivered events into toasts. Every delivered event gets
// its own toast, including events the notification store deduplicated.
type Presenter struct {
	ttl       time.Duration
	announcer Announcer
	logger    *zap.Logger
	metrics   *observability.Metrics
	queue     chan domain.AccessEvent
	newID     func() string
	now       func() time.Time

	mu        sync.Mutex
	active    map[string]*entry
	order     []string
	listeners map[int]Listener
	nextSubID int
}

func NewPresenter(ttl time.Duration, announcer Announcer, logger *zap.Logger) *Presenter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Presenter{
		ttl:       ttl,
		announcer: announcer,
		logger:    logger,
		queue:     make(chan domain.AccessEvent, queueCapacity),
		newID:     uuid.NewString,
		now:       time.Now,
		active:    make(map[string]*entry),
		listeners: make(map[int]Listener),
	}
}

func (p *Presenter) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

// Deliver enqueues an event for presentation without ever blocking the
// caller. When the queue is full the event is dropped with a log line.
func (p *Presenter) Deliver(event domain.AccessEvent) {
	select {
	case p.queue <- event:
	default:
		p.logger.Warn("toast queue full, dropping event",
			zap.String("eventId", event.ID),
		)
	}
}

// Run consumes delivered events until ctx is canceled.
func (p *Presenter) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-p.queue:
			p.show(event)
		}
	}
}

func (p *Presenter) show(event domain.AccessEvent) {
	toast := Toast{
		ID:       p.newID(),
		Event:    event,
		Severity: domain.ClassifySeverity(event),
		ShownAt:  p.now(),
	}

	p.mu.Lock()
	e := &entry{toast: toast}
	e.timer = time.AfterFunc(p.ttl, func() {
		p.dismiss(toast.ID, false)
	})
	p.active[toast.ID] = e
	p.order = append(p.order, toast.ID)
	listeners := p.listenersLocked()
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.SetActiveToasts(p.activeCount())
	}

	for _, l := range listeners {
		l.ToastShown(toast)
	}

	if p.announcer != nil {
		p.announcer.Announce(event)
	}
}

// Dismiss removes a toast on explicit user action, canceling its timer.
// It reports whether the toast was still visible.
func (p *Presenter) Dismiss(id string) bool {
	return p.dismiss(id, true)
}

func (p *Presenter) dismiss(id string, byUser bool) bool {
	p.mu.Lock()
	e, ok := p.active[id]
	if !ok {
		p.mu.Unlock()
		return false
	}
	e.timer.Stop()
	delete(p.active, id)
	for i, activeID := range p.order {
		if activeID == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	listeners := p.listenersLocked()
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.SetActiveToasts(p.activeCount())
	}

	for _, l := range listeners {
		l.ToastDismissed(id, byUser)
	}
	return true
}

// Active returns the visible toasts in the order they were shown.
func (p *Presenter) Active() []Toast {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Toast, 0, len(p.order))
	for _, id := range p.order {
		if e, ok := p.active[id]; ok {
			out = append(out, e.toast)
		}
	}
	return out
}

// Subscribe registers a lifecycle listener and returns its unsubscribe func.
func (p *Presenter) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}

	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.listeners[id] = listener
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Presenter) listenersLocked() []Listener {
	out := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		out = append(out, l)
	}
	return out
}

func (p *Presenter) activeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}
