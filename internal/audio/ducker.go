// Package audio attenuates ambient media while an announcement plays.
// Players register into an explicit registry; nothing walks a global scene.
package audio

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Signals broadcast for sibling panel processes that coordinate ambient audio.
const (
	SignalDuck    = "DUCK"
	SignalRestore = "RESTORE"
)

// DefaultDuckLevel is the muted-adjacent volume applied while speech plays.
const DefaultDuckLevel = 0.1

const broadcastTimeout = 2 * time.Second

// Player is an ambient media element whose volume can be attenuated.
type Player interface {
	Volume() float64
	SetVolume(volume float64)
}

// Broadcaster posts best-effort duck/restore signals to other processes.
// Failures are swallowed by the ducker.
type Broadcaster interface {
	Broadcast(ctx context.Context, signal string) error
}

// NopBroadcaster drops every signal. Used when no broker is configured.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(context.Context, string) error { return nil }

// Ducker lowers registered players to the duck level and restores each one
// to its exact pre-duck volume. Duck/restore pairs are reference counted so
// overlapping announcements stay correctly nested; Restore is idempotent
// off the snapshot captured at duck time.
type Ducker struct {
	duckLevel   float64
	broadcaster Broadcaster
	logger      *zap.Logger

	mu        sync.Mutex
	players   map[int]Player
	nextID    int
	duckDepth int
	saved     map[int]float64
}

func NewDucker(duckLevel float64, broadcaster Broadcaster, logger *zap.Logger) *Ducker {
	if duckLevel <= 0 || duckLevel >= 1 {
		duckLevel = DefaultDuckLevel
	}
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ducker{
		duckLevel:   duckLevel,
		broadcaster: broadcaster,
		logger:      logger,
		players:     make(map[int]Player),
		saved:       make(map[int]float64),
	}
}

// Register adds a player to the registry and returns its unregister func.
// A player registered while ducking is active is attenuated immediately.
func (d *Ducker) Register(player Player) func() {
	if player == nil {
		return func() {}
	}

	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.players[id] = player
	if d.duckDepth > 0 {
		d.saved[id] = player.Volume()
		player.SetVolume(d.duckLevel)
	}
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.players, id)
		delete(d.saved, id)
		d.mu.Unlock()
	}
}

// Duck attenuates all registered players. Only the outermost call captures
// the pre-duck snapshot.
func (d *Ducker) Duck() {
	d.mu.Lock()
	d.duckDepth++
	if d.duckDepth == 1 {
		for id, player := range d.players {
			d.saved[id] = player.Volume()
			player.SetVolume(d.duckLevel)
		}
	}
	d.mu.Unlock()

	d.broadcast(SignalDuck)
}

// Restore undoes one Duck. Only the outermost restore puts volumes back,
// using the values captured when ducking began. Calling Restore without a
// matching Duck is a no-op.
func (d *Ducker) Restore() {
	d.mu.Lock()
	if d.duckDepth == 0 {
		d.mu.Unlock()
		return
	}
	d.duckDepth--
	if d.duckDepth == 0 {
		for id, volume := range d.saved {
			if player, ok := d.players[id]; ok {
				player.SetVolume(volume)
			}
		}
		d.saved = make(map[int]float64)
	}
	d.mu.Unlock()

	d.broadcast(SignalRestore)
}

func (d *Ducker) broadcast(signal string) {
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()

	if err := d.broadcaster.Broadcast(ctx, signal); err != nil {
		d.logger.Debug("audio signal broadcast failed",
			zap.String("signal", signal),
			zap.Error(err),
		)
	}
}
