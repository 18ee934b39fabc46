// Package ingest owns the persistent push connection to the access-control
// backend and feeds validated events to the rest of the panel.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gymaccess/access-panel/internal/domain"
	"github.com/gymaccess/access-panel/internal/observability"
	"go.uber.org/zap"
)

// DefaultRetryDelay is the fixed reconnect delay. Retries are unconditional
// with no backoff growth and no cap: the panel must eventually recover once
// the network does.
const DefaultRetryDelay = 5 * time.Second

const dialTimeout = 10 * time.Second

// State is the connection lifecycle state of the channel.
type State string

const (
	StateConnecting State = "CONNECTING"
	StateOpen       State = "OPEN"
	StateClosed     State = "CLOSED"
)

func (s State) String() string { return string(s) }

// Sink receives every well-formed event exactly once per server message.
// Deliver must not block: the channel applies no backpressure from the UI
// side to the read loop.
type Sink interface {
	Deliver(event domain.AccessEvent)
}

// conn is the subset of *websocket.Conn the channel reads from.
type conn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

// Channel maintains exactly one live push connection per panel session.
type Channel struct {
	url        string
	retryDelay time.Duration
	sinks      []Sink
	logger     *zap.Logger
	metrics    *observability.Metrics

	dial func(ctx context.Context, url string) (conn, error)
	now  func() time.Time

	mu    sync.Mutex
	state State
}

func NewChannel(url string, retryDelay time.Duration, sinks []Sink, logger *zap.Logger) (*Channel, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("push channel url is required")
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Channel{
		url:        url,
		retryDelay: retryDelay,
		sinks:      sinks,
		logger:     logger,
		dial:       dialWebsocket,
		now:        time.Now,
		state:      StateConnecting,
	}, nil
}

func (c *Channel) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run drives the connect/read/reconnect loop until ctx is canceled. Context
// cancellation is the only clean terminal path; every other exit from the
// read loop schedules a reconnect after the fixed delay.
func (c *Channel) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		c.setState(StateConnecting)

		connection, err := c.dial(ctx, c.url)
		if err != nil {
			c.setState(StateClosed)
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("push channel dial failed",
				zap.String("url", c.url),
				zap.Error(err),
			)
			if !c.waitRetry(ctx) {
				return nil
			}
			continue
		}

		c.setState(StateOpen)
		c.logger.Info("push channel connected", zap.String("url", c.url))

		// Teardown must unblock the read and close the socket.
		stop := context.AfterFunc(ctx, func() {
			_ = connection.Close()
		})
		c.readLoop(ctx, connection)
		stop()

		// Force-close so a transport error never leaves a half-open socket.
		_ = connection.Close()
		c.setState(StateClosed)

		if ctx.Err() != nil {
			return nil
		}

		if c.metrics != nil {
			c.metrics.IncChannelReconnect()
		}
		if !c.waitRetry(ctx) {
			return nil
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, connection conn) {
	for {
		_, payload, err := connection.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("push channel read failed", zap.Error(err))
			}
			return
		}
		c.handleFrame(payload)
	}
}

func (c *Channel) handleFrame(payload []byte) {
	if c.metrics != nil {
		c.metrics.IncFrameReceived()
	}

	if isHeartbeat(payload) {
		return
	}

	event, ok, err := decodeEvent(payload, c.now())
	if err != nil {
		// Malformed frames are dropped without closing the connection.
		c.logger.Warn("dropping malformed frame", zap.Error(err))
		if c.metrics != nil {
			c.metrics.IncFrameDropped("malformed")
		}
		return
	}
	if !ok {
		if c.metrics != nil {
			c.metrics.IncFrameDropped("foreign_topic")
		}
		return
	}

	if c.metrics != nil {
		c.metrics.IncEventIngested(event.AccessGranted)
	}

	for _, sink := range c.sinks {
		sink.Deliver(event)
	}
}

// waitRetry sleeps for the fixed reconnect delay. It reports false when ctx
// was canceled before the delay elapsed.
func (c *Channel) waitRetry(ctx context.Context) bool {
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Channel) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func dialWebsocket(ctx context.Context, url string) (conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	connection, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, err
	}
	return connection, nil
}
