// Package transport maintains the single long-lived websocket connection to
// the inbox backend. It reconnects after every close or error, decodes
// inbound JSON envelopes into an ordered event channel, and sends outbound
// commands. Connection state is exposed as an observable boolean.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-sync/internal/model"
	"github.com/capitalize-ai/inbox-sync/pkg/logger"
	"github.com/capitalize-ai/inbox-sync/pkg/metrics"
	"github.com/capitalize-ai/inbox-sync/pkg/observe"
)

// ErrNotConnected is returned by Send while the connection is not open.
// Commands are never queued across disconnects.
var ErrNotConnected = errors.New("push transport not connected")

const (
	// DefaultReconnectDelay is the base delay before a reconnect attempt.
	DefaultReconnectDelay = 3 * time.Second

	// DefaultMaxReconnectDelay caps the backoff growth.
	DefaultMaxReconnectDelay = 30 * time.Second

	// stableThreshold is how long a connection must live for the backoff
	// to reset to the base delay.
	stableThreshold = 60 * time.Second
)

// Options configures a Transport.
type Options struct {
	// URL is the websocket endpoint, e.g. ws://host/ws.
	URL string

	// Token is appended as a query parameter when non-empty. An empty
	// token means an anonymous connection attempt.
	Token string

	// ReconnectDelay is the base reconnect delay; the actual delay grows
	// exponentially with jitter up to MaxReconnectDelay and resets after
	// a stable connection.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

// Transport owns the websocket connection.
type Transport struct {
	url    string
	opts   Options
	logger *logger.Logger

	events    chan model.Envelope
	connected *observe.Value[bool]

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a Transport. Run must be called to start connecting.
func New(opts Options, log *logger.Logger) (*Transport, error) {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.MaxReconnectDelay < opts.ReconnectDelay {
		opts.MaxReconnectDelay = DefaultMaxReconnectDelay
	}

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, err
	}
	if opts.Token != "" {
		q := u.Query()
		q.Set("token", opts.Token)
		u.RawQuery = q.Encode()
	}

	t := &Transport{
		url:       u.String(),
		opts:      opts,
		logger:    log,
		events:    make(chan model.Envelope, 256),
		connected: observe.NewValue[bool](),
	}
	t.connected.Set(false)
	return t, nil
}

// Events returns the ordered stream of decoded push envelopes. The channel
// is closed when Run returns.
func (t *Transport) Events() <-chan model.Envelope {
	return t.events
}

// Connected exposes the connection state with current-value replay.
func (t *Transport) Connected() *observe.Value[bool] {
	return t.connected
}

// IsConnected reports whether the connection is currently open.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Send encodes v as JSON and writes it to the connection. It fails
// immediately with ErrNotConnected while the connection is not open.
func (t *Transport) Send(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrNotConnected
	}
	if err := t.conn.WriteJSON(v); err != nil {
		return err
	}
	return nil
}

// Run connects and keeps reconnecting until ctx is canceled. It closes the
// event channel on return.
func (t *Transport) Run(ctx context.Context) {
	defer close(t.events)

	delay := t.opts.ReconnectDelay
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.WSConnectsTotal.WithLabelValues("error").Inc()
			t.logger.Warn("push connect failed",
				zap.Error(err),
				zap.Duration("retry_in", delay),
			)
			if !sleep(ctx, withJitter(delay)) {
				return
			}
			delay = nextDelay(delay, t.opts.MaxReconnectDelay)
			continue
		}

		metrics.WSConnectsTotal.WithLabelValues("ok").Inc()
		t.logger.Info("push transport connected")
		t.setConn(conn)
		t.connected.Set(true)

		start := time.Now()
		t.readLoop(ctx, conn)

		t.setConn(nil)
		t.connected.Set(false)
		metrics.WSDisconnectsTotal.Inc()

		if ctx.Err() != nil {
			return
		}
		if time.Since(start) > stableThreshold {
			delay = t.opts.ReconnectDelay
		}
		t.logger.Warn("push transport disconnected", zap.Duration("retry_in", delay))
		if !sleep(ctx, withJitter(delay)) {
			return
		}
		delay = nextDelay(delay, t.opts.MaxReconnectDelay)
	}
}

func (t *Transport) setConn(conn *websocket.Conn) {
	t.mu.Lock()
	old := t.conn
	t.conn = conn
	t.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}

// readLoop reads frames until the connection fails. Malformed or untyped
// frames are dropped without surfacing an error.
func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			metrics.PushEventsDroppedTotal.Inc()
			t.logger.Debug("dropping malformed push frame", zap.Error(err))
			continue
		}
		if env.Type == "" {
			metrics.PushEventsDroppedTotal.Inc()
			continue
		}
		metrics.PushEventsTotal.WithLabelValues(string(env.Type)).Inc()

		select {
		case t.events <- env:
		case <-ctx.Done():
			return
		}
	}
}

func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}

func nextDelay(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		d = max
	}
	return d
}

// sleep waits for d or until ctx is canceled; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
