package simulator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-sync/internal/model"
	"github.com/capitalize-ai/inbox-sync/pkg/logger"
)

// eventSubjectPrefix is the NATS subject prefix for mirrored push events;
// the event type is appended, e.g. inbox.events.new_message.
const eventSubjectPrefix = "inbox.events."

// NATSMirror republishes every broadcast envelope to NATS, so other
// services can consume inbox activity without holding a websocket.
type NATSMirror struct {
	conn   *nats.Conn
	logger *logger.Logger
}

// NATSConfig holds the mirror connection settings.
type NATSConfig struct {
	URL   string
	Token string
}

// ConnectMirror connects to NATS. Returns nil without error when no URL is
// configured; the mirror is optional.
func ConnectMirror(cfg NATSConfig, log *logger.Logger) (*NATSMirror, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info("NATS event mirror connected", zap.String("url", cfg.URL))
	return &NATSMirror{conn: conn, logger: log}, nil
}

// Publish sends env to the subject for its event type. Publishing is best
// effort; a failure never blocks the websocket broadcast path.
func (m *NATSMirror) Publish(env model.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	subject := eventSubjectPrefix + string(env.Type)
	if err := m.conn.Publish(subject, data); err != nil {
		m.logger.Warn("NATS publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// Close drains and closes the connection.
func (m *NATSMirror) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
