package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"htmlvault/internal/config"
)

type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

// NATSPublisher sends events as JSON messages on core NATS subjects.
type NATSPublisher struct {
	conn   natsConn
	prefix string
	log    *zap.Logger
}

// New returns a NATS publisher, or Noop when cfg.URL is empty.
func New(cfg config.NATSConfig, log *zap.Logger) (Publisher, error) {
	if cfg.URL == "" {
		return Noop{}, nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("htmlvault"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return newNATSPublisher(conn, cfg.SubjectPrefix, log), nil
}

func newNATSPublisher(conn natsConn, prefix string, log *zap.Logger) *NATSPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &NATSPublisher{conn: conn, prefix: prefix, log: log}
}

// Subject returns the subject an event of kind is published on.
func (p *NATSPublisher) Subject(kind string) string {
	if p.prefix == "" {
		return kind
	}
	return p.prefix + "." + kind
}

// Publish encodes e and publishes it. NATS core publish does not block on
// the server, so ctx is only checked before sending.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(e.Kind), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	err := p.conn.Drain()
	p.conn.Close()
	return err
}
