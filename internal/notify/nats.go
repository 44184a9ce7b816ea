package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/goran-ethernal/ChainProcessor/pkg/notify"
	"github.com/nats-io/nats.go"
)

var _ notify.Observer = (*NATSSink)(nil)

// Publisher is the part of a NATS connection the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every notification to <prefix>.<chain>.<type>.
type NATSSink struct {
	conn   *nats.Conn
	pub    Publisher
	prefix string
}

// NewNATSSink connects to NATS, reconnecting forever on connection loss.
func NewNATSSink(cfg *config.NATSConfig) (*NATSSink, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url, nats.Name("chain-processor"), nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	sink := NewNATSSinkFromPublisher(conn, cfg.SubjectPrefix)
	sink.conn = conn

	return sink, nil
}

// NewNATSSinkFromPublisher wraps an existing publisher.
func NewNATSSinkFromPublisher(pub Publisher, prefix string) *NATSSink {
	return &NATSSink{pub: pub, prefix: prefix}
}

func (s *NATSSink) Notify(_ context.Context, n notify.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := s.pub.Publish(s.subject(n.Chain, n.Type), data); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}

	return nil
}

// Close flushes pending messages and closes the connection.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Flush(); err != nil {
		s.conn.Close()
		return err
	}
	s.conn.Close()
	return nil
}

func (s *NATSSink) subject(chain string, t notify.EventType) string {
	return fmt.Sprintf("%s.%s.%s", s.prefix, chain, t)
}
