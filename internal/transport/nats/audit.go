// Package nats publishes routing audit events on a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/kailas-cloud/kbroute/internal/domain/routing"
)

// headerCarrier adapts nats.Msg headers for the otel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// AuditPublisher sends each audit record as a JSON message carrying the
// caller's trace context in its headers.
type AuditPublisher struct {
	conn    msgPublisher
	subject string
}

// NewAuditPublisher wraps an open connection.
func NewAuditPublisher(nc *nats.Conn, subject string) *AuditPublisher {
	return &AuditPublisher{conn: nc, subject: subject}
}

// Connect dials url and returns the connection with a publisher on subject.
func Connect(url, subject string) (*nats.Conn, *AuditPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("kbroute"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, NewAuditPublisher(nc, subject), nil
}

// Name identifies the sink in metrics.
func (p *AuditPublisher) Name() string { return "nats" }

// Write publishes one record.
func (p *AuditPublisher) Write(ctx context.Context, rec *routing.AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	msg := &nats.Msg{Subject: p.subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}
