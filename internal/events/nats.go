package events

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/nats-io/nats.go"
)

// ConnectionMetrics observes the NATS connection state.
type ConnectionMetrics interface {
	NATSSetConnected(connected bool)
}

// NATSPublisher publishes events on <prefix>.<hotel>.<kind>.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher connects to NATS. m may be nil.
func NewNATSPublisher(url, prefix string, m ConnectionMetrics) (*NATSPublisher, error) {
	setConnected := func(connected bool) {
		if m != nil {
			m.NATSSetConnected(connected)
		}
	}

	nc, err := nats.Connect(url,
		nats.Name("shuttle-service"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			setConnected(false)
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			setConnected(true)
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			setConnected(false)
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	setConnected(true)
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

func (p *NATSPublisher) Name() string { return "nats" }

// Publish sends the event as JSON. Delivery is at-most-once.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.nc.Publish(Subject(p.prefix, e), b)
}

// Subject builds the NATS subject of an event.
func Subject(prefix string, e Event) string {
	return subjectToken(prefix) + "." + subjectToken(e.HotelID) + "." + string(e.Kind)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>', '*', or dots
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
