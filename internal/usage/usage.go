// Package usage publishes resource-consumption events to the billing
// subsystem over a single long-lived broker connection. Delivery is
// at-least-once: a transient failure retries with backoff, forcing a
// fresh connection each attempt, before giving up.
//
// The original broker is a topic-exchange AMQP server; no AMQP client
// exists anywhere in the dependency pack this service was built from,
// so topics stand in for exchanges and a metadata round-trip stands in
// for a passive exchange declare as the connection-liveness probe.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const topic = "usage.events"

// EventType names one of the four publishable event kinds.
type EventType string

const (
	EventDocumentAdded   EventType = "usage.document.added"
	EventDocumentRemoved EventType = "usage.document.removed"
	EventWebsiteAdded    EventType = "usage.website.added"
	EventWebsiteRemoved  EventType = "usage.website.removed"
)

// Event is the JSON payload published for every event kind. Fields
// that don't apply to a given EventType are left zero.
type Event struct {
	EventType    EventType `json:"event_type"`
	TenantID     string    `json:"tenant_id"`
	EntityID     string    `json:"entity_id"`
	Count        int       `json:"count"`
	Timestamp    string    `json:"timestamp"`
	Filename     string    `json:"filename,omitempty"`
	SizeBytes    int64     `json:"size_bytes,omitempty"`
	URL          string    `json:"url,omitempty"`
	PagesScraped int       `json:"pages_scraped,omitempty"`
}

// writer is the broker surface the Publisher needs: write a message
// and close the connection. The liveness probe is dialer.checkLive.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// dialer builds a fresh writer and liveness-checks a broker address,
// so a forced-reconnect retry gets a brand new connection rather than
// reusing a possibly-stale one.
type dialer interface {
	dial(brokers []string, topic string) (writer, error)
	checkLive(brokers []string, topic string) error
}

// Publisher is a single process-wide client. The mutex matches the
// spec's single reentrant lock guarding connection state and publish
// calls: nothing external must observe a half-reconnected writer.
type Publisher struct {
	mu      sync.Mutex
	brokers []string
	topic   string
	dialer  dialer
	conn    writer
}

func New(brokers []string) *Publisher {
	return &Publisher{brokers: brokers, topic: topic, dialer: kafkaDialer{}}
}

// PublishDocumentAdded, PublishDocumentRemoved, PublishWebsiteAdded,
// and PublishWebsiteRemoved are fire-and-forget from the Background
// Runner's perspective: a publish failure here is logged, not
// returned up as an ingestion failure, per spec §4.11 step 7.

func (p *Publisher) PublishDocumentAdded(ctx context.Context, tenantID, documentID, filename string, sizeBytes int64) error {
	return p.publish(ctx, Event{
		EventType: EventDocumentAdded,
		TenantID:  tenantID,
		EntityID:  documentID,
		Count:     1,
		Filename:  filename,
		SizeBytes: sizeBytes,
	})
}

func (p *Publisher) PublishDocumentRemoved(ctx context.Context, tenantID, documentID string) error {
	return p.publish(ctx, Event{
		EventType: EventDocumentRemoved,
		TenantID:  tenantID,
		EntityID:  documentID,
		Count:     -1,
	})
}

func (p *Publisher) PublishWebsiteAdded(ctx context.Context, tenantID, ingestionID, url string, pagesScraped int) error {
	return p.publish(ctx, Event{
		EventType:    EventWebsiteAdded,
		TenantID:     tenantID,
		EntityID:     ingestionID,
		Count:        1,
		URL:          url,
		PagesScraped: pagesScraped,
	})
}

func (p *Publisher) PublishWebsiteRemoved(ctx context.Context, tenantID, ingestionID string) error {
	return p.publish(ctx, Event{
		EventType: EventWebsiteRemoved,
		TenantID:  tenantID,
		EntityID:  ingestionID,
		Count:     -1,
	})
}

// publish holds the connection lock for its full duration: the
// liveness check, any forced reconnect, and the write all happen
// under one critical section, matching the spec's "any publish must
// occur while holding that lock" rule.
func (p *Publisher) publish(ctx context.Context, evt Event) error {
	evt.Timestamp = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(evt)
	if err != nil {
		// Non-transient: a serialization bug never succeeds on retry.
		return fmt.Errorf("usage: marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 500 * time.Millisecond
	boff.Multiplier = 2.0
	b := backoff.WithMaxRetries(boff, 3)

	return backoff.Retry(func() error {
		if err := p.ensureLiveLocked(); err != nil {
			return err
		}
		msg := kafka.Message{
			Topic: p.topic,
			Key:   []byte(string(evt.EventType) + ":" + evt.TenantID + ":" + evt.EntityID),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte("application/json")},
			},
		}
		if writeErr := p.conn.WriteMessages(ctx, msg); writeErr != nil {
			logrus.WithError(writeErr).Warn("usage publish attempt failed, forcing reconnect")
			p.closeLocked()
			return writeErr
		}
		return nil
	}, b)
}

// ensureLiveLocked dials a connection if none exists, then verifies it
// with a metadata round-trip. A channel that reports "open" can still
// be stale after hours of idleness, so the round-trip — not the mere
// presence of a connection — is the liveness signal.
func (p *Publisher) ensureLiveLocked() error {
	if p.conn == nil {
		conn, err := p.dialer.dial(p.brokers, p.topic)
		if err != nil {
			return fmt.Errorf("usage: dial broker: %w", err)
		}
		p.conn = conn
	}
	if err := p.dialer.checkLive(p.brokers, p.topic); err != nil {
		p.closeLocked()
		conn, dialErr := p.dialer.dial(p.brokers, p.topic)
		if dialErr != nil {
			return fmt.Errorf("usage: reconnect after stale liveness check: %w", dialErr)
		}
		p.conn = conn
	}
	return nil
}

func (p *Publisher) closeLocked() {
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the process-wide connection. Safe to call once at
// process shutdown.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}
