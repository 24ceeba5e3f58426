package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/storelift/api/internal/platform/textutil"
)

// Event names emitted by the catalog services.
const (
	EventZoneReplaced            = "shipping.zone.replaced"
	EventCombinationsRegenerated = "catalog.combinations.regenerated"
	EventDiscountRetyped         = "discount.retyped"
)

// Event is the envelope published for every domain event. Attributes are
// attached as Pub/Sub message attributes so subscribers can filter without
// decoding the payload.
type Event struct {
	Name       string            `json:"name"`
	SubjectID  string            `json:"subjectId"`
	OccurredAt time.Time         `json:"occurredAt"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	Attributes map[string]string `json:"-"`
}

// Publisher emits domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) (string, error)
}

// PubSubPublisher publishes domain events to a Pub/Sub topic.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a Pub/Sub backed event publisher.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher: topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// Publish enqueues the event on the configured topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, event Event) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub publisher: not initialised")
	}
	if strings.TrimSpace(event.Name) == "" {
		return "", errors.New("pubsub publisher: event name is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event %s: %w", event.Name, err)
	}

	attrs := textutil.NormalizeStringMap(event.Attributes)
	if attrs == nil {
		attrs = make(map[string]string, 2)
	}
	setAttr(attrs, "event", event.Name)
	setAttr(attrs, "subjectId", event.SubjectID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish event %s: %w", event.Name, err)
	}
	return id, nil
}

// NopPublisher discards events. Used when publishing is disabled.
type NopPublisher struct{}

// Publish implements Publisher and drops the event.
func (NopPublisher) Publish(context.Context, Event) (string, error) { return "", nil }

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
