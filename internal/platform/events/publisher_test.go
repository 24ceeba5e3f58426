package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPubSubPublisherPublishesEvent(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "catalog-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}

	payload, _ := json.Marshal(map[string]any{"zoneId": "zone-1", "ruleCount": 3})
	event := Event{
		Name:       EventZoneReplaced,
		SubjectID:  "zone-1",
		OccurredAt: time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC),
		Payload:    payload,
		Attributes: map[string]string{" zoneName ": " Domestic ", "": "dropped"},
	}

	if _, err := publisher.Publish(ctx, event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var decoded Event
	if err := json.Unmarshal(messages[0].Data, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.Name != EventZoneReplaced || decoded.SubjectID != "zone-1" {
		t.Fatalf("unexpected payload %#v", decoded)
	}
	if attr := messages[0].Attributes["event"]; attr != EventZoneReplaced {
		t.Fatalf("expected event attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["subjectId"]; attr != "zone-1" {
		t.Fatalf("expected subject attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["zoneName"]; attr != "Domestic" {
		t.Fatalf("expected normalised zoneName attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes[""]; ok {
		t.Fatal("expected empty attribute key to be dropped")
	}
}

func TestPubSubPublisherRequiresName(t *testing.T) {
	publisher := &PubSubPublisher{topic: &pubsub.Topic{}, marshal: json.Marshal}
	if _, err := publisher.Publish(context.Background(), Event{}); err == nil {
		t.Fatal("expected error for missing event name")
	}
}
