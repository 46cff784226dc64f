package events

import (
	"context"
	"fmt"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// DefaultSource is the CloudEvents source attribute of published events.
const DefaultSource = "simple-media"

// CloudEventsSink posts each event as a binary-mode CloudEvent over HTTP.
type CloudEventsSink struct {
	client cloudevents.Client
	target string
	source string
}

// NewCloudEventsSink creates a sink delivering to target
func NewCloudEventsSink(target, source string) (*CloudEventsSink, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("analytics target url is required")
	}
	if source == "" {
		source = DefaultSource
	}

	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudevents client: %w", err)
	}
	return &CloudEventsSink{client: client, target: target, source: source}, nil
}

// payload is the data section of every event.
type payload struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Key  string `json:"key,omitempty"`
}

func (s *CloudEventsSink) Publish(ctx context.Context, event simplemedia.Event) error {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(s.source)
	e.SetType(string(event.Kind))
	e.SetTime(event.OccurredAt)
	if event.StorageKey != "" {
		e.SetSubject(event.StorageKey)
	}
	err := e.SetData(cloudevents.ApplicationJSON, payload{
		Type: string(event.Namespace),
		ID:   event.EntryID,
		Key:  event.StorageKey,
	})
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}

	result := s.client.Send(cloudevents.ContextWithTarget(ctx, s.target), e)
	if cloudevents.IsUndelivered(result) {
		return fmt.Errorf("deliver %s: %w", event.Kind, result)
	}
	if !cloudevents.IsACK(result) {
		return fmt.Errorf("collector rejected %s: %w", event.Kind, result)
	}
	return nil
}
