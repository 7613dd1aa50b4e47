// Package publish streams step snapshots of a running twin to a gocloud.dev
// pubsub topic, so downstream consumers can follow a simulation as it runs.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub" // registers the mem:// scheme

	"github.com/twin-sim/twin-sim/sim"
)

var tracer = otel.Tracer("github.com/twin-sim/twin-sim/sim/publish")

// Metadata keys set on every published message.
const (
	MetadataStep  = "step"
	MetadataRun   = "run"
	MetadataLabel = "label"
)

// Message is the JSON body of one published step.
type Message struct {
	RunID    uuid.UUID        `json:"run_id"`
	Label    string           `json:"label"`
	Snapshot sim.StepSnapshot `json:"snapshot"`
}

// SnapshotPublisher is a sim.StepObserver that sends every snapshot to a topic.
type SnapshotPublisher struct {
	topic *pubsub.Topic
	runID uuid.UUID
	label string
}

// NewSnapshotPublisher returns a publisher that writes to topic. The caller
// keeps ownership of topic.
func NewSnapshotPublisher(topic *pubsub.Topic, runID uuid.UUID, label string) *SnapshotPublisher {
	return &SnapshotPublisher{topic: topic, runID: runID, label: label}
}

// OpenTopic opens the topic at url, for example "mem://twin-steps" or any
// other scheme linked into the binary.
func OpenTopic(ctx context.Context, url string) (*pubsub.Topic, error) {
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open topic %q: %w", url, err)
	}
	return topic, nil
}

// ObserveStep publishes snap. Metadata carries the step number, run id and
// label so brokers can partition by run.
func (p *SnapshotPublisher) ObserveStep(ctx context.Context, snap sim.StepSnapshot) error {
	ctx, span := tracer.Start(ctx, "SnapshotPublisher.ObserveStep", trace.WithAttributes(
		attribute.String("twin.run", p.runID.String()),
		attribute.Int("twin.step", snap.Step),
	))
	defer span.End()

	body, err := json.Marshal(Message{RunID: p.runID, Label: p.label, Snapshot: snap})
	if err != nil {
		err = fmt.Errorf("encode step %d: %w", snap.Step, err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	msg := &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			MetadataStep:  strconv.Itoa(snap.Step),
			MetadataRun:   p.runID.String(),
			MetadataLabel: p.label,
		},
	}
	if err := p.topic.Send(ctx, msg); err != nil {
		err = fmt.Errorf("send step %d: %w", snap.Step, err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	logrus.Debugf("[step %05d] published snapshot of run %s (%s)", snap.Step, p.runID, p.label)
	return nil
}

// Decode parses a message body produced by ObserveStep.
func Decode(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return m, nil
}
