// Package events publishes plan summaries to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/k8ika0s/build-sequencer/internal/plan"
)

// PlanEvent summarizes one plan.
type PlanEvent struct {
	RunID             string          `json:"run_id"`
	Branch            string          `json:"branch,omitempty"`
	CommitSha         string          `json:"commit_sha,omitempty"`
	Waves             int             `json:"waves"`
	Build             int             `json:"build"`
	Cached            int             `json:"cached"`
	Dirty             []string        `json:"dirty,omitempty"`
	RetrievePrebuilts map[string]bool `json:"retrieve_prebuilts,omitempty"`
	CreatedAt         int64           `json:"created_at"`
}

// NewPlanEvent summarizes a snapshot.
func NewPlanEvent(snap plan.Snapshot, branch, commitSha string) PlanEvent {
	ev := PlanEvent{
		RunID:     snap.RunID,
		Branch:    branch,
		CommitSha: commitSha,
		Waves:     len(snap.Waves),
		Build:     snap.Build,
		Cached:    snap.Cached,
	}
	for _, n := range snap.Nodes {
		if n.Action == plan.ActionBuild {
			ev.Dirty = append(ev.Dirty, n.ID)
		}
	}
	for dir, r := range snap.RetrievePrebuilts {
		if r == nil {
			continue
		}
		if ev.RetrievePrebuilts == nil {
			ev.RetrievePrebuilts = make(map[string]bool)
		}
		ev.RetrievePrebuilts[dir] = *r
	}
	return ev
}

// Publisher sends plan events.
type Publisher interface {
	Publish(ctx context.Context, ev PlanEvent) error
}

// NullPublisher drops events.
type NullPublisher struct{}

func (NullPublisher) Publish(context.Context, PlanEvent) error { return nil }

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes plan events to a single topic.
type KafkaPublisher struct {
	brokers string
	topic   string
	// NewWriter overrides the Kafka writer, for tests.
	NewWriter func() MessageWriter
}

// NewKafkaPublisher constructs a publisher for a comma separated broker list.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	if topic == "" {
		topic = "sequencer.plans"
	}
	return &KafkaPublisher{brokers: brokers, topic: topic}
}

func (k *KafkaPublisher) ensure() error {
	if k.brokers == "" && k.NewWriter == nil {
		return errors.New("kafka brokers not configured")
	}
	return nil
}

func (k *KafkaPublisher) writer() MessageWriter {
	if k.NewWriter != nil {
		return k.NewWriter()
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(k.brokers, ",")...),
		Topic:        k.topic,
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// Publish writes ev keyed by run id.
func (k *KafkaPublisher) Publish(ctx context.Context, ev PlanEvent) error {
	if err := k.ensure(); err != nil {
		return err
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().Unix()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	w := k.writer()
	defer w.Close()
	return w.WriteMessages(ctx, kafka.Message{Key: []byte(ev.RunID), Value: data})
}
