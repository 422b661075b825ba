//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaContainer wraps a Redpanda broker speaking the Kafka protocol.
type KafkaContainer struct {
	Container testcontainers.Container
	Broker    string
	Client    *kgo.Client
}

func NewKafkaContainer(t *testing.T) *KafkaContainer {
	t.Helper()

	ctx := context.Background()

	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.2.4")
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		t.Fatalf("failed to get kafka seed broker: %v", err)
	}

	client, err := kgo.NewClient(kgo.SeedBrokers(broker))
	if err != nil {
		t.Fatalf("failed to create kafka client: %v", err)
	}
	t.Cleanup(client.Close)

	return &KafkaContainer{Container: container, Broker: broker, Client: client}
}

// CreateTopic creates a single-partition topic.
func (k *KafkaContainer) CreateTopic(t *testing.T, topic string) {
	t.Helper()

	resp, err := kadm.NewClient(k.Client).CreateTopic(context.Background(), 1, 1, nil, topic)
	if err != nil {
		t.Fatalf("failed to create topic %s: %v", topic, err)
	}
	if resp.Err != nil {
		t.Fatalf("failed to create topic %s: %v", topic, resp.Err)
	}
}

// Produce writes one record synchronously.
func (k *KafkaContainer) Produce(t *testing.T, topic string, key, value []byte) {
	t.Helper()

	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := k.Client.ProduceSync(context.Background(), rec).FirstErr(); err != nil {
		t.Fatalf("failed to produce to %s: %v", topic, err)
	}
}
