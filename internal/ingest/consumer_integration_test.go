//go:build integration

package ingest

import (
	"context"
	"testing"
	"time"

	"audit-trail/internal/config"
	"audit-trail/pkg/testutil/containers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerRun_AgainstBroker(t *testing.T) {
	kafka := containers.NewKafkaContainer(t)
	const topic = "audit-events"
	kafka.CreateTopic(t, topic)

	h := newHarness(t, nil)
	c, err := NewConsumer(config.KafkaConfig{
		Brokers: []string{kafka.Broker},
		Topic:   topic,
		Group:   "audit-trail-it",
	}, h.proc, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	create := []byte(`{"event_id":"evt-1","source_service":"billing","entity_type":"Invoice","entity_id":"1","action_type_code":"CREATE","action_by":"FIN001"}`)
	kafka.Produce(t, topic, nil, create)
	kafka.Produce(t, topic, nil, create)
	kafka.Produce(t, topic, nil, []byte("not json"))
	kafka.Produce(t, topic, []byte("evt-2"), []byte(`{"entity_type":"Invoice","entity_id":"1","action_type_code":"UPDATE"}`))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(h.repo.Records()) == 2 }, 30*time.Second, 100*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("consumer did not stop after cancel")
	}

	recs := h.repo.Records()
	assert.Equal(t, 1, recs[0].Version)
	assert.Equal(t, 2, recs[1].Version)
	assert.Equal(t, 2, h.store.Len())
}
