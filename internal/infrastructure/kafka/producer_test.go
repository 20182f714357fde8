package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/cfg"
	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestInteractionPayload(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data, err := interactionPayload(&usecase.InteractionEvent{UserID: 7, ItemID: 9007199254740993, CreatedAt: at})
	require.NoError(t, err)

	var got structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &got))

	m := got.AsMap()
	assert.Equal(t, "interaction.recorded", m["event_type"])
	assert.NotEmpty(t, m["event_id"])

	payload := m["payload"].(map[string]any)
	assert.Equal(t, "7", payload["user_id"])
	// int64 передаётся строкой без потери точности
	assert.Equal(t, "9007199254740993", payload["item_id"])
	assert.Equal(t, "2026-03-01T12:00:00Z", payload["created_at"])
}

func TestArtifactPayload(t *testing.T) {
	data, err := artifactPayload(&usecase.ArtifactPublishedEvent{
		Version: "20260301-ab12", ModelVersion: "clip-v1", Items: 3, Dimension: 4,
		Keys: []string{"artifacts/20260301-ab12/index_mapping.json"},
	})
	require.NoError(t, err)

	var got structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &got))

	payload := got.AsMap()["payload"].(map[string]any)
	assert.Equal(t, "clip-v1", payload["model_version"])
	assert.Equal(t, float64(3), payload["items"])
	assert.Equal(t, []any{"artifacts/20260301-ab12/index_mapping.json"}, payload["keys"])
}

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func testKafkaCfg() *cfg.KafkaCfg {
	return &cfg.KafkaCfg{
		Enabled:           true,
		InteractionsTopic: "interactions",
		ArtifactsTopic:    "artifacts",
		Brokers:           []string{"localhost:9092"},
	}
}

func TestNewProducer_AnnouncesSynchronously(t *testing.T) {
	p := NewProducer(logger.NewNop(), testKafkaCfg())
	defer p.Close()

	events, ok := p.events.(*kafka.Writer)
	require.True(t, ok)
	assert.True(t, events.Async)

	announcer, ok := p.announcer.(*kafka.Writer)
	require.True(t, ok)
	assert.False(t, announcer.Async, "announce must wait for the broker")
	assert.Equal(t, kafka.RequireAll, announcer.RequiredAcks)
}

func TestProducer_WriteArtifactPublished(t *testing.T) {
	ev := &usecase.ArtifactPublishedEvent{Version: "v7", ModelVersion: "clip-v1", Items: 2, Dimension: 4}

	t.Run("goes through the synchronous writer", func(t *testing.T) {
		events, announcer := &recordingWriter{}, &recordingWriter{}
		p := &Producer{events: events, announcer: announcer, logger: logger.NewNop(), cfg: testKafkaCfg()}

		require.NoError(t, p.WriteArtifactPublished(context.Background(), ev))
		assert.Empty(t, events.msgs)
		require.Len(t, announcer.msgs, 1)
		assert.Equal(t, "artifacts", announcer.msgs[0].Topic)
		assert.Equal(t, []byte("v7"), announcer.msgs[0].Key)

		require.NoError(t, p.Close())
		assert.True(t, events.closed)
		assert.True(t, announcer.closed)
	})

	t.Run("broker failure is reported", func(t *testing.T) {
		announcer := &recordingWriter{err: errors.New("leader not available")}
		p := &Producer{events: &recordingWriter{}, announcer: announcer, logger: logger.NewNop(), cfg: testKafkaCfg()}

		err := p.WriteArtifactPublished(context.Background(), ev)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "v7 not announced")
		assert.Contains(t, err.Error(), "leader not available")
	})

	t.Run("interactions stay on the batched writer", func(t *testing.T) {
		events, announcer := &recordingWriter{}, &recordingWriter{}
		p := &Producer{events: events, announcer: announcer, logger: logger.NewNop(), cfg: testKafkaCfg()}

		require.NoError(t, p.WriteInteraction(context.Background(), &usecase.InteractionEvent{UserID: 1, ItemID: 2}))
		assert.Len(t, events.msgs, 1)
		assert.Empty(t, announcer.msgs)
	})
}
