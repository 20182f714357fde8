package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/cfg"
	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// messageWriter — часть kafka.Writer, нужная продюсеру.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer публикует события о просмотрах и новых наборах артефактов.
// Просмотры уходят асинхронно пачками. Объявление о наборе пишется синхронно:
// WriteArtifactPublished возвращает nil только после подтверждения брокера.
type Producer struct {
	events    messageWriter
	announcer messageWriter
	logger    logger.Logger
	cfg       *cfg.KafkaCfg
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	events := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warnf("Kafka producer error: %s", err.Error())
			}
		},
	}

	announcer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    1,
		WriteTimeout: 10 * time.Second,
		MaxAttempts:  3,
	}

	return &Producer{
		events:    events,
		announcer: announcer,
		logger:    logger,
		cfg:       cfg,
	}
}

// WriteInteraction публикует просмотр; ключ — пользователь, чтобы события одного пользователя шли по порядку.
func (p *Producer) WriteInteraction(ctx context.Context, event *usecase.InteractionEvent) error {
	value, err := interactionPayload(event)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return p.events.WriteMessages(ctx, kafka.Message{
		Topic: p.cfg.InteractionsTopic,
		Key:   []byte(strconv.FormatInt(event.UserID, 10)),
		Value: value,
	})
}

func (p *Producer) WriteArtifactPublished(ctx context.Context, event *usecase.ArtifactPublishedEvent) error {
	value, err := artifactPayload(event)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.announcer.WriteMessages(ctx, kafka.Message{
		Topic: p.cfg.ArtifactsTopic,
		Key:   []byte(event.Version),
		Value: value,
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("artifact set %s not announced: %w", event.Version, err))
	}

	return nil
}

// EnsureTopics создаёт топики, если их ещё нет.
func (p *Producer) EnsureTopics(timeout time.Duration) error {
	for _, topic := range []string{p.cfg.InteractionsTopic, p.cfg.ArtifactsTopic} {
		if err := p.ensureTopic(topic, timeout); err != nil {
			return err
		}
	}

	return nil
}

func (p *Producer) ensureTopic(topic string, timeout time.Duration) error {
	conn, err := kafka.Dial(p.cfg.NetworkMode, p.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     p.cfg.Partitions,
			ReplicationFactor: p.cfg.ReplicationFactor,
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to create topic %s: %w", topic, err))
		}
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("timeout: %v, topic: %s", timeout, topic))
	}
}

func (p *Producer) Close() error {
	return errors.Join(p.events.Close(), p.announcer.Close())
}

func interactionPayload(event *usecase.InteractionEvent) ([]byte, error) {
	return marshalEvent("interaction.recorded", map[string]any{
		"user_id":    strconv.FormatInt(event.UserID, 10),
		"item_id":    strconv.FormatInt(event.ItemID, 10),
		"created_at": event.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func artifactPayload(event *usecase.ArtifactPublishedEvent) ([]byte, error) {
	keys := make([]any, len(event.Keys))
	for i, k := range event.Keys {
		keys[i] = k
	}

	return marshalEvent("artifacts.published", map[string]any{
		"version":       event.Version,
		"model_version": event.ModelVersion,
		"items":         event.Items,
		"dimension":     event.Dimension,
		"keys":          keys,
	})
}

// marshalEvent оборачивает тело события в конверт с идентификатором и временем и сериализует в protobuf.
func marshalEvent(kind string, body map[string]any) ([]byte, error) {
	envelope, err := structpb.NewStruct(map[string]any{
		"event_id":        uuid.NewString(),
		"event_type":      kind,
		"event_timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"payload":         body,
	})
	if err != nil {
		return nil, err
	}

	return proto.Marshal(envelope)
}
