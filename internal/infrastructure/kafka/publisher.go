package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/tu-usuario/pos-ledger/internal/application/ledger"
	"github.com/tu-usuario/pos-ledger/pkg/logger"
)

var _ ledger.MovementEventPublisher = (*Publisher)(nil)

// TopicMovementRecorded topic de eventos de movimiento confirmado.
const TopicMovementRecorded = "stock-movement-recorded"

// Publisher publica eventos de movimiento en Kafka. Es un paso best-effort:
// el caller loguea el error y sigue; nunca revierte la transacción ya firme.
type Publisher struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewPublisher construye el publisher contra los brokers indicados.
func NewPublisher(brokers []string, log *logger.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("crear productor kafka: %w", err)
	}
	log.Info().Strs("brokers", brokers).Msg("publisher de Kafka inicializado")
	return &Publisher{producer: producer, log: log}, nil
}

// PublishMovementRecorded publica el evento en JSON, con la posición como key
// para preservar el orden por posición dentro de la partición.
func (p *Publisher) PublishMovementRecorded(_ context.Context, event ledger.MovementRecordedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializar evento: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: TopicMovementRecorded,
		Key:   sarama.StringEncoder(event.PositionID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte("stock.movement.recorded")},
			{Key: []byte("movement_id"), Value: []byte(event.MovementID)},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publicar evento: %w", err)
	}
	p.log.Debug().
		Str("movement_id", event.MovementID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("evento de movimiento publicado")
	return nil
}

// Close cierra el productor.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
