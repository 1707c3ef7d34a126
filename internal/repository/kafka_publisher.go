package repository

import (
	"context"

	"StoreSales/internal/domain/models"
	domrepo "StoreSales/internal/domain/repository"
)

type eventProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaForecastPublisher publishes forecast events keyed by series id.
type KafkaForecastPublisher struct {
	producer eventProducer
	topic    string
}

func NewKafkaForecastPublisher(producer eventProducer, topic string) *KafkaForecastPublisher {
	return &KafkaForecastPublisher{producer: producer, topic: topic}
}

func (p *KafkaForecastPublisher) PublishForecast(ctx context.Context, ev models.ForecastProduced) error {
	key := models.SeriesID{StoreNbr: ev.StoreNbr, Family: ev.Family}.String()
	return p.producer.Publish(ctx, p.topic, []byte(key), ev)
}

func (p *KafkaForecastPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.ForecastPublisher = (*KafkaForecastPublisher)(nil)
