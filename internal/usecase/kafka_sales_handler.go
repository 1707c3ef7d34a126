package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"StoreSales/internal/domain/models"
	domrepo "StoreSales/internal/domain/repository"
	xhttp "StoreSales/pkg/http"
	pkgkafka "StoreSales/pkg/kafka"
	"StoreSales/pkg/util"
)

// KafkaSalesHandler stores daily sales rows consumed from Kafka. A message
// holds one row object or an array of rows.
type KafkaSalesHandler struct {
	topic   string
	store   domrepo.SalesStore
	metrics domrepo.Metrics
}

func NewKafkaSalesHandler(topic string, store domrepo.SalesStore, metrics domrepo.Metrics) *KafkaSalesHandler {
	return &KafkaSalesHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaSalesHandler) Topic() string { return h.topic }

type salesMessage struct {
	Date        string  `json:"date" validate:"required"`
	StoreNbr    int     `json:"store_nbr" validate:"gte=1"`
	Family      string  `json:"family" validate:"required,max=64"`
	Sales       float64 `json:"sales" validate:"gte=0"`
	OnPromotion int     `json:"onpromotion" validate:"gte=0"`
}

// Handle decodes, validates and stores the rows. Malformed messages are
// permanent failures; storage errors are retried by the consumer.
func (h *KafkaSalesHandler) Handle(ctx context.Context, b []byte) error {
	rows, err := decodeSales(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: %v", pkgkafka.ErrPermanent, err)
	}
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	err = h.store.StoreDaily(ctx, rows)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordIngested("kafka", len(rows))
	return nil
}

func decodeSales(b []byte) ([]models.DailySales, error) {
	var msgs []salesMessage
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return nil, err
		}
	} else {
		var m salesMessage
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, err
		}
		msgs = []salesMessage{m}
	}

	rows := make([]models.DailySales, 0, len(msgs))
	for i, m := range msgs {
		if err := xhttp.ValidateStruct(m); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		d, ok := util.ParseDate(m.Date)
		if !ok {
			return nil, fmt.Errorf("row %d: invalid date %q", i, m.Date)
		}
		rows = append(rows, models.DailySales{
			Date:        d,
			StoreNbr:    m.StoreNbr,
			Family:      NormalizeFamily(m.Family),
			Sales:       m.Sales,
			OnPromotion: m.OnPromotion,
		})
	}
	return rows, nil
}

// NormalizeFamily trims and upper-cases a product family name.
func NormalizeFamily(f string) string {
	return strings.ToUpper(strings.TrimSpace(f))
}

var _ pkgkafka.MessageHandler = (*KafkaSalesHandler)(nil)
