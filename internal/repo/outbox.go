package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

var errNoWriter = errors.New("kafka writer not configured")

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events, oldest first.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("created_at").
		Order("id").
		Limit(limit).
		Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends to Kafka, keyed by aggregate so events of one wallet
// stay ordered within a partition.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	if r.writer == nil {
		return errNoWriter
	}
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%s:%d", evt.Aggregate, evt.AggregateID)),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.EventType)},
			{Key: "event_id", Value: []byte(fmt.Sprintf("%d", evt.ID))},
		},
	}
	return r.writer.WriteMessages(ctx, msg)
}
