// Package relay publishes committed outbox events to Kafka.
package relay

import (
	"context"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/metrics"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"go.uber.org/zap"
)

// Outbox is the part of the store the relay drives.
type Outbox interface {
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
	MarkOutboxProcessed(ctx context.Context, id uint64) error
}

type Relay struct {
	outbox   Outbox
	interval time.Duration
	batch    int
	log      *zap.SugaredLogger
}

func New(outbox Outbox, interval time.Duration, batch int, log *zap.SugaredLogger) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Relay{outbox: outbox, interval: interval, batch: batch, log: log}
}

// Run flushes on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Infow("outbox relay started", "interval", r.interval, "batch", r.batch)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil {
				r.log.Errorf("poll outbox: %v", err)
			}
		}
	}
}

// Flush publishes one batch and returns how many events were delivered. An
// event that fails to publish stays unprocessed and is retried next round,
// so consumers see each event at least once.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.outbox.PollOutbox(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, evt := range events {
		if err := r.outbox.PublishEvent(ctx, evt); err != nil {
			metrics.OutboxPublished.WithLabelValues("error").Inc()
			r.log.Errorf("publish id=%d: %v", evt.ID, err)
			continue
		}
		if err := r.outbox.MarkOutboxProcessed(ctx, evt.ID); err != nil {
			r.log.Errorf("mark processed id=%d: %v", evt.ID, err)
			continue
		}
		metrics.OutboxPublished.WithLabelValues("ok").Inc()
		sent++
	}
	if sent > 0 {
		r.log.Debugf("relayed %d events", sent)
	}
	return sent, nil
}
