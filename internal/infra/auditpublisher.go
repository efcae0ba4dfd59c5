package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditPublisher polls unpublished audit_log rows and publishes them to
// Kafka. The table doubles as the outbox: a row is written in the same
// store as the action it records, and published_at tracks delivery, so a
// crash between insert and publish only delays the event.
type AuditPublisher struct {
	pool      *pgxpool.Pool
	audit     repository.AuditRepository
	producer  *EventProducer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewAuditPublisher creates a new audit publisher.
func NewAuditPublisher(pool *pgxpool.Pool, audit repository.AuditRepository, producer *EventProducer, logger *slog.Logger) *AuditPublisher {
	return &AuditPublisher{
		pool:      pool,
		audit:     audit,
		producer:  producer,
		logger:    logger,
		interval:  time.Second,
		batchSize: 100,
	}
}

// Start begins polling in a goroutine. Stops when ctx is cancelled.
func (p *AuditPublisher) Start(ctx context.Context) {
	p.logger.Info("audit publisher started", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("audit publisher stopped")
				return
			case <-ticker.C:
				if err := p.poll(ctx); err != nil {
					p.logger.Error("audit publish poll error", "error", err)
				}
			}
		}
	}()
}

func (p *AuditPublisher) poll(ctx context.Context) error {
	entries, err := p.audit.FetchUnpublished(ctx, p.pool, p.batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	published := make([]int64, 0, len(entries))
	for _, e := range entries {
		msg, err := json.Marshal(e)
		if err != nil {
			p.logger.Error("audit entry marshal failed", "id", e.ID, "error", err)
			continue
		}

		key := []byte(e.Action)
		if e.ActorID != nil {
			key = []byte(e.ActorID.String())
		}

		if err := p.producer.Publish(ctx, topicFor(e), key, msg); err != nil {
			p.logger.Error("kafka publish failed", "id", e.ID, "error", err)
			continue
		}
		published = append(published, e.ID)
	}

	if len(published) == 0 {
		return nil
	}
	if err := p.audit.MarkPublished(ctx, p.pool, published); err != nil {
		return err
	}

	p.logger.Debug("audit publish complete", "published", len(published))
	return nil
}

func topicFor(e domain.AuditEntry) string {
	return "school-erp.audit." + e.Action
}
