package event

import (
	"context"

	"github.com/erp/setoff/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher writes domain events to the outbox table. Bound to a
// transaction it makes the events durable together with the aggregate
// change that raised them.
type OutboxPublisher struct {
	serializer *EventSerializer
	repo       shared.OutboxRepository
}

// NewOutboxPublisher creates a publisher that saves through repo
func NewOutboxPublisher(serializer *EventSerializer, repo shared.OutboxRepository) *OutboxPublisher {
	return &OutboxPublisher{serializer: serializer, repo: repo}
}

// NewTxOutboxPublisher creates a publisher writing inside tx
func NewTxOutboxPublisher(serializer *EventSerializer, tx *gorm.DB) *OutboxPublisher {
	return NewOutboxPublisher(serializer, NewGormOutboxRepository(tx))
}

// Publish serializes events into pending outbox entries
func (p *OutboxPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return err
		}
		entries = append(entries, shared.NewOutboxEntry(event, payload))
	}
	return p.repo.Save(ctx, entries...)
}

var _ shared.EventPublisher = (*OutboxPublisher)(nil)
