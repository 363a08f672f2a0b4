package services

import (
	"context"
	"errors"

	"fooddelivery/internal/models"
)

// EventPublisher delivers order lifecycle events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
}

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
