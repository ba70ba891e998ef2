package events

import (
	"context"
	"errors"
)

// MultiPublisher publishes every event to each of its publishers in order.
// A failing publisher does not stop delivery to the rest. An empty
// MultiPublisher discards everything.
type MultiPublisher []Publisher

// Discard is the publisher used when no event sink is configured.
var Discard Publisher = MultiPublisher(nil)

func (m MultiPublisher) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
