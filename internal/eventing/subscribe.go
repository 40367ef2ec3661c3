package eventing

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// On subscribes a typed handler for events of type T. Handler errors are
// logged with the consumer name and returned to the publisher.
func On[T any](bus EventBus, consumerName string, logger *zap.Logger, handler func(ctx context.Context, event T) error) {
	if bus == nil || handler == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bus.Subscribe(EventTypeOf[T](), func(ctx context.Context, event any) error {
		typed, ok := event.(T)
		if !ok {
			if ptr, isPtr := event.(*T); isPtr && ptr != nil {
				typed = *ptr
			} else {
				return fmt.Errorf("%w: %s got %T", ErrInvalidEventType, consumerName, event)
			}
		}
		if err := handler(ctx, typed); err != nil {
			env, _ := EnvelopeFromContext(ctx)
			logger.Warn("event handler failed",
				zap.String("consumer", consumerName),
				zap.String("event_type", env.EventType),
				zap.String("event_id", env.EventID),
				zap.Error(err),
			)
			return fmt.Errorf("%s: %w", consumerName, err)
		}
		return nil
	})
}
