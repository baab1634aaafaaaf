package notify

import (
	"context"

	"go.uber.org/zap"
)

type emitter struct {
	publisher Publisher
	logger    *zap.Logger
}

func NewEmitter(publisher Publisher, logger *zap.Logger) Emitter {
	return &emitter{publisher: publisher, logger: logger.Named("notify")}
}

func (e *emitter) Emit(ctx context.Context, name string, payload interface{}, topics ...string) {
	for _, topic := range topics {
		ev, err := NewEvent(topic, name, payload)
		if err != nil {
			e.logger.Error("Failed to encode event", zap.String("event", name), zap.Error(err))
			return
		}
		if err := e.publisher.Publish(ctx, ev); err != nil {
			e.logger.Warn("Failed to publish event",
				zap.String("event", name),
				zap.String("topic", topic),
				zap.Error(err))
		}
	}
}
