package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/recipe-app/apiserver/types"
	"github.com/sirupsen/logrus"
)

// Publisher sends a payload to a named channel. *mq.MQ satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// EventPublisher emits recipe lifecycle events. A nil publisher disables
// emission; failures are logged and never fail the originating request.
type EventPublisher struct {
	publisher Publisher
	log       logrus.FieldLogger
}

func NewEventPublisher(publisher Publisher, log logrus.FieldLogger) *EventPublisher {
	return &EventPublisher{publisher: publisher, log: log}
}

// RecipeEvent publishes kind for recipe on the recipe events channel.
func (e *EventPublisher) RecipeEvent(ctx context.Context, kind types.RecipeEventKind, recipe types.Recipe) {
	if e == nil || e.publisher == nil {
		return
	}

	event := types.RecipeEvent{
		Kind:       kind,
		RecipeID:   recipe.ID,
		UserID:     recipe.UserID,
		OccurredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		e.log.WithError(err).Error("marshal recipe event")
		return
	}

	attrs := map[string]string{"kind": string(kind)}
	if _, err := e.publisher.Publish(ctx, types.ChannelRecipeEvents, data, attrs); err != nil {
		e.log.WithError(err).
			WithFields(logrus.Fields{"kind": kind, "recipe_id": recipe.ID}).
			Warn("publish recipe event failed")
	}
}
