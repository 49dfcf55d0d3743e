package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/recipe-app/apiserver/internal/mq"
	"github.com/recipe-app/apiserver/types"
	"github.com/sirupsen/logrus"
)

// ObjectStore is the object storage collaborator. *storage.Storage
// satisfies it.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ImageJanitor removes image objects no recipe references any more. With
// a publisher the removal is queued for the worker, otherwise it happens
// inline.
type ImageJanitor struct {
	store     ObjectStore
	publisher Publisher
	log       logrus.FieldLogger
}

func NewImageJanitor(store ObjectStore, publisher Publisher, log logrus.FieldLogger) *ImageJanitor {
	return &ImageJanitor{store: store, publisher: publisher, log: log}
}

// Discard schedules or performs removal of key. Empty keys are ignored.
func (j *ImageJanitor) Discard(ctx context.Context, recipeID int, key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	entry := j.log.WithFields(logrus.Fields{"recipe_id": recipeID, "key": key})

	if j.publisher != nil {
		data, err := json.Marshal(types.ImageDiscarded{
			Key:        key,
			RecipeID:   recipeID,
			OccurredAt: time.Now().UTC(),
		})
		if err == nil {
			if _, err = j.publisher.Publish(ctx, types.ChannelImageDiscarded, data, nil); err == nil {
				return
			}
		}
		entry.WithError(err).Warn("queue image removal failed, removing inline")
	}

	if err := j.store.Delete(ctx, key); err != nil {
		entry.WithError(err).Error("remove image object")
	}
}

// HandleMessage is the worker-side consumer for discarded images.
func (j *ImageJanitor) HandleMessage(ctx context.Context, msg mq.Message) error {
	var event types.ImageDiscarded
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// A malformed payload will never succeed; drop it.
		j.log.WithError(err).WithField("message_id", msg.ID).Error("decode image discarded event")
		return nil
	}
	if strings.TrimSpace(event.Key) == "" {
		return nil
	}
	if err := j.store.Delete(ctx, event.Key); err != nil {
		return fmt.Errorf("remove %s: %w", event.Key, err)
	}
	j.log.WithFields(logrus.Fields{"recipe_id": event.RecipeID, "key": event.Key}).Info("image object removed")
	return nil
}
