package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tnqbao/gau-share-service/infra"
	"github.com/tnqbao/gau-share-service/infra/produce"
	"github.com/tnqbao/gau-share-service/repository"
)

type blobReferences interface {
	BlobNamesIn(ctx context.Context, names []string) (map[string]struct{}, error)
}

type BlobConsumer struct {
	channel    *amqp.Channel
	blobs      infra.BlobStore
	references blobReferences
	logger     *infra.LoggerClient

	maxRetries int
	backoff    func(attempt int) time.Duration
}

func NewBlobConsumer(channel *amqp.Channel, infra *infra.Infra, repo *repository.Repository) *BlobConsumer {
	return &BlobConsumer{
		channel:    channel,
		blobs:      infra.Blob,
		references: repo.FileEntryRepo,
		logger:     infra.Logger,
		maxRetries: 3,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 2 * time.Second
		},
	}
}

func (c *BlobConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.BlobDeleteQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register blob delete consumer: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Blob Consumer] Started listening for delete jobs on queue: %s", produce.BlobDeleteQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.InfoWithContextf(ctx, "[Blob Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.WarningWithContextf(ctx, "[Blob Consumer] Channel closed")
					return
				}
				c.handleBlobDelete(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *BlobConsumer) handleBlobDelete(ctx context.Context, msg amqp.Delivery) {
	var payload produce.BlobDeleteMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Blob Consumer] Failed to unmarshal message: %v", err)
		_ = msg.Nack(false, false)
		return
	}
	if payload.BlobName == "" {
		c.logger.WarningWithContextf(ctx, "[Blob Consumer] Message without blob name dropped")
		_ = msg.Nack(false, false)
		return
	}

	var err error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		err = c.executeDelete(ctx, payload)
		if err == nil {
			c.logger.InfoWithContextf(ctx, "[Blob Consumer] Removed blob %s (%s)", payload.BlobName, payload.Reason)
			_ = msg.Ack(false)
			return
		}
		if errors.Is(err, infra.ErrInvalidBlobName) {
			c.logger.ErrorWithContextf(ctx, err, "[Blob Consumer] Refusing to delete %q", payload.BlobName)
			_ = msg.Nack(false, false)
			return
		}

		c.logger.ErrorWithContextf(ctx, err, "[Blob Consumer] Attempt %d/%d failed: %v", attempt, c.maxRetries, err)

		if attempt < c.maxRetries {
			time.Sleep(c.backoff(attempt))
		}
	}

	// After max retries, reject and requeue
	c.logger.ErrorWithContextf(ctx, err, "[Blob Consumer] Failed after %d attempts, requeueing message", c.maxRetries)
	_ = msg.Nack(false, true)
}

// executeDelete removes the blob unless an entry points at it again. A blob
// that is already gone counts as deleted.
func (c *BlobConsumer) executeDelete(ctx context.Context, payload produce.BlobDeleteMessage) error {
	referenced, err := c.references.BlobNamesIn(ctx, []string{payload.BlobName})
	if err != nil {
		return fmt.Errorf("failed to check references of %s: %w", payload.BlobName, err)
	}
	if _, ok := referenced[payload.BlobName]; ok {
		c.logger.WarningWithContextf(ctx, "[Blob Consumer] Blob %s is referenced by a live entry, keeping it", payload.BlobName)
		return nil
	}

	exists, err := c.blobs.Exists(ctx, payload.BlobName)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", payload.BlobName, err)
	}
	if !exists {
		c.logger.DebugWithContextf(ctx, "[Blob Consumer] Blob %s already gone", payload.BlobName)
		return nil
	}

	return c.blobs.Delete(ctx, payload.BlobName)
}
