package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ShareExchange = "share.exchange"

	// BlobDeleteQueue carries stored blob names whose metadata is gone
	BlobDeleteQueue      = "blob.delete"
	BlobDeleteRoutingKey = "blob.delete"
)

const (
	BlobDeleteReasonExpired = "expired"
	BlobDeleteReasonOrphan  = "orphan"
)

// BlobDeleteMessage asks the blob worker to remove one stored blob
type BlobDeleteMessage struct {
	BlobName    string `json:"blob_name"`
	FileEntryID string `json:"file_entry_id,omitempty"`
	Reason      string `json:"reason"`
	Timestamp   int64  `json:"timestamp"`
}

type BlobService struct {
	channel *amqp.Channel
}

func InitBlobService(channel *amqp.Channel) *BlobService {
	return &BlobService{
		channel: channel,
	}
}

// DeclareTopology declares the exchange and queues shared by the publisher and the worker.
func DeclareTopology(channel *amqp.Channel) error {
	if err := channel.ExchangeDeclare(ShareExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", ShareExchange, err)
	}

	if _, err := channel.QueueDeclare(BlobDeleteQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", BlobDeleteQueue, err)
	}

	if err := channel.QueueBind(BlobDeleteQueue, BlobDeleteRoutingKey, ShareExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", BlobDeleteQueue, err)
	}

	return nil
}

// PublishBlobDelete enqueues the removal of a stored blob.
func (s *BlobService) PublishBlobDelete(ctx context.Context, message BlobDeleteMessage) error {
	if message.Timestamp == 0 {
		message.Timestamp = time.Now().Unix()
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal blob delete message: %w", err)
	}

	err = s.channel.PublishWithContext(
		ctx,
		ShareExchange,        // exchange
		BlobDeleteRoutingKey, // routing key
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish blob delete message: %w", err)
	}

	return nil
}
