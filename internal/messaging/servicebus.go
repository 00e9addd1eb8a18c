// Package messaging carries remote change events between terminals over
// Azure Service Bus: a terminal announces its writes, every other terminal
// reacts by re-running the same reconcile the poll timer drives.
package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/tavolo/possync/config"
)

// Entity names the record family a change event touches.
const (
	EntityOrders   = "orders"
	EntityMenu     = "menu"
	EntitySettings = "settings"
)

// ChangeEvent is the wire shape of a remote change notification.
type ChangeEvent struct {
	EventType string `json:"event_type"` // insert, update, delete
	TenantID  string `json:"tenant_id"`
	Entity    string `json:"entity"`
	TableName string `json:"table_name,omitempty"`
}

// Handler reacts to one change event. Returning an error abandons the
// message for redelivery.
type Handler func(ctx context.Context, event ChangeEvent) error

// ServiceBusClient is the push-path transport.
type ServiceBusClient interface {
	Publish(ctx context.Context, event ChangeEvent) error
	ProcessMessages(ctx context.Context, handler Handler) error
	Close() error
}

type serviceBusClient struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// NewServiceBusClient creates a new Azure Service Bus client.
func NewServiceBusClient(cfg config.AzureConfig) (ServiceBusClient, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusClient{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
	}, nil
}

// Publish announces a change to the other terminals.
func (s *serviceBusClient) Publish(ctx context.Context, event ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal change event")
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"tenant_id": event.TenantID,
			"entity":    event.Entity,
			"time":      time.Now().UTC().Format(time.RFC3339),
		},
	}

	return s.sender.SendMessage(ctx, msg, nil)
}

// ProcessMessages runs the receive loop until the context is cancelled.
// Malformed messages are completed and dropped; handler failures abandon
// the message so the bus redelivers it.
func (s *serviceBusClient) ProcessMessages(ctx context.Context, handler Handler) error {
	receiver, err := s.client.NewReceiverForQueue(s.queueName, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create Service Bus receiver")
	}
	defer func() {
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus receiver")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("Error receiving messages, retrying")
			time.Sleep(2 * time.Second)
			continue
		}

		for _, message := range messages {
			var event ChangeEvent
			if err := json.Unmarshal(message.Body, &event); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("Dropping malformed change event")
				if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
					log.Error().Err(err).Msg("(CompleteMessage) failed")
				}
				continue
			}

			if err := handler(ctx, event); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("Error processing change event")
				if err := receiver.AbandonMessage(ctx, message, nil); err != nil {
					log.Error().Err(err).Msg("(AbandonMessage) failed")
				}
				continue
			}

			if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
				log.Error().Err(err).Msg("(CompleteMessage) failed")
			}
		}
	}
}

// Close closes the Service Bus client.
func (s *serviceBusClient) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if s.client != nil {
		return s.client.Close(context.Background())
	}
	return nil
}
