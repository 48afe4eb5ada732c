package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"freight-bidding-api/internal/events"
)

// Channel is the subset of *amqp.Channel the notifier uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Notification is the message a partner-facing delivery service consumes.
type Notification struct {
	Kind       string    `json:"kind"`
	Recipients []string  `json:"recipients"`
	Reference  string    `json:"reference"`
	Message    string    `json:"message"`
	EventID    string    `json:"event_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// RabbitNotifier turns the events partners care about into notifications
// on a durable queue. Delivery itself is someone else's job.
type RabbitNotifier struct {
	conn   *amqp.Connection
	ch     Channel
	queue  string
	logger *logrus.Logger
}

// DialRabbitNotifier connects, opens a channel and declares the queue.
func DialRabbitNotifier(url, queue string, logger *logrus.Logger) (*RabbitNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	n, err := NewRabbitNotifier(ch, queue, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	n.conn = conn
	return n, nil
}

func NewRabbitNotifier(ch Channel, queue string, logger *logrus.Logger) (*RabbitNotifier, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return &RabbitNotifier{ch: ch, queue: queue, logger: logger}, nil
}

// Handle is an events.Handler. Events without a partner audience are skipped.
func (n *RabbitNotifier) Handle(ctx context.Context, e events.Event) error {
	note, ok := notificationFor(e)
	if !ok {
		return nil
	}

	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = n.ch.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.Timestamp,
		Type:         string(e.Type),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"event_id":   e.ID,
		"kind":       note.Kind,
		"recipients": len(note.Recipients),
	}).Debug("notification queued")
	return nil
}

func notificationFor(e events.Event) (Notification, bool) {
	note := Notification{
		Kind:      string(e.Type),
		EventID:   e.ID,
		CreatedAt: e.Timestamp,
	}

	switch data := e.Data.(type) {
	case events.QuoteMatchedData:
		if len(data.PartnerIDs) == 0 {
			return Notification{}, false
		}
		note.Recipients = data.PartnerIDs
		note.Reference = data.QuoteID
		note.Message = fmt.Sprintf("New lead %s matches your capabilities", data.QuoteNumber)
	case events.OfferSelectedData:
		note.Recipients = []string{data.PartnerID}
		note.Reference = data.OfferID
		note.Message = fmt.Sprintf("Your offer was selected; lead cost %s debited", data.LeadCost.StringFixed(2))
	case events.WalletData:
		if e.Type != events.WalletLowBalance {
			return Notification{}, false
		}
		note.Recipients = []string{data.PartnerID}
		note.Reference = data.WalletID
		note.Message = fmt.Sprintf("Wallet balance %s is at or below your alert threshold %s",
			data.Balance.StringFixed(2), data.Threshold.StringFixed(2))
	default:
		return Notification{}, false
	}
	return note, true
}

func (n *RabbitNotifier) Close() error {
	if err := n.ch.Close(); err != nil {
		return err
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
