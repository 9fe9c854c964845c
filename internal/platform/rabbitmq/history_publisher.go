package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"policyqa/internal/model"
)

// HistoryMessage is the queue payload for one chat exchange. ChatHistory
// itself hides Sources from JSON, so the wire shape is explicit.
type HistoryMessage struct {
	UserID   uint              `json:"user_id"`
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Sources  []model.SourceRef `json:"sources"`
}

// ToEntry converts the payload back into a row for persistence.
func (m HistoryMessage) ToEntry() model.ChatHistory {
	entry := model.ChatHistory{
		UserID:   m.UserID,
		Question: m.Question,
		Answer:   m.Answer,
	}
	entry.SetSourceRefs(m.Sources)
	return entry
}

// HistoryPublisher hands finished chat exchanges to the persist worker.
type HistoryPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewHistoryPublisher(conn *amqp.Connection, queueName string) *HistoryPublisher {
	return &HistoryPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *HistoryPublisher) Publish(ctx context.Context, entry model.ChatHistory) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare history queue failed: %w", err)
	}

	payload, err := json.Marshal(HistoryMessage{
		UserID:   entry.UserID,
		Question: entry.Question,
		Answer:   entry.Answer,
		Sources:  entry.SourceRefs(),
	})
	if err != nil {
		return fmt.Errorf("marshal history payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish history failed: %w", err)
	}
	return nil
}
