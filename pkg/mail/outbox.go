package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"doubtiq-go/pkg/tasks"

	"github.com/google/uuid"
)

// Publisher is the part of kafka.Producer the outbox needs.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// OutboxSender hands mail to the Kafka outbox; a worker delivers it later.
type OutboxSender struct {
	publisher Publisher
}

func NewOutboxSender(publisher Publisher) *OutboxSender {
	return &OutboxSender{publisher: publisher}
}

func (s *OutboxSender) Configured() bool {
	return s.publisher != nil
}

// Send enqueues msg. A nil error means the broker accepted it, not that it was delivered.
func (s *OutboxSender) Send(ctx context.Context, msg Message) error {
	if err := validateHeaders(msg); err != nil {
		return err
	}
	task := tasks.MailTask{
		ID:      uuid.NewString(),
		Kind:    msg.Kind,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Code:    msg.Code,
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal mail task: %w", err)
	}
	return s.publisher.Publish(ctx, task.To, payload)
}

// MessageFromTask converts an outbox payload back into a Message.
func MessageFromTask(task tasks.MailTask) Message {
	return Message{To: task.To, Subject: task.Subject, HTML: task.HTML, Kind: task.Kind, Code: task.Code}
}
