// Package pipeline holds the background processing behind the Kafka outbox.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"doubtiq-go/pkg/kafka"
	"doubtiq-go/pkg/log"
	"doubtiq-go/pkg/mail"
	"doubtiq-go/pkg/tasks"
)

// MailProcessor delivers outbox mail tasks. It satisfies kafka.Handler.
type MailProcessor struct {
	sender  mail.Sender
	timeout time.Duration
}

// NewMailProcessor creates a processor that sends through sender, bounding
// each attempt by timeout.
func NewMailProcessor(sender mail.Sender, timeout time.Duration) *MailProcessor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MailProcessor{sender: sender, timeout: timeout}
}

func decodeTask(value []byte) (tasks.MailTask, error) {
	var task tasks.MailTask
	if err := json.Unmarshal(value, &task); err != nil {
		return task, fmt.Errorf("%w: %v", kafka.ErrMalformed, err)
	}
	if task.To == "" {
		return task, fmt.Errorf("%w: mail task %q has no recipient", kafka.ErrMalformed, task.ID)
	}
	return task, nil
}

// Process sends one task.
func (p *MailProcessor) Process(ctx context.Context, value []byte) error {
	task, err := decodeTask(value)
	if err != nil {
		return err
	}
	log.Infow("delivering outbox mail", "taskId", task.ID, "kind", task.Kind)

	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.sender.Send(sendCtx, mail.MessageFromTask(task)); err != nil {
		return fmt.Errorf("send mail task %s: %w", task.ID, err)
	}
	return nil
}

// Abandon logs a task that could not be delivered. Password-reset codes are
// logged so an operator can still hand them out.
func (p *MailProcessor) Abandon(_ context.Context, value []byte, err error) {
	task, decodeErr := decodeTask(value)
	if decodeErr != nil {
		log.Error("abandoned undecodable mail task", err)
		return
	}
	if task.Kind == tasks.MailKindPasswordReset {
		log.Warnw("password reset mail undeliverable, code logged instead", "email", task.To, "otp", task.Code, "error", err)
		return
	}
	log.Errorw("mail task abandoned", "taskId", task.ID, "kind", task.Kind, "error", err)
}
