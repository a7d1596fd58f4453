// Package mail sends transactional email, either directly over SMTP or
// through the Kafka outbox.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"doubtiq-go/pkg/tasks"
)

// ErrNotConfigured is returned by senders that have no transport.
var ErrNotConfigured = errors.New("mail transport not configured")

// Message is a single HTML mail.
type Message struct {
	To      string
	Subject string
	HTML    string
	// Kind and Code are metadata for the outbox consumer; SMTP ignores them.
	Kind string
	Code string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Configured reports whether Send can deliver anything at all.
	Configured() bool
}

// PasswordResetMessage builds the OTP mail.
func PasswordResetMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Password Reset OTP",
		HTML:    fmt.Sprintf("<p>Your OTP is <b>%s</b>. It expires in %d minutes.</p>", code, int(ttl.Minutes())),
		Kind:    tasks.MailKindPasswordReset,
		Code:    code,
	}
}

func validateHeaders(msg Message) error {
	if msg.To == "" {
		return errors.New("mail recipient is empty")
	}
	if strings.ContainsAny(msg.To+msg.Subject, "\r\n") {
		return errors.New("mail header contains a line break")
	}
	return nil
}

// NopSender is used when no transport is configured.
type NopSender struct{}

func (NopSender) Send(context.Context, Message) error { return ErrNotConfigured }

func (NopSender) Configured() bool { return false }
