// Package tasks defines the payloads sent through Kafka.
package tasks

// Mail kinds carried on MailTask.Kind.
const (
	MailKindPasswordReset = "password_reset"
)

// MailTask is one outbound mail waiting in the outbox topic.
type MailTask struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	// Code is set for password-reset mail so the consumer can fall back to
	// logging it when delivery keeps failing.
	Code string `json:"code,omitempty"`
}
