package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"doubtiq-go/internal/config"
	"doubtiq-go/pkg/log"
)

const defaultSMTPTimeout = 30 * time.Second

// SMTPSender delivers mail over SMTP with STARTTLS and PLAIN auth.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
}

// NewSMTPSender creates a sender from the mail config. From falls back to Username.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     from,
		timeout:  timeout,
	}
}

func (s *SMTPSender) Configured() bool {
	return s.host != "" && s.username != "" && s.password != ""
}

// Send dials the server and delivers msg. The dial honours ctx and the
// configured timeout; the whole exchange is bounded by a connection deadline.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if err := validateHeaders(msg); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	dialCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to SMTP server: %w", err)
	}
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	} else if s.port != 25 && s.port != 1025 {
		return fmt.Errorf("STARTTLS not available on port %d (required for secure auth)", s.port)
	}

	if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
		return fmt.Errorf("SMTP authentication: %w", err)
	}
	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("SMTP MAIL command: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("SMTP RCPT command: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command: %w", err)
	}
	if _, err := wc.Write([]byte(s.buildMessage(msg))); err != nil {
		wc.Close()
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	if err := client.Quit(); err != nil {
		log.Warnw("smtp QUIT command failed", "error", err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(msg Message) string {
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"utf-8\"\r\n\r\n%s",
		s.from, msg.To, msg.Subject, msg.HTML)
}
