package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SMTPMailer submits transactional email over a pooled SMTP connection.
type SMTPMailer struct {
	pool *Pool
	from string
	log  *slog.Logger
}

func NewSMTPMailer(pool *Pool, from string, log *slog.Logger) *SMTPMailer {
	return &SMTPMailer{pool: pool, from: from, log: log}
}

// Send submits one message and reports success or failure. There is no
// delivery receipt beyond the server accepting the DATA command.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string, isBodyHTML bool) error {
	client, err := m.pool.get(ctx)
	if err != nil {
		return fmt.Errorf("get SMTP connection: %w", err)
	}

	healthy := true
	defer func() { m.pool.put(client, healthy) }()

	to = strings.TrimSpace(to)

	if err := client.Mail(m.from); err != nil {
		healthy = false
		return err
	}
	if err := client.Rcpt(to); err != nil {
		healthy = false
		return err
	}
	wc, err := client.Data()
	if err != nil {
		healthy = false
		return err
	}
	if _, err := wc.Write([]byte(buildMessage(m.from, to, subject, body, isBodyHTML))); err != nil {
		healthy = false
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		healthy = false
		return err
	}
	return nil
}
