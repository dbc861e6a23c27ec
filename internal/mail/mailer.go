// Package mail delivers transactional email.
package mail

import (
	"context"
	"fmt"
	"html"

	"shop-service/internal/util"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Message is a plain-text email to a single recipient.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridMailer sends through the SendGrid v3 API.
type SendGridMailer struct {
	client   *sendgrid.Client
	from     string
	fromName string
	logger   *zap.Logger
}

func NewSendGridMailer(apiKey, from, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: fromName,
		logger:   util.Named("mail"),
	}
}

// Send sends msg. Any non-2xx response is an error.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("to address is empty")
	}

	message := sgmail.NewSingleEmail(
		sgmail.NewEmail(m.fromName, m.from),
		msg.Subject,
		sgmail.NewEmail(msg.ToName, msg.To),
		msg.Body,
		"<pre>"+html.EscapeString(msg.Body)+"</pre>",
	)

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		m.logger.Error("SendGrid rejected message",
			zap.Int("status", response.StatusCode),
			zap.String("body", response.Body))
		return fmt.Errorf("sendgrid send failed: status=%d", response.StatusCode)
	}

	m.logger.Info("Mail sent",
		zap.Int("status", response.StatusCode),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

// LogMailer only logs messages. Used when no SendGrid key is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer() *LogMailer {
	return &LogMailer{logger: util.Named("mail")}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("Mail delivery disabled, logging message",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

// New picks SendGrid when apiKey is set.
func New(apiKey, from, fromName string) Mailer {
	if apiKey == "" {
		return NewLogMailer()
	}
	return NewSendGridMailer(apiKey, from, fromName)
}
