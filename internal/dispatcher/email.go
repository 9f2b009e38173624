package dispatcher

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
)

// MailSender is the part of the SendGrid client the e-mail channel needs.
type MailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

func NewSendGridClient(apiKey string) *sendgrid.Client {
	return sendgrid.NewSendClient(apiKey)
}

type EmailChannel struct {
	client MailSender
	from   *mail.Email
}

func NewEmailChannel(client MailSender, from string) *EmailChannel {
	return &EmailChannel{
		client: client,
		from:   mail.NewEmail("Delivery App", from),
	}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Accepts(event domain.NotificationEvent) bool {
	return event.Email != ""
}

func (e *EmailChannel) Send(ctx context.Context, event domain.NotificationEvent) error {
	message := mail.NewSingleEmail(
		e.from,
		event.Title,
		mail.NewEmail("", event.Email),
		event.Body,
		fmt.Sprintf("<p>%s</p>", event.Body),
	)

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}
	return nil
}
