package notify

import (
	"context"
	"fmt"

	"github.com/mailersend/mailersend-go"
)

type MailerSendNotifier struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSendNotifier(apiKey, fromName, fromEmail string) (*MailerSendNotifier, error) {
	if apiKey == "" || fromEmail == "" {
		return nil, fmt.Errorf("MailerSend not configured")
	}
	return &MailerSendNotifier{
		client: mailersend.NewMailersend(apiKey),
		from:   mailersend.From{Name: fromName, Email: fromEmail},
	}, nil
}

func (m *MailerSendNotifier) Notify(ctx context.Context, msg Message) error {
	subject, text, html := Render(msg)

	email := m.client.Email.NewMessage()
	email.SetFrom(m.from)
	email.SetRecipients([]mailersend.Recipient{{Name: msg.Name, Email: msg.To}})
	email.SetSubject(subject)
	email.SetText(text)
	email.SetHTML(html)

	_, err := m.client.Email.Send(ctx, email)
	return err
}
