package notify

import (
	"fmt"

	"github.com/diagnosis/roombook/pkg/config"
)

// Build returns the notifier for driver: log, smtp, mailersend or amqp.
// The amqp notifier must be closed by the caller.
func Build(driver string, email config.EmailConfig, broker config.AMQPConfig) (Notifier, error) {
	switch driver {
	case "", "log":
		return NewLogNotifier(), nil
	case "smtp":
		return NewSMTPNotifier(email.SMTPHost, email.SMTPPort, email.SMTPFrom, email.SMTPUser, email.SMTPPass, email.SMTPUseTLS), nil
	case "mailersend":
		n, err := NewMailerSendNotifier(email.MailerSendKey, email.FromName, email.SMTPFrom)
		if err != nil {
			return nil, err
		}
		return n, nil
	case "amqp":
		n, err := NewQueueNotifier(broker.URL, broker.Queue)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("unknown notify driver %q", driver)
}
