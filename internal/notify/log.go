package notify

import (
	"context"
	"fmt"

	"github.com/diagnosis/roombook/pkg/logger"
)

// LogNotifier prints codes to stdout for local development.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (LogNotifier) Notify(ctx context.Context, msg Message) error {
	subject, text, _ := Render(msg)
	logger.InfoContext(ctx, "[DEV MAIL] OTP notification",
		"to", msg.To,
		"action", msg.Action,
		"challenge_id", msg.ChallengeID,
	)

	fmt.Printf("\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"OTP EMAIL (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s (%s)\n"+
		"Subject: %s\n"+
		"\n"+
		"%s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		msg.To, msg.Name, subject, text)
	return nil
}
