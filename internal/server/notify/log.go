package notify

import (
	"context"

	"github.com/dmitrijs2005/contactsapi/internal/logging"
)

// LogNotifier stands in for SMTP in development. The rendered body carries a
// live token, so it is written at debug level only.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	body, err := Render(msg)
	if err != nil {
		return err
	}
	n.logger.Info(ctx, "email not sent, smtp disabled", "to", logging.RedactEmail(msg.To), "subject", msg.Subject)
	n.logger.Debug(ctx, "email body", "to", logging.RedactEmail(msg.To), "body", body)
	return nil
}
