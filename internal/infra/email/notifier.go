package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, email, runID, experiment, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	subject := fmt.Sprintf("Training run failed [%s]", experiment)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"A training run has failed.\r\n\r\n"+
			"Run ID: %s\r\n"+
			"Experiment: %s\r\n"+
			"Error: %s\r\n\r\n"+
			"-- video-classifier",
		runID, experiment, errorMsg,
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, email, subject, body,
	)

	if err := smtp.SendMail(addr, nil, n.from, []string{email}, []byte(msg)); err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", email),
			zap.String("run_id", runID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", email),
		zap.String("run_id", runID),
	)
	return nil
}
