package notify

import (
	"fmt"
	"net/smtp"
	"strings"
)

// EmailSender delivers a single html email. Implementations must be safe for
// concurrent use.
type EmailSender interface {
	Send(to, subject, htmlBody string) error
}

type SmtpArgs struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SmtpSender struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSmtpSender validates the mail configuration eagerly so a misconfigured
// deployment fails at startup instead of on the first notification.
func NewSmtpSender(args SmtpArgs) (*SmtpSender, error) {
	var missing []string
	if args.Host == "" {
		missing = append(missing, "host")
	}
	if args.Port == 0 {
		missing = append(missing, "port")
	}
	if args.Username == "" {
		missing = append(missing, "username")
	}
	if args.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required email configuration: %v", strings.Join(missing, ", "))
	}

	from := args.From
	if from == "" {
		from = args.Username
	}

	return &SmtpSender{
		addr: fmt.Sprintf("%v:%d", args.Host, args.Port),
		auth: smtp.PlainAuth("", args.Username, args.Password, args.Host),
		from: from,
	}, nil
}

func (s *SmtpSender) Send(to, subject, htmlBody string) error {
	headers := []string{
		fmt.Sprintf("From: %v", s.from),
		fmt.Sprintf("To: %v", to),
		fmt.Sprintf("Subject: %v", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
	}
	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(message))
	if err != nil {
		return fmt.Errorf("error sending email to %v: %w", to, err)
	}
	return nil
}

// NoopEmailSender drops all emails. Used when no smtp server is configured.
type NoopEmailSender struct{}

func (NoopEmailSender) Send(to, subject, htmlBody string) error {
	return nil
}
