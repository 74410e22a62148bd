package emails

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPClient sends notices through a plain SMTP relay when no Brevo key is set:
// SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_SSL.
type SMTPClient struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
	MailFrom string

	// Sender overrides the dialer (tests).
	Sender gomail.Sender
}

// SendReportNotice emails a moderator about a flagged listing.
func (c *SMTPClient) SendReportNotice(ctx context.Context, toEmail string, n ReportNotice) error {
	if c.Host == "" || toEmail == "" {
		return nil
	}
	m := c.reportMessage(toEmail, n)

	done := make(chan error, 1)
	go func() { done <- c.send(m) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	}
}

func (c *SMTPClient) reportMessage(toEmail string, n ReportNotice) *gomail.Message {
	from := c.MailFrom
	if from == "" {
		from = "noreply@cropmarket.gr"
	}
	m := gomail.NewMessage()
	m.SetAddressHeader("From", from, "CropMarket")
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("Listing reported: %s", n.ListingID))
	m.SetBody("text/html", EmailLayout(reportContent(n)))
	return m
}

func (c *SMTPClient) send(m *gomail.Message) error {
	if c.Sender != nil {
		return gomail.Send(c.Sender, m)
	}
	d := gomail.NewDialer(c.Host, c.Port, c.Username, c.Password)
	d.SSL = c.SSL
	return d.DialAndSend(m)
}
