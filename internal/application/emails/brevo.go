package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches Brevo API v3 send transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoSender `json:"sender"`
	To          []BrevoTo   `json:"to"`
	Subject     string      `json:"subject"`
	HTMLContent string      `json:"htmlContent"`
}

type BrevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BrevoTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// ReportNotice is the moderator-facing summary of a submitted report.
type ReportNotice struct {
	ListingID   string
	ListingURL  string
	Reporter    string
	Contact     string
	Description string
}

// Notifier tells moderators about new reports. Nil = no-op.
type Notifier interface {
	SendReportNotice(ctx context.Context, toEmail string, n ReportNotice) error
}

// BrevoClient sends emails via Brevo (Sendinblue) API: SENDINBLUE_API_KEY, MAIL_FROM.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	Endpoint string // defaults to the Brevo v3 API
	Client   *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@cropmarket.gr"
}

func (c *BrevoClient) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return brevoAPI
}

// send sends one email via Brevo API.
func (c *BrevoClient) send(ctx context.Context, toEmail, subject, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoSender{Email: c.from(), Name: "CropMarket"},
		To:          []BrevoTo{{Email: toEmail}},
		Subject:     subject,
		HTMLContent: html,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

// SendReportNotice emails a moderator about a flagged listing.
func (c *BrevoClient) SendReportNotice(ctx context.Context, toEmail string, n ReportNotice) error {
	if c.APIKey == "" || toEmail == "" {
		return nil
	}
	subject := fmt.Sprintf("Listing reported: %s", n.ListingID)
	return c.send(ctx, toEmail, subject, EmailLayout(reportContent(n)))
}

func reportContent(n ReportNotice) string {
	reporter := n.Reporter
	if reporter == "" {
		reporter = "Anonymous"
	}
	contact := n.Contact
	if contact == "" {
		contact = "-"
	}
	listing := EscapeHTML(n.ListingID)
	if n.ListingURL != "" {
		listing = fmt.Sprintf(`<a href="%s">%s</a>`, EscapeHTML(n.ListingURL), listing)
	}
	return fmt.Sprintf(`
    <h1>A listing was reported</h1>
    <dl>
      <dt>Listing</dt><dd>%s</dd>
      <dt>Reported by</dt><dd>%s</dd>
      <dt>Contact</dt><dd>%s</dd>
      <dt>Description</dt><dd>%s</dd>
    </dl>
    <p>Review the listing and remove it if it breaks the marketplace rules.</p>
`, listing, EscapeHTML(reporter), EscapeHTML(contact), EscapeHTML(n.Description))
}
