package providers

import (
	"context"
	"fmt"
)

const defaultSendgridBaseURL = "https://api.sendgrid.com/v3"

// Sendgrid sends transactional email through the SendGrid v3 mail API.
type Sendgrid struct {
	client    *Client
	fromEmail string
	fromName  string
}

func NewSendgrid(apiKey, fromEmail, fromName, baseURL string) *Sendgrid {
	if baseURL == "" {
		baseURL = defaultSendgridBaseURL
	}
	client := NewClient(baseURL)
	client.SetHeader("Authorization", "Bearer "+apiKey)

	return &Sendgrid{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *Sendgrid) SendEmail(ctx context.Context, to, subject, html, text string) (*Result, error) {
	content := []map[string]string{}
	if text != "" {
		content = append(content, map[string]string{"type": "text/plain", "value": text})
	}
	if html != "" {
		content = append(content, map[string]string{"type": "text/html", "value": html})
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("sendgrid send requires html or text content")
	}

	body := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": to}}},
		},
		"from": map[string]string{
			"email": s.fromEmail,
			"name":  s.fromName,
		},
		"subject": subject,
		"content": content,
	}

	resp, err := s.client.PostJSON(ctx, "/mail/send", body)
	if err != nil {
		return nil, fmt.Errorf("sendgrid send email: %w", err)
	}

	// SendGrid replies 202 with an empty body; the message id is a header.
	return &Result{
		ProviderMessageID: resp.Header.Get("X-Message-Id"),
		Status:            "sent",
		Raw:               resp.Raw,
	}, nil
}
