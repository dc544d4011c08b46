package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
)

const defaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"

// Twilio sends SMS through the Twilio Messages API.
type Twilio struct {
	client     *Client
	accountSID string
	fromNumber string
}

func NewTwilio(accountSID, authToken, fromNumber, baseURL string) *Twilio {
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	client := NewClient(baseURL)
	auth := base64.StdEncoding.EncodeToString([]byte(accountSID + ":" + authToken))
	client.SetHeader("Authorization", "Basic "+auth)

	return &Twilio{
		client:     client,
		accountSID: accountSID,
		fromNumber: fromNumber,
	}
}

func (t *Twilio) SendSms(ctx context.Context, to, message string) (*Result, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.fromNumber)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("/Accounts/%s/Messages.json", t.accountSID)
	resp, err := t.client.PostForm(ctx, endpoint, form.Encode())
	if err != nil {
		return nil, fmt.Errorf("twilio send sms: %w", err)
	}

	return &Result{
		ProviderMessageID: jsonString(resp.Raw, "sid"),
		Status:            "sent",
		Raw:               resp.Raw,
	}, nil
}
