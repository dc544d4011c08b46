package dispatch

import (
	"encoding/json"
	"fmt"
)

// Typed payload shapes, one per action type. The untyped record payload is
// decoded at this boundary before entering a dispatch branch.

type postPublishPayload struct {
	Platform   string `json:"platform"`
	Caption    string `json:"caption"`
	MediaURL   string `json:"mediaUrl"`
	MediaType  string `json:"mediaType"`
	LinkURL    string `json:"linkUrl"`
	Title      string `json:"title"`
	ScheduleID string `json:"scheduleId"`
}

type smsPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type gbpPayload struct {
	Summary      string `json:"summary"`
	CallToAction string `json:"cta"`
	MediaURL     string `json:"mediaUrl"`
	LocationName string `json:"locationName"`

	// Three generations of producers named the CTA link differently; the
	// first present wins.
	CallToActionURL string `json:"callToActionUrl"`
	CtaURL          string `json:"ctaUrl"`
	LinkURL         string `json:"linkUrl"`
}

// ctaLink resolves the call-to-action URL across the legacy field names.
func (p *gbpPayload) ctaLink() string {
	for _, candidate := range []string{p.CallToActionURL, p.CtaURL, p.LinkURL} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

type emailPayload struct {
	ToEmail    string `json:"toEmail"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	HTML       string `json:"html"`
	Text       string `json:"text"`
	Template   string `json:"template"`
	EmailLogID string `json:"emailLogId"`
}

// recipient prefers the explicit email field over the generic one.
func (p *emailPayload) recipient() string {
	if p.ToEmail != "" {
		return p.ToEmail
	}
	return p.To
}

// decodePayload round-trips the untyped map through JSON into a typed shape.
func decodePayload(payload map[string]any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
