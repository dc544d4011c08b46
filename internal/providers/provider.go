// Package providers contains the narrow adapter interfaces for each external
// communication channel and their HTTP implementations (Buffer, Twilio,
// Google Business Profile, SendGrid).
package providers

import "context"

// Raw is a provider response body. The shape is decided once at the HTTP
// boundary: JSON is set when the body parses as a JSON object or array,
// otherwise Text carries the body verbatim.
type Raw struct {
	JSON any    `json:"json,omitempty"`
	Text string `json:"text,omitempty"`
}

// Result is the confirmed outcome of one provider call.
type Result struct {
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	ProviderPostID    string `json:"provider_post_id,omitempty"`
	Status            string `json:"status,omitempty"` // sent | queued
	Raw               Raw    `json:"raw"`
}

// PublishPostInput carries a social post to the scheduling provider.
type PublishPostInput struct {
	Platform  string
	Caption   string
	MediaURL  string
	LinkURL   string
	Title     string
	ProfileID string
}

// CreatePostInput carries a Business Profile post.
type CreatePostInput struct {
	LocationName    string
	Summary         string
	CallToAction    string
	CallToActionURL string
	MediaURL        string
}

// SchedulerProvider publishes posts to a social scheduling service.
type SchedulerProvider interface {
	PublishPost(ctx context.Context, in PublishPostInput) (*Result, error)
}

// SmsProvider sends a single outbound SMS.
type SmsProvider interface {
	SendSms(ctx context.Context, to, message string) (*Result, error)
}

// GbpProvider creates posts on a local-business listing.
type GbpProvider interface {
	CreatePost(ctx context.Context, in CreatePostInput) (*Result, error)
}

// EmailProvider sends a transactional email.
type EmailProvider interface {
	SendEmail(ctx context.Context, to, subject, html, text string) (*Result, error)
}
