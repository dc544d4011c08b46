package providers

import (
	"context"
	"fmt"
	"net/url"
)

const defaultBufferBaseURL = "https://api.bufferapp.com/1"

// Buffer schedules social posts through the Buffer publish API.
type Buffer struct {
	client      *Client
	accessToken string
}

func NewBuffer(accessToken, baseURL string) *Buffer {
	if baseURL == "" {
		baseURL = defaultBufferBaseURL
	}
	client := NewClient(baseURL)
	client.SetHeader("Authorization", "Bearer "+accessToken)

	return &Buffer{
		client:      client,
		accessToken: accessToken,
	}
}

func (b *Buffer) PublishPost(ctx context.Context, in PublishPostInput) (*Result, error) {
	if in.ProfileID == "" {
		return nil, fmt.Errorf("buffer publish requires a profile id")
	}

	form := url.Values{}
	form.Set("profile_ids[]", in.ProfileID)
	form.Set("text", in.Caption)
	form.Set("now", "true")
	if in.MediaURL != "" {
		form.Set("media[photo]", in.MediaURL)
	}
	if in.LinkURL != "" {
		form.Set("media[link]", in.LinkURL)
	}
	if in.Title != "" {
		form.Set("media[title]", in.Title)
	}

	resp, err := b.client.PostForm(ctx, "/updates/create.json", form.Encode())
	if err != nil {
		return nil, fmt.Errorf("buffer create update: %w", err)
	}

	result := &Result{
		Status: "sent",
		Raw:    resp.Raw,
	}

	// Buffer nests created updates under "updates"; fall back to a top-level
	// id for older response shapes.
	if obj, ok := resp.Raw.JSON.(map[string]any); ok {
		if updates, ok := obj["updates"].([]any); ok && len(updates) > 0 {
			if first, ok := updates[0].(map[string]any); ok {
				if id, ok := first["id"].(string); ok {
					result.ProviderMessageID = id
				}
				if status, ok := first["status"].(string); ok && status == "buffer" {
					result.Status = "queued"
				}
			}
		}
		if result.ProviderMessageID == "" {
			result.ProviderMessageID = jsonString(resp.Raw, "id")
		}
	}

	return result, nil
}

// BufferProfile is one connected channel reported by Buffer at connect time.
type BufferProfile struct {
	ID      string `json:"id"`
	Service string `json:"service"`
}

// FetchProfiles lists the tenant's connected Buffer channels. Called during
// the connect flow; the profiles are stored on the credential for later
// channel resolution.
func (b *Buffer) FetchProfiles(ctx context.Context) ([]BufferProfile, error) {
	resp, err := b.client.Do(ctx, "GET", "/profiles.json", "", nil)
	if err != nil {
		return nil, fmt.Errorf("buffer list profiles: %w", err)
	}

	list, ok := resp.Raw.JSON.([]any)
	if !ok {
		return nil, fmt.Errorf("buffer profiles: unexpected response shape")
	}

	profiles := make([]BufferProfile, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		profile := BufferProfile{}
		if id, ok := obj["id"].(string); ok {
			profile.ID = id
		}
		if service, ok := obj["service"].(string); ok {
			profile.Service = service
		}
		if profile.ID != "" {
			profiles = append(profiles, profile)
		}
	}

	return profiles, nil
}
