package providers

import (
	"context"
	"fmt"
)

const defaultGbpBaseURL = "https://mybusiness.googleapis.com/v4"

// GoogleBusiness creates local posts on a Google Business Profile location.
type GoogleBusiness struct {
	client       *Client
	locationName string
}

// NewGoogleBusiness takes a freshly resolved (non-expired) access token and
// the fully qualified location name, e.g. "accounts/123/locations/456".
func NewGoogleBusiness(accessToken, locationName, baseURL string) *GoogleBusiness {
	if baseURL == "" {
		baseURL = defaultGbpBaseURL
	}
	client := NewClient(baseURL)
	client.SetHeader("Authorization", "Bearer "+accessToken)

	return &GoogleBusiness{
		client:       client,
		locationName: locationName,
	}
}

func (g *GoogleBusiness) CreatePost(ctx context.Context, in CreatePostInput) (*Result, error) {
	location := in.LocationName
	if location == "" {
		location = g.locationName
	}
	if location == "" {
		return nil, fmt.Errorf("google business post requires a location name")
	}

	body := map[string]any{
		"languageCode": "en",
		"summary":      in.Summary,
		"topicType":    "STANDARD",
	}

	if in.CallToActionURL != "" {
		actionType := in.CallToAction
		if actionType == "" {
			actionType = "LEARN_MORE"
		}
		body["callToAction"] = map[string]any{
			"actionType": actionType,
			"url":        in.CallToActionURL,
		}
	}

	if in.MediaURL != "" {
		body["media"] = []map[string]any{
			{
				"mediaFormat": "PHOTO",
				"sourceUrl":   in.MediaURL,
			},
		}
	}

	resp, err := g.client.PostJSON(ctx, "/"+location+"/localPosts", body)
	if err != nil {
		return nil, fmt.Errorf("google business create post: %w", err)
	}

	return &Result{
		ProviderPostID: jsonString(resp.Raw, "name"),
		Status:         "sent",
		Raw:            resp.Raw,
	}, nil
}
