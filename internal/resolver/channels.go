package resolver

import (
	"strings"

	"github.com/brandwell/dispatch/internal/providers"
)

// platformMatchers maps a post platform to the substrings Buffer reports in
// a profile's service field. First profile match wins.
var platformMatchers = map[string][]string{
	"instagram": {"instagram"},
	"facebook":  {"facebook"},
	"tiktok":    {"tiktok"},
}

// resolveChannels merges the explicit per-platform channel map with
// connect-time profiles. Explicit entries take precedence; profiles backfill
// unmapped platforms by service substring, and profiles matching nothing fall
// into the "other" bucket.
func resolveChannels(explicit map[string]string, profiles []providers.BufferProfile) map[string]string {
	channels := make(map[string]string, len(explicit))
	for platform, id := range explicit {
		if id != "" {
			channels[platform] = id
		}
	}

	for _, profile := range profiles {
		service := strings.ToLower(profile.Service)

		matched := false
		for platform, needles := range platformMatchers {
			if _, taken := channels[platform]; taken {
				continue
			}
			for _, needle := range needles {
				if strings.Contains(service, needle) {
					channels[platform] = profile.ID
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}

		if !matched {
			if _, taken := channels["other"]; !taken {
				channels["other"] = profile.ID
			}
		}
	}

	return channels
}

// SchedulerHandle pairs a constructed scheduler adapter with the tenant's
// resolved channel map.
type SchedulerHandle struct {
	Provider providers.SchedulerProvider
	channels map[string]string
}

// NewSchedulerHandle builds a handle from an already-resolved channel map.
func NewSchedulerHandle(provider providers.SchedulerProvider, channels map[string]string) *SchedulerHandle {
	return &SchedulerHandle{Provider: provider, channels: channels}
}

// ChannelFor returns the profile ID for a platform. No resolved channel is a
// configuration error, not a guess.
func (h *SchedulerHandle) ChannelFor(platform string) (string, error) {
	if id, ok := h.channels[platform]; ok {
		return id, nil
	}
	return "", &ConfigError{
		Provider: ProviderBuffer,
		Reason:   "no channel configured for platform " + platform,
	}
}
