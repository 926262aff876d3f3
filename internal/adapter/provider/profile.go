package provider

import (
	"context"
	"net/url"

	"loyalty-topup/config"
)

// ProfileClient implements ports.ProfileMirror against the CRM profile store.
type ProfileClient struct {
	api jsonClient
}

// NewProfileClient creates a profile store client.
func NewProfileClient(cfg config.HTTPCollaboratorConfig, client HTTPClient) *ProfileClient {
	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}
	return &ProfileClient{api: newJSONClient("profile store", cfg.BaseURL, cfg.APIKey, client)}
}

// MirrorPointsIncrement adds delta to the profile's total points.
func (c *ProfileClient) MirrorPointsIncrement(ctx context.Context, profileRef string, delta int64) error {
	return c.api.post(ctx, "/v1/profiles/"+url.PathEscape(profileRef)+"/points:increment",
		struct {
			Delta int64 `json:"delta"`
		}{delta}, nil)
}
