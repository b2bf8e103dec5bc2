package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

// HTTPClient calls the platform's internal scheduling API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("scheduling API base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse scheduling API base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) GetVisitData(ctx context.Context, visitID domain.VisitID) (*VisitContext, error) {
	var visit VisitContext
	if err := c.get(ctx, "/internal/v1/visits/"+visitID.String(), &visit); err != nil {
		return nil, err
	}
	return &visit, nil
}

func (c *HTTPClient) GetCaregiverData(ctx context.Context, caregiverID domain.CaregiverID) (*CaregiverProfile, error) {
	var profile CaregiverProfile
	if err := c.get(ctx, "/internal/v1/caregivers/"+caregiverID.String(), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build scheduling request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call scheduling API: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("scheduling API %s: %w (status %d)", path, sentinel.ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode scheduling response: %w", err)
	}
	return nil
}
