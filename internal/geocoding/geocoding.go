package geocoding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Result is a resolved location.
type Result struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address"`
}

// Provider resolves free-form location text to coordinates. The concrete
// provider is an external collaborator behind this interface.
type Provider interface {
	Geocode(ctx context.Context, location string) (*Result, error)
}

// HTTPProvider calls a JSON geocoding endpoint: POST {"location": "..."}
// returning a Result body.
type HTTPProvider struct {
	url    string
	client *http.Client
}

// NewHTTPProvider creates a provider against the given endpoint.
func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) Geocode(ctx context.Context, location string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"location": location})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding endpoint returned %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}
	return &result, nil
}

// DisabledProvider always misses. Used when no geocoding endpoint is
// configured; lookups then resolve only through the caches.
type DisabledProvider struct{}

func (DisabledProvider) Geocode(ctx context.Context, location string) (*Result, error) {
	return nil, nil
}

// normalizeLocation is the cache key form of a location string.
func normalizeLocation(location string) string {
	return strings.ToLower(strings.Join(strings.Fields(location), " "))
}
