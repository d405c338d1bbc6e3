package geocoding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProviderGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Austin, TX", body["location"])

		json.NewEncoder(w).Encode(Result{
			Latitude:         30.2672,
			Longitude:        -97.7431,
			FormattedAddress: "Austin, TX, USA",
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL)
	result, err := p.Geocode(context.Background(), "Austin, TX")
	require.NoError(t, err)
	assert.InDelta(t, 30.2672, result.Latitude, 0.0001)
	assert.Equal(t, "Austin, TX, USA", result.FormattedAddress)
}

func TestHTTPProviderGeocodeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL)
	result, err := p.Geocode(context.Background(), "Nowhereville")
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestNormalizeLocation(t *testing.T) {
	assert.Equal(t, "austin, tx", normalizeLocation("  Austin,   TX "))
	assert.Equal(t, "", normalizeLocation("   "))
	assert.Equal(t, normalizeLocation("AUSTIN, TX"), normalizeLocation("austin, tx"))
}
