// Package geo resolves coordinates to named places for activity
// serialization. Lookups go to a Nominatim-compatible endpoint and
// results are cached, since streams repeat the same handful of
// locations over and over.
package geo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/kwren/activityloom/server/telemetry"
)

// Place is a resolved location.
type Place struct {
	Name string
	URL  string
}

// Resolver turns coordinates into place names via a reverse geocoding
// service. The zero Endpoint disables lookups, which keeps location
// maps coordinate-only.
type Resolver struct {
	Endpoint string
	Client   *http.Client
	TTL      time.Duration

	cache *ccache.Cache[Place]
}

// NewResolver returns a caching resolver against the given
// Nominatim-style reverse endpoint, e.g. "https://nominatim.example/reverse".
func NewResolver(endpoint string) *Resolver {
	return &Resolver{
		Endpoint: endpoint,
		Client:   http.DefaultClient,
		TTL:      24 * time.Hour,
		cache:    ccache.New(ccache.Configure[Place]()),
	}
}

// ReverseGeocode returns a display name and page URL for the given
// coordinates. Errors are returned to the caller, which is expected
// to fall back to bare coordinates.
func (r *Resolver) ReverseGeocode(lat, lon float64) (string, string, error) {
	if r == nil || r.Endpoint == "" {
		return "", "", nil
	}
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)
	item, err := r.cache.Fetch(key, r.TTL, func() (Place, error) {
		return r.lookup(lat, lon)
	})
	if err != nil {
		return "", "", err
	}
	place := item.Value()
	return place.Name, place.URL, nil
}

// nominatimResult is the subset of the reverse geocoding response we
// care about.
type nominatimResult struct {
	DisplayName string `json:"display_name"`
	OSMType     string `json:"osm_type"`
	OSMID       int64  `json:"osm_id"`
}

func (r *Resolver) lookup(lat, lon float64) (Place, error) {
	u, err := url.Parse(r.Endpoint)
	if err != nil {
		return Place{}, err
	}
	q := u.Query()
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("format", "jsonv2")
	u.RawQuery = q.Encode()

	telemetry.Trace("reverse geocoding %s", u.String())
	telemetry.Increment("geo_lookups", 1)

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(u.String())
	if err != nil {
		return Place{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("geocoder returned %s", resp.Status)
	}

	var result nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Place{}, err
	}
	place := Place{Name: result.DisplayName}
	if result.OSMType != "" && result.OSMID != 0 {
		place.URL = fmt.Sprintf("https://www.openstreetmap.org/%s/%d", result.OSMType, result.OSMID)
	}
	return place, nil
}
