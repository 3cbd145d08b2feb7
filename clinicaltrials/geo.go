package clinicaltrials

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const nominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// Geocoder resolves a free-form address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lon float64, err error)
}

// NominatimGeocoder resolves addresses via the OpenStreetMap Nominatim
// service.
type NominatimGeocoder struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewNominatimGeocoder creates a geocoder with the given User-Agent, which
// Nominatim's usage policy requires to identify the application.
func NewNominatimGeocoder(userAgent string) *NominatimGeocoder {
	return &NominatimGeocoder{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    nominatimBaseURL,
		userAgent:  userAgent,
	}
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (float64, float64, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geocoding service returned status %d", resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, fmt.Errorf("decode geocoding response: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("could not geocode address: %s", address)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse longitude: %w", err)
	}
	return lat, lon, nil
}

const earthRadiusKm = 6371.0

// haversineKm computes the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// closestLocation picks the study site nearest to the user. Sites without
// coordinates are skipped; if the nearest site is farther than maxDistance
// kilometers, nothing is returned.
func closestLocation(locations []Location, lat, lon, maxDistance float64) (float64, *Location) {
	closest := math.Inf(1)
	var closestLoc *Location

	for i := range locations {
		gp := locations[i].GeoPoint
		if gp == nil {
			continue
		}
		if d := haversineKm(lat, lon, gp.Lat, gp.Lon); d < closest {
			closest = d
			closestLoc = &locations[i]
		}
	}

	if closestLoc == nil || closest > maxDistance {
		return 0, nil
	}
	return closest, closestLoc
}
