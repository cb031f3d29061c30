package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadcast/internal/config"
)

const userAgent = "leadcast/0.1"

// NewProvider builds the provider named in configuration.
func NewProvider(cfg config.Location, client *http.Client) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.LocationProviderIPGeo:
		return NewIPGeoProvider(cfg.URL, cfg.AccuracyMeters, client), nil
	case config.LocationProviderStatic:
		return StaticProvider{Fix: Fix{Latitude: cfg.Latitude, Longitude: cfg.Longitude, AccuracyMeters: cfg.AccuracyMeters}}, nil
	case config.LocationProviderNone, "":
		return NoneProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown location provider %q", cfg.Provider)
	}
}

// IPGeoProvider estimates position from an IP geolocation JSON endpoint.
// Both ipapi.co (latitude/longitude) and ip-api.com (lat/lon) field names are
// understood.
type IPGeoProvider struct {
	url      string
	accuracy float64
	client   *http.Client
}

// NewIPGeoProvider constructs a provider for url. accuracy is reported with
// every fix since IP lookups carry no precision of their own.
func NewIPGeoProvider(url string, accuracy float64, client *http.Client) *IPGeoProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &IPGeoProvider{url: strings.TrimSpace(url), accuracy: accuracy, client: client}
}

type ipGeoResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Error     bool     `json:"error"`
	Status    string   `json:"status"`
	Reason    string   `json:"reason"`
	Message   string   `json:"message"`
}

func (p *IPGeoProvider) Locate(ctx context.Context) (Fix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Fix{}, &Error{Reason: ReasonPositionUnavailable, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return Fix{}, &Error{Reason: ReasonTimeout, Err: err}
		}
		return Fix{}, &Error{Reason: ReasonPositionUnavailable, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Fix{}, &Error{Reason: ReasonPermissionDenied, Err: fmt.Errorf("provider returned %d", resp.StatusCode)}
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Fix{}, &Error{Reason: ReasonPositionUnavailable, Err: fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var payload ipGeoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload); err != nil {
		return Fix{}, &Error{Reason: ReasonPositionUnavailable, Err: fmt.Errorf("decode response: %w", err)}
	}
	if payload.Error || strings.EqualFold(payload.Status, "fail") {
		detail := strings.TrimSpace(payload.Reason + " " + payload.Message)
		return Fix{}, &Error{Reason: ReasonPositionUnavailable, Err: fmt.Errorf("provider error: %s", detail)}
	}

	lat, lon := payload.Latitude, payload.Longitude
	if lat == nil || lon == nil {
		lat, lon = payload.Lat, payload.Lon
	}
	if lat == nil || lon == nil {
		return Fix{}, &Error{Reason: ReasonPositionUnavailable, Err: errors.New("response has no coordinates")}
	}
	return Fix{Latitude: *lat, Longitude: *lon, AccuracyMeters: p.accuracy, Timestamp: time.Now()}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}

// StaticProvider always returns the configured position.
type StaticProvider struct {
	Fix Fix
}

func (p StaticProvider) Locate(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, &Error{Reason: ReasonTimeout, Err: err}
	}
	fix := p.Fix
	fix.Timestamp = time.Now()
	return fix, nil
}

// NoneProvider reports that location access is disabled.
type NoneProvider struct{}

func (NoneProvider) Locate(context.Context) (Fix, error) {
	return Fix{}, &Error{Reason: ReasonPermissionDenied, Err: errors.New("location lookup disabled")}
}
