package location_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"leadcast/internal/config"
	"leadcast/internal/location"
	"leadcast/internal/services"
)

type countingProvider struct {
	calls atomic.Int32
	fix   location.Fix
	err   error
	block chan struct{}
}

func (p *countingProvider) Locate(ctx context.Context) (location.Fix, error) {
	p.calls.Add(1)
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return location.Fix{}, ctx.Err()
		}
	}
	return p.fix, p.err
}

func TestResolveReturnsFix(t *testing.T) {
	provider := &countingProvider{fix: location.Fix{Latitude: 55.751244, Longitude: 37.618423, AccuracyMeters: 20}}
	enricher := location.NewEnricher(provider, nil)

	snap := enricher.Resolve(context.Background(), time.Second, time.Minute).Wait(context.Background())
	if !snap.Resolved || !snap.Determined() {
		t.Fatalf("expected resolved fix, got %+v", snap)
	}
	if snap.Fix.Latitude != 55.751244 || snap.Fix.AccuracyMeters != 20 {
		t.Fatalf("unexpected fix %+v", snap.Fix)
	}
}

func TestResolveUsesCachedFixWithinMaxAge(t *testing.T) {
	provider := &countingProvider{fix: location.Fix{Latitude: 1, Longitude: 2}}
	enricher := location.NewEnricher(provider, nil)
	ctx := context.Background()

	enricher.Resolve(ctx, time.Second, time.Minute).Wait(ctx)
	lookup := enricher.Resolve(ctx, time.Second, time.Minute)
	if snap := lookup.Snapshot(); !snap.Determined() {
		t.Fatalf("cached lookup should resolve immediately, got %+v", snap)
	}
	if provider.calls.Load() != 1 {
		t.Fatalf("provider called %d times, want 1", provider.calls.Load())
	}

	enricher.Resolve(ctx, time.Second, 0).Wait(ctx)
	if provider.calls.Load() != 2 {
		t.Fatalf("zero max age should bypass the cache")
	}
}

func TestSnapshotDoesNotBlock(t *testing.T) {
	provider := &countingProvider{block: make(chan struct{})}
	enricher := location.NewEnricher(provider, nil)

	lookup := enricher.Resolve(context.Background(), time.Minute, 0)
	snap := lookup.Snapshot()
	if snap.Resolved || snap.Determined() {
		t.Fatalf("pending lookup should read as unresolved, got %+v", snap)
	}
	lookup.Cancel()
	final := lookup.Wait(context.Background())
	if final.Reason != location.ReasonTimeout {
		t.Fatalf("cancelled lookup reason = %q, want timeout", final.Reason)
	}
}

func TestResolveTimeout(t *testing.T) {
	provider := &countingProvider{block: make(chan struct{})}
	enricher := location.NewEnricher(provider, nil)

	snap := enricher.Resolve(context.Background(), 20*time.Millisecond, 0).Wait(context.Background())
	if snap.Determined() || snap.Reason != location.ReasonTimeout {
		t.Fatalf("expected timeout, got %+v", snap)
	}
}

func TestNoneProviderIsPermissionDenied(t *testing.T) {
	enricher := location.NewEnricher(location.NoneProvider{}, nil)
	snap := enricher.Resolve(context.Background(), time.Second, 0).Wait(context.Background())
	if snap.Reason != location.ReasonPermissionDenied {
		t.Fatalf("reason = %q", snap.Reason)
	}
}

func TestIPGeoProvider(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantReason location.Reason
		wantLat    float64
	}{
		{name: "ipapi fields", status: 200, body: `{"latitude": 43.2567, "longitude": 76.9286}`, wantLat: 43.2567},
		{name: "ip-api fields", status: 200, body: `{"status":"success","lat": 41.31, "lon": 69.28}`, wantLat: 41.31},
		{name: "forbidden", status: 403, body: `{}`, wantReason: location.ReasonPermissionDenied},
		{name: "server error", status: 500, body: `oops`, wantReason: location.ReasonPositionUnavailable},
		{name: "provider error", status: 200, body: `{"error": true, "reason": "RateLimited"}`, wantReason: location.ReasonPositionUnavailable},
		{name: "no coordinates", status: 200, body: `{}`, wantReason: location.ReasonPositionUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			provider := location.NewIPGeoProvider(server.URL, 5000, server.Client())
			fix, err := provider.Locate(context.Background())
			if tc.wantReason != "" {
				if location.ReasonOf(err) != tc.wantReason {
					t.Fatalf("reason = %q (err %v), want %q", location.ReasonOf(err), err, tc.wantReason)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			if fix.Latitude != tc.wantLat || fix.AccuracyMeters != 5000 {
				t.Fatalf("unexpected fix %+v", fix)
			}
		})
	}
}

func TestIPGeoProviderTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := location.NewIPGeoProvider(server.URL, 0, server.Client()).Locate(ctx)
	if location.ReasonOf(err) != location.ReasonTimeout {
		t.Fatalf("reason = %q, want timeout (err %v)", location.ReasonOf(err), err)
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("timeout should unwrap to services.ErrTimeout: %v", err)
	}
}

func TestNewProvider(t *testing.T) {
	static, err := location.NewProvider(config.Location{Provider: "static", Latitude: 10, Longitude: 20, AccuracyMeters: 3}, nil)
	if err != nil {
		t.Fatalf("static: %v", err)
	}
	fix, err := static.Locate(context.Background())
	if err != nil || fix.Latitude != 10 || fix.Longitude != 20 {
		t.Fatalf("static fix = %+v, %v", fix, err)
	}
	if _, err := location.NewProvider(config.Location{Provider: "gps"}, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
