package vue

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

type staticTokens struct {
	mu          sync.Mutex
	token       string
	invalidated int
}

func (s *staticTokens) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *staticTokens) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated++
}

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *staticTokens, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := &staticTokens{token: "test-token"}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	c := NewHTTPClient(tokens, logger)
	c.baseURL = srv.URL
	c.httpc = srv.Client()
	return c, tokens, srv
}

func TestHTTPClient_GetDevices(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers/devices" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("authtoken"); got != "test-token" {
			t.Errorf("Expected authtoken header, got %q", got)
		}
		fmt.Fprint(w, `{
			"customerGid": 42,
			"devices": [
				{
					"deviceGid": 1000,
					"deviceName": "Home",
					"model": "Vue2",
					"devices": [
						{"deviceGid": 2000, "deviceName": "Plug"}
					]
				}
			]
		}`)
	}))

	devices, err := c.GetDevices(context.Background())
	if err != nil {
		t.Fatalf("GetDevices failed: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("Expected 1 device, got %d", len(devices))
	}
	if devices[0].DeviceGID != 1000 || devices[0].DeviceName != "Home" {
		t.Errorf("Unexpected device: %+v", devices[0])
	}
	if len(devices[0].Devices) != 1 || devices[0].Devices[0].DeviceGID != 2000 {
		t.Errorf("Expected nested device 2000, got %+v", devices[0].Devices)
	}
}

func TestHTTPClient_GetDeviceListUsage(t *testing.T) {
	instant := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("apiMethod"); got != "getDeviceListUsage" {
			t.Errorf("Expected apiMethod=getDeviceListUsage, got %q", got)
		}
		if !strings.Contains(r.URL.RawQuery, "deviceGids=1000+2000") {
			t.Errorf("Expected gids joined with +, got %q", r.URL.RawQuery)
		}
		if got := r.URL.Query().Get("instant"); got != "2024-03-01T12:00:00Z" {
			t.Errorf("Unexpected instant %q", got)
		}
		if got := r.URL.Query().Get("scale"); got != Scale1Min {
			t.Errorf("Unexpected scale %q", got)
		}
		if got := r.URL.Query().Get("energyUnit"); got != UnitKilowattHours {
			t.Errorf("Unexpected unit %q", got)
		}
		fmt.Fprint(w, `{
			"deviceListUsages": {
				"instant": "2024-03-01T12:00:00Z",
				"scale": "1MIN",
				"unit": "KilowattHours",
				"devices": [
					{
						"deviceGid": 1000,
						"channelUsages": [
							{"name": "Main", "channelNum": "1,2,3", "usage": 0.001},
							{"name": "Dryer", "channelNum": "4", "usage": null}
						]
					}
				]
			}
		}`)
	}))

	usages, err := c.GetDeviceListUsage(context.Background(), []int{1000, 2000}, instant, Scale1Min, UnitKilowattHours)
	if err != nil {
		t.Fatalf("GetDeviceListUsage failed: %v", err)
	}
	if len(usages) != 1 {
		t.Fatalf("Expected 1 device usage, got %d", len(usages))
	}
	channels := usages[0].ChannelUsages
	if len(channels) != 2 {
		t.Fatalf("Expected 2 channels, got %d", len(channels))
	}
	if channels[0].Usage == nil || *channels[0].Usage != 0.001 {
		t.Errorf("Unexpected usage for channel 0: %+v", channels[0])
	}
	if channels[1].Usage != nil {
		t.Errorf("Expected nil usage for channel 1, got %f", *channels[1].Usage)
	}
}

func TestHTTPClient_NoDevicesNoRequest(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Unexpected request for empty gid list")
	}))

	usages, err := c.GetDeviceListUsage(context.Background(), nil, time.Now(), Scale1Min, UnitKilowattHours)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if usages != nil {
		t.Errorf("Expected nil usages, got %v", usages)
	}
}

func TestHTTPClient_RetriesOnceOnUnauthorized(t *testing.T) {
	var requests int
	c, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"customerGid": 42, "devices": []}`)
	}))

	if _, err := c.GetDevices(context.Background()); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if requests != 2 {
		t.Errorf("Expected 2 requests, got %d", requests)
	}
	if tokens.invalidated != 1 {
		t.Errorf("Expected token invalidated once, got %d", tokens.invalidated)
	}
}

func TestHTTPClient_PersistentUnauthorized(t *testing.T) {
	c, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if _, err := c.GetDevices(context.Background()); err == nil {
		t.Fatal("Expected error after repeated 401")
	}
	if tokens.invalidated != 1 {
		t.Errorf("Expected a single invalidation, got %d", tokens.invalidated)
	}
}

func TestHTTPClient_ServerError(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if _, err := c.GetDevices(context.Background()); err == nil {
		t.Fatal("Expected error on 500")
	}
}

func TestHTTPClient_MalformedResponse(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"devices": [`)
	}))

	if _, err := c.GetDevices(context.Background()); err == nil {
		t.Fatal("Expected error on malformed JSON")
	}
}
