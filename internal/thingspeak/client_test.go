package thingspeak_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/firesense/fire-alert-service/internal/config"
	"github.com/firesense/fire-alert-service/internal/thingspeak"
)

func testChannel() thingspeak.Channel {
	return thingspeak.Channel{
		Name:      "Station 4",
		ChannelID: "123456",
		ReadKey:   "ABCDEF",
	}
}

func newTestClient(baseURL string) *thingspeak.Client {
	return thingspeak.NewClient(config.ThingSpeakConfig{
		BaseURL:        baseURL,
		TimeoutSeconds: 2,
	}, zap.NewNop())
}

func TestLatest_FieldMapping(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("api_key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"created_at": "2026-08-30T10:15:00Z",
			"entry_id": 42,
			"field1": "27.5",
			"field2": "61.2",
			"field3": "1",
			"field4": "120.0",
			"field5": "0"
		}`))
	}))
	defer srv.Close()

	reading := newTestClient(srv.URL).Latest(context.Background(), testChannel())
	if reading == nil {
		t.Fatal("Expected a reading, got nil")
	}

	if gotPath != "/channels/123456/feeds/last.json" {
		t.Errorf("Unexpected upstream path: %s", gotPath)
	}
	if gotKey != "ABCDEF" {
		t.Errorf("Unexpected api_key: %s", gotKey)
	}

	if reading.Temperature != 27.5 {
		t.Errorf("Expected temperature 27.5, got %f", reading.Temperature)
	}
	if reading.Humidity != 61.2 {
		t.Errorf("Expected humidity 61.2, got %f", reading.Humidity)
	}
	if reading.Flame != "1" {
		t.Errorf("Expected flame flag \"1\", got %q", reading.Flame)
	}
	if reading.Gas != 120.0 {
		t.Errorf("Expected gas 120.0, got %f", reading.Gas)
	}
	if reading.PIR != "0" {
		t.Errorf("Expected pir flag \"0\", got %q", reading.PIR)
	}
	if reading.Timestamp != "2026-08-30T10:15:00Z" {
		t.Errorf("Unexpected timestamp: %s", reading.Timestamp)
	}
}

func TestLatest_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if reading := newTestClient(srv.URL).Latest(context.Background(), testChannel()); reading != nil {
		t.Errorf("Expected nil reading on upstream error, got %+v", reading)
	}
}

func TestLatest_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	if reading := newTestClient(srv.URL).Latest(context.Background(), testChannel()); reading != nil {
		t.Errorf("Expected nil reading on malformed body, got %+v", reading)
	}
}

func TestLatest_MissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// field4 (gas) absent
		w.Write([]byte(`{"created_at":"2026-08-30T10:15:00Z","field1":"27.5","field2":"61.2","field3":"1","field5":"0"}`))
	}))
	defer srv.Close()

	if reading := newTestClient(srv.URL).Latest(context.Background(), testChannel()); reading != nil {
		t.Errorf("Expected nil reading when a field is missing, got %+v", reading)
	}
}

func TestLatest_UnparseableNumericField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"created_at":"2026-08-30T10:15:00Z","field1":"warm","field2":"61.2","field3":"1","field4":"120.0","field5":"0"}`))
	}))
	defer srv.Close()

	if reading := newTestClient(srv.URL).Latest(context.Background(), testChannel()); reading != nil {
		t.Errorf("Expected nil reading for unparseable temperature, got %+v", reading)
	}
}

func TestLatest_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if reading := newTestClient(srv.URL).Latest(context.Background(), testChannel()); reading != nil {
		t.Errorf("Expected nil reading when upstream is unreachable, got %+v", reading)
	}
}

func TestHistory_SkipsMalformedEntries(t *testing.T) {
	var gotResults string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotResults = r.URL.Query().Get("results")
		w.Write([]byte(`{
			"channel": {"id": 123456},
			"feeds": [
				{"created_at":"2026-08-30T10:00:00Z","field1":"24.0","field2":"60.0","field3":"1","field4":"100.0","field5":"1"},
				{"created_at":"2026-08-30T10:05:00Z","field1":"bad","field2":"60.0","field3":"1","field4":"100.0","field5":"1"},
				{"created_at":"2026-08-30T10:10:00Z","field1":"26.0","field2":"59.0","field3":"1","field4":"110.0","field5":"1"}
			]
		}`))
	}))
	defer srv.Close()

	readings := newTestClient(srv.URL).History(context.Background(), testChannel(), 3)

	if gotResults != "3" {
		t.Errorf("Expected results=3 in query, got %q", gotResults)
	}
	if len(readings) != 2 {
		t.Fatalf("Expected 2 readings after skipping malformed entry, got %d", len(readings))
	}
	// Order preserved, oldest first as the upstream returns it
	if readings[0].Temperature != 24.0 || readings[1].Temperature != 26.0 {
		t.Errorf("Unexpected readings order: %+v", readings)
	}
}

func TestHistory_DefaultResultCount(t *testing.T) {
	var gotResults string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotResults = r.URL.Query().Get("results")
		w.Write([]byte(`{"feeds": []}`))
	}))
	defer srv.Close()

	readings := newTestClient(srv.URL).History(context.Background(), testChannel(), 0)

	if gotResults != "100" {
		t.Errorf("Expected default results=100, got %q", gotResults)
	}
	if len(readings) != 0 {
		t.Errorf("Expected no readings, got %d", len(readings))
	}
}

func TestHistory_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if readings := newTestClient(srv.URL).History(context.Background(), testChannel(), 10); len(readings) != 0 {
		t.Errorf("Expected empty history when upstream is unreachable, got %d", len(readings))
	}
}
