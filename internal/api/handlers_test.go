package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/firesense/fire-alert-service/internal/alert"
	"github.com/firesense/fire-alert-service/internal/api"
	"github.com/firesense/fire-alert-service/internal/auth"
	"github.com/firesense/fire-alert-service/internal/db"
	"github.com/firesense/fire-alert-service/internal/repository"
	"github.com/firesense/fire-alert-service/internal/thingspeak"
)

type fakeEvaluator struct {
	result    alert.Result
	evalErr   error
	updateErr error
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, locationID uuid.UUID) (alert.Result, error) {
	return f.result, f.evalErr
}

func (f *fakeEvaluator) Update(ctx context.Context, alertID uuid.UUID, status, token string) (*db.Alert, error) {
	if token == "" {
		return nil, auth.ErrUnauthorized
	}
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &db.Alert{ID: alertID, Status: status}, nil
}

type fakeGateway struct {
	reading *thingspeak.Reading
	history []thingspeak.Reading
}

func (f *fakeGateway) Latest(ctx context.Context, ch thingspeak.Channel) *thingspeak.Reading {
	return f.reading
}

func (f *fakeGateway) History(ctx context.Context, ch thingspeak.Channel, results int) []thingspeak.Reading {
	return f.history
}

type fakeStore struct {
	locations []db.Location
	alerts    []db.Alert
	profiles  map[uuid.UUID]*db.Profile
	requests  []db.LocationRequest
	created   []*db.Location
}

func (f *fakeStore) ListLocations(ctx context.Context) ([]db.Location, error) {
	return f.locations, nil
}

func (f *fakeStore) GetLocation(ctx context.Context, id uuid.UUID) (*db.Location, error) {
	for i := range f.locations {
		if f.locations[i].ID == id {
			return &f.locations[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) CreateLocation(ctx context.Context, loc *db.Location) error {
	loc.ID = uuid.New()
	loc.Status = db.LocationStatusNormal
	loc.CreatedAt = time.Now()
	f.created = append(f.created, loc)
	return nil
}

func (f *fakeStore) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (f *fakeStore) ListAlerts(ctx context.Context) ([]db.Alert, error) {
	return f.alerts, nil
}

func (f *fakeStore) GetAlert(ctx context.Context, id uuid.UUID) (*db.Alert, error) {
	for i := range f.alerts {
		if f.alerts[i].ID == id {
			return &f.alerts[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*db.Profile, error) {
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) UpdateProfile(ctx context.Context, profile *db.Profile) error {
	return nil
}

func (f *fakeStore) CreateLocationRequest(ctx context.Context, req *db.LocationRequest) error {
	req.ID = uuid.New()
	req.Status = db.RequestStatusPending
	req.CreatedAt = time.Now()
	f.requests = append(f.requests, *req)
	return nil
}

func (f *fakeStore) ListLocationRequestsForUser(ctx context.Context, userID uuid.UUID) ([]db.LocationRequest, error) {
	return f.requests, nil
}

func (f *fakeStore) ReviewLocationRequest(ctx context.Context, id uuid.UUID, approve bool, reviewer uuid.UUID) (*db.LocationRequest, *db.Location, error) {
	return nil, nil, repository.ErrNotFound
}

type fakeFeed struct {
	events []string
}

func (f *fakeFeed) PublishChange(ctx context.Context, table, event string, row interface{}) error {
	f.events = append(f.events, table+"."+event)
	return nil
}

type fakeSessions struct {
	profiles map[string]*db.Profile
}

func (s *fakeSessions) ResolveSession(ctx context.Context, token string) (*db.Profile, error) {
	if p, ok := s.profiles[token]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

type testEnv struct {
	server    *httptest.Server
	evaluator *fakeEvaluator
	gateway   *fakeGateway
	store     *fakeStore
	feed      *fakeFeed
}

func newTestEnv(t *testing.T, sessions *fakeSessions) *testEnv {
	t.Helper()
	if sessions == nil {
		sessions = &fakeSessions{}
	}
	env := &testEnv{
		evaluator: &fakeEvaluator{},
		gateway:   &fakeGateway{},
		store:     &fakeStore{profiles: map[uuid.UUID]*db.Profile{}},
		feed:      &fakeFeed{},
	}
	handler := api.NewHandler(
		env.evaluator,
		env.gateway,
		env.store,
		env.feed,
		auth.NewAuthenticator(sessions),
		zap.NewNop(),
	)
	env.server = httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(env.server.Close)
	return env
}

func postJSON(t *testing.T, url string, body interface{}, token string) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return body
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, env.server.URL+"/functions/alert-manager", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for preflight, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected permissive CORS header on preflight response")
	}
}

func TestAlertManager_InvalidAction(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := postJSON(t, env.server.URL+"/functions/alert-manager", map[string]string{"action": "explode"}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["success"] != false {
		t.Error("Expected success=false in error envelope")
	}
	if body["error"] != "Invalid action" {
		t.Errorf("Expected 'Invalid action', got %v", body["error"])
	}
}

func TestAlertManager_EvaluateCreated(t *testing.T) {
	env := newTestEnv(t, nil)
	env.evaluator.result = alert.Result{
		Outcome: alert.OutcomeCreated,
		Alert:   &db.Alert{ID: uuid.New(), AlertType: db.AlertTypeFire, Severity: db.SeverityCritical},
	}

	resp := postJSON(t, env.server.URL+"/functions/alert-manager", map[string]string{
		"action":     "evaluate",
		"locationId": uuid.New().String(),
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["success"] != true || body["created"] != true {
		t.Errorf("Expected success and created flags, got %v", body)
	}
	if body["alert"] == nil {
		t.Error("Expected alert in response")
	}
}

func TestAlertManager_EvaluateNoData(t *testing.T) {
	env := newTestEnv(t, nil)
	env.evaluator.result = alert.Result{Outcome: alert.OutcomeNoData}

	resp := postJSON(t, env.server.URL+"/functions/alert-manager", map[string]string{
		"action":     "evaluate",
		"locationId": uuid.New().String(),
	}, "")

	body := decodeBody(t, resp)
	if body["message"] != "No sensor data available" {
		t.Errorf("Expected no-data message, got %v", body["message"])
	}
}

func TestAlertManager_EvaluateLocationNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	env.evaluator.evalErr = alert.ErrLocationNotFound

	resp := postJSON(t, env.server.URL+"/functions/alert-manager", map[string]string{
		"action":     "evaluate",
		"locationId": uuid.New().String(),
	}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["error"] != "Location not found" {
		t.Errorf("Expected 'Location not found', got %v", body["error"])
	}
}

func TestAlertManager_UpdateWithoutToken(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := postJSON(t, env.server.URL+"/functions/alert-manager", map[string]string{
		"action":  "update",
		"alertId": uuid.New().String(),
		"status":  db.AlertStatusResolved,
	}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["error"] != "Unauthorized" {
		t.Errorf("Expected 'Unauthorized', got %v", body["error"])
	}
}

func TestAlertManager_UpdateOK(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := postJSON(t, env.server.URL+"/functions/alert-manager", map[string]string{
		"action":  "update",
		"alertId": uuid.New().String(),
		"status":  db.AlertStatusResolved,
	}, "some-token")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["message"] != "Alert updated successfully" {
		t.Errorf("Unexpected message: %v", body["message"])
	}
}

func TestThingSpeak_RequiresChannelFields(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := postJSON(t, env.server.URL+"/functions/thingspeak-service", map[string]interface{}{
		"action":   "latest",
		"location": map[string]string{"name": "Station 4"},
	}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for missing channel fields, got %d", resp.StatusCode)
	}
}

func TestThingSpeak_Latest(t *testing.T) {
	env := newTestEnv(t, nil)
	env.gateway.reading = &thingspeak.Reading{Temperature: 24.5, Flame: "1"}

	resp := postJSON(t, env.server.URL+"/functions/thingspeak-service", map[string]interface{}{
		"action": "latest",
		"location": map[string]string{
			"name":                  "Station 4",
			"thingspeak_channel_id": "123456",
			"thingspeak_read_key":   "ABCDEF",
		},
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected data object, got %v", body["data"])
	}
	if data["temperature"] != 24.5 {
		t.Errorf("Expected temperature 24.5, got %v", data["temperature"])
	}
}

func TestThingSpeak_LatestNoData(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := postJSON(t, env.server.URL+"/functions/thingspeak-service", map[string]interface{}{
		"action": "latest",
		"location": map[string]string{
			"name":                  "Station 4",
			"thingspeak_channel_id": "123456",
			"thingspeak_read_key":   "ABCDEF",
		},
	}, "")

	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Error("Expected success=true when upstream has no data")
	}
	if body["data"] != nil {
		t.Errorf("Expected null data, got %v", body["data"])
	}
}

func TestThingSpeak_HistoryAlwaysArray(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := postJSON(t, env.server.URL+"/functions/thingspeak-service", map[string]interface{}{
		"action": "history",
		"location": map[string]string{
			"name":                  "Station 4",
			"thingspeak_channel_id": "123456",
			"thingspeak_read_key":   "ABCDEF",
		},
	}, "")

	body := decodeBody(t, resp)
	if _, ok := body["data"].([]interface{}); !ok {
		t.Errorf("Expected data array even when empty, got %v", body["data"])
	}
}

func TestListAlerts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.alerts = []db.Alert{
		{ID: uuid.New(), AlertType: db.AlertTypeFire, Status: db.AlertStatusActive, LocationName: "Station 4"},
	}

	resp, err := http.Get(env.server.URL + "/api/alerts")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var alerts []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(alerts))
	}
	if alerts[0]["location_name"] != "Station 4" {
		t.Errorf("Expected joined location name, got %v", alerts[0]["location_name"])
	}
}

func TestGetAlert_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.server.URL + "/api/alerts/" + uuid.New().String())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestProfile_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.server.URL + "/api/profiles/me")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateLocation_AuthorityOnly(t *testing.T) {
	normalID := uuid.New()
	authorityID := uuid.New()
	sessions := &fakeSessions{profiles: map[string]*db.Profile{
		"normal-token":    {UserID: normalID, UserType: db.UserTypeNormal},
		"authority-token": {UserID: authorityID, UserType: db.UserTypeAuthority},
	}}
	env := newTestEnv(t, sessions)

	body := map[string]interface{}{
		"name":   "Station 9",
		"region": "East",
	}

	resp := postJSON(t, env.server.URL+"/api/locations", body, "normal-token")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for normal user, got %d", resp.StatusCode)
	}

	resp = postJSON(t, env.server.URL+"/api/locations", body, "authority-token")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 for authority user, got %d", resp.StatusCode)
	}

	if len(env.store.created) != 1 {
		t.Errorf("Expected one created location, got %d", len(env.store.created))
	}
	if len(env.feed.events) != 1 || env.feed.events[0] != "locations.insert" {
		t.Errorf("Expected locations.insert event, got %v", env.feed.events)
	}
}
