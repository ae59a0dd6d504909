package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/firesense/fire-alert-service/internal/alert"
	"github.com/firesense/fire-alert-service/internal/auth"
	"github.com/firesense/fire-alert-service/internal/db"
	"github.com/firesense/fire-alert-service/internal/thingspeak"
)

// Evaluator is the alert evaluation surface the handlers call
type Evaluator interface {
	Evaluate(ctx context.Context, locationID uuid.UUID) (alert.Result, error)
	Update(ctx context.Context, alertID uuid.UUID, status, token string) (*db.Alert, error)
}

// Gateway is the sensor data surface the handlers call
type Gateway interface {
	Latest(ctx context.Context, ch thingspeak.Channel) *thingspeak.Reading
	History(ctx context.Context, ch thingspeak.Channel, results int) []thingspeak.Reading
}

// Store is the subset of repository operations the CRUD handlers need
type Store interface {
	ListLocations(ctx context.Context) ([]db.Location, error)
	GetLocation(ctx context.Context, id uuid.UUID) (*db.Location, error)
	CreateLocation(ctx context.Context, loc *db.Location) error
	DeleteLocation(ctx context.Context, id uuid.UUID) error
	ListAlerts(ctx context.Context) ([]db.Alert, error)
	GetAlert(ctx context.Context, id uuid.UUID) (*db.Alert, error)
	GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*db.Profile, error)
	UpdateProfile(ctx context.Context, profile *db.Profile) error
	CreateLocationRequest(ctx context.Context, req *db.LocationRequest) error
	ListLocationRequestsForUser(ctx context.Context, userID uuid.UUID) ([]db.LocationRequest, error)
	ReviewLocationRequest(ctx context.Context, id uuid.UUID, approve bool, reviewer uuid.UUID) (*db.LocationRequest, *db.Location, error)
}

// ChangeFeed publishes row change events for dashboard subscribers
type ChangeFeed interface {
	PublishChange(ctx context.Context, table, event string, row interface{}) error
}

// Handler carries the dependencies of all HTTP handlers
type Handler struct {
	evaluator Evaluator
	gateway   Gateway
	store     Store
	feed      ChangeFeed
	authn     *auth.Authenticator
	logger    *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	evaluator Evaluator,
	gateway Gateway,
	store Store,
	feed ChangeFeed,
	authn *auth.Authenticator,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		evaluator: evaluator,
		gateway:   gateway,
		store:     store,
		feed:      feed,
		authn:     authn,
		logger:    logger,
	}
}

type alertManagerRequest struct {
	Action     string `json:"action"`
	LocationID string `json:"locationId"`
	AlertID    string `json:"alertId"`
	Status     string `json:"status"`
}

// handleAlertManager serves the alert-manager function endpoint. All
// failures are reported as a 400 with the uniform error envelope.
func (h *Handler) handleAlertManager(w http.ResponseWriter, r *http.Request) {
	var req alertManagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		failJSON(w, "invalid request body")
		return
	}

	h.logger.Info("alert-manager request",
		zap.String("action", req.Action),
		zap.String("location_id", req.LocationID),
		zap.String("alert_id", req.AlertID),
	)

	switch req.Action {
	case "evaluate":
		h.evaluate(w, r, req)
	case "update":
		h.update(w, r, req)
	default:
		failJSON(w, "Invalid action")
	}
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request, req alertManagerRequest) {
	locationID, err := uuid.Parse(req.LocationID)
	if err != nil {
		failJSON(w, "invalid locationId")
		return
	}

	result, err := h.evaluator.Evaluate(r.Context(), locationID)
	if errors.Is(err, alert.ErrLocationNotFound) {
		failJSON(w, "Location not found")
		return
	}
	if err != nil {
		h.logger.Error("evaluation failed", zap.Error(err))
		failJSON(w, "evaluation failed")
		return
	}

	switch result.Outcome {
	case alert.OutcomeCreated:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"alert":   result.Alert,
			"created": true,
		})
	case alert.OutcomeNormal:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Sensors nominal",
			"sensors": result.Reading,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "No sensor data available",
		})
	}
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, req alertManagerRequest) {
	alertID, err := uuid.Parse(req.AlertID)
	if err != nil {
		failJSON(w, "invalid alertId")
		return
	}

	token := auth.BearerToken(r.Header.Get("Authorization"))

	_, err = h.evaluator.Update(r.Context(), alertID, req.Status, token)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		failJSON(w, "Unauthorized")
	case errors.Is(err, alert.ErrInvalidStatus):
		failJSON(w, "invalid status: "+req.Status)
	case errors.Is(err, alert.ErrAlertNotFound):
		failJSON(w, "Alert not found")
	case err != nil:
		h.logger.Error("alert update failed", zap.Error(err))
		failJSON(w, "update failed")
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Alert updated successfully",
		})
	}
}

type thingspeakRequest struct {
	Action   string             `json:"action"`
	Location thingspeak.Channel `json:"location"`
	Results  int                `json:"results"`
}

// handleThingSpeak serves the thingspeak-service function endpoint
func (h *Handler) handleThingSpeak(w http.ResponseWriter, r *http.Request) {
	var req thingspeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		failJSON(w, "invalid request body")
		return
	}

	if req.Location.ChannelID == "" || req.Location.ReadKey == "" || req.Location.Name == "" {
		failJSON(w, "location must include thingspeak_channel_id, thingspeak_read_key and name")
		return
	}

	h.logger.Info("thingspeak-service request",
		zap.String("action", req.Action),
		zap.String("location", req.Location.Name),
	)

	switch req.Action {
	case "latest":
		reading := h.gateway.Latest(r.Context(), req.Location)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    reading,
		})
	case "history":
		readings := h.gateway.History(r.Context(), req.Location, req.Results)
		if readings == nil {
			readings = []thingspeak.Reading{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    readings,
		})
	default:
		failJSON(w, `Invalid action. Use "latest" or "history"`)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// failJSON writes the uniform function-endpoint failure envelope
func failJSON(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// errorJSON writes a plain error body for the table CRUD surface
func errorJSON(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]interface{}{"error": message})
}
