package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/firesense/fire-alert-service/internal/db"
	"github.com/firesense/fire-alert-service/internal/repository"
)

// Table CRUD surface. This replaces the managed backend the dashboard
// previously talked to directly.

func (h *Handler) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.store.ListLocations(r.Context())
	if err != nil {
		h.logger.Error("failed to list locations", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	if locations == nil {
		locations = []db.Location{}
	}
	writeJSON(w, http.StatusOK, locations)
}

func (h *Handler) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid location id")
		return
	}

	location, err := h.store.GetLocation(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		errorJSON(w, http.StatusNotFound, "location not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get location", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to get location")
		return
	}
	writeJSON(w, http.StatusOK, location)
}

type createLocationRequest struct {
	Name                string  `json:"name"`
	Region              string  `json:"region"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	ThingSpeakChannelID string  `json:"thingspeak_channel_id"`
	ThingSpeakReadKey   *string `json:"thingspeak_read_key"`
}

func (h *Handler) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var req createLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Region == "" {
		errorJSON(w, http.StatusBadRequest, "name and region are required")
		return
	}

	location := &db.Location{
		Name:                req.Name,
		Region:              req.Region,
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		ThingSpeakChannelID: req.ThingSpeakChannelID,
		ThingSpeakReadKey:   req.ThingSpeakReadKey,
	}
	if err := h.store.CreateLocation(r.Context(), location); err != nil {
		h.logger.Error("failed to create location", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to create location")
		return
	}

	if err := h.feed.PublishChange(r.Context(), "locations", "insert", location); err != nil {
		h.logger.Error("failed to publish location change",
			zap.Error(err),
			zap.String("location_id", location.ID.String()),
		)
	}

	writeJSON(w, http.StatusCreated, location)
}

func (h *Handler) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid location id")
		return
	}

	err = h.store.DeleteLocation(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		errorJSON(w, http.StatusNotFound, "location not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete location", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to delete location")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.store.ListAlerts(r.Context())
	if err != nil {
		h.logger.Error("failed to list alerts", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []db.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	alert, err := h.store.GetAlert(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		errorJSON(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get alert", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to get alert")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	caller := profileFrom(r.Context())

	profile, err := h.store.GetProfileByUserID(r.Context(), caller.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		errorJSON(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get profile", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	FullName      string  `json:"full_name"`
	Phone         *string `json:"phone"`
	AvatarURL     *string `json:"avatar_url"`
	AuthorityName *string `json:"authority_name"`
	FireStation   *string `json:"fire_station"`
	BadgeNumber   *string `json:"badge_number"`
	Department    *string `json:"department"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller := profileFrom(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile := &db.Profile{
		UserID:        caller.UserID,
		FullName:      req.FullName,
		Phone:         req.Phone,
		AvatarURL:     req.AvatarURL,
		AuthorityName: req.AuthorityName,
		FireStation:   req.FireStation,
		BadgeNumber:   req.BadgeNumber,
		Department:    req.Department,
	}
	if err := h.store.UpdateProfile(r.Context(), profile); err != nil {
		h.logger.Error("failed to update profile", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	updated, err := h.store.GetProfileByUserID(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("failed to reload profile", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to reload profile")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleListLocationRequests(w http.ResponseWriter, r *http.Request) {
	caller := profileFrom(r.Context())

	requests, err := h.store.ListLocationRequestsForUser(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("failed to list location requests", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to list location requests")
		return
	}
	if requests == nil {
		requests = []db.LocationRequest{}
	}
	writeJSON(w, http.StatusOK, requests)
}

type createLocationRequestRequest struct {
	LocationName        string  `json:"location_name"`
	Region              string  `json:"region"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	ThingSpeakChannelID string  `json:"thingspeak_channel_id"`
	ThingSpeakReadKey   *string `json:"thingspeak_read_key"`
	Reason              string  `json:"reason"`
}

func (h *Handler) handleCreateLocationRequest(w http.ResponseWriter, r *http.Request) {
	caller := profileFrom(r.Context())

	var req createLocationRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LocationName == "" || req.Region == "" {
		errorJSON(w, http.StatusBadRequest, "location_name and region are required")
		return
	}

	request := &db.LocationRequest{
		UserID:              caller.UserID,
		LocationName:        req.LocationName,
		Region:              req.Region,
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		ThingSpeakChannelID: req.ThingSpeakChannelID,
		ThingSpeakReadKey:   req.ThingSpeakReadKey,
		Reason:              req.Reason,
	}
	if err := h.store.CreateLocationRequest(r.Context(), request); err != nil {
		h.logger.Error("failed to create location request", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to create location request")
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

type reviewRequest struct {
	Approve bool `json:"approve"`
}

func (h *Handler) handleReviewLocationRequest(w http.ResponseWriter, r *http.Request) {
	caller := profileFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reviewed, location, err := h.store.ReviewLocationRequest(r.Context(), id, req.Approve, caller.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		errorJSON(w, http.StatusNotFound, "location request not found")
		return
	case errors.Is(err, repository.ErrAlreadyReviewed):
		errorJSON(w, http.StatusConflict, "location request already reviewed")
		return
	case err != nil:
		h.logger.Error("failed to review location request", zap.Error(err))
		errorJSON(w, http.StatusInternalServerError, "failed to review location request")
		return
	}

	if location != nil {
		if err := h.feed.PublishChange(r.Context(), "locations", "insert", location); err != nil {
			h.logger.Error("failed to publish location change",
				zap.Error(err),
				zap.String("location_id", location.ID.String()),
			)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request":  reviewed,
		"location": location,
	})
}
