package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/firesense/fire-alert-service/internal/db"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// ErrAlreadyReviewed is returned when a review targets a request that has
// already been decided
var ErrAlreadyReviewed = errors.New("request already reviewed")

// Tx is an alias for pgx.Tx
type Tx = pgx.Tx

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const locationColumns = `id, name, region, latitude, longitude, thingspeak_channel_id, thingspeak_read_key, status, created_at`

func scanLocation(row pgx.Row) (*db.Location, error) {
	var loc db.Location
	err := row.Scan(
		&loc.ID,
		&loc.Name,
		&loc.Region,
		&loc.Latitude,
		&loc.Longitude,
		&loc.ThingSpeakChannelID,
		&loc.ThingSpeakReadKey,
		&loc.Status,
		&loc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// GetLocation retrieves a location by id
func (r *Repository) GetLocation(ctx context.Context, id uuid.UUID) (*db.Location, error) {
	query := `
		SELECT ` + locationColumns + `
		FROM locations
		WHERE id = $1
	`

	loc, err := scanLocation(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query location: %w", err)
	}
	return loc, nil
}

// ListLocations returns all locations ordered by name
func (r *Repository) ListLocations(ctx context.Context) ([]db.Location, error) {
	query := `
		SELECT ` + locationColumns + `
		FROM locations
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []db.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, *loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return locations, nil
}

// CreateLocation inserts a new location and fills in its generated fields
func (r *Repository) CreateLocation(ctx context.Context, loc *db.Location) error {
	query := `
		INSERT INTO locations (name, region, latitude, longitude, thingspeak_channel_id, thingspeak_read_key, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	now := time.Now()
	status := loc.Status
	if status == "" {
		status = db.LocationStatusNormal
	}
	err := r.pool.QueryRow(ctx, query,
		loc.Name,
		loc.Region,
		loc.Latitude,
		loc.Longitude,
		loc.ThingSpeakChannelID,
		loc.ThingSpeakReadKey,
		status,
		now,
	).Scan(&loc.ID, &loc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	loc.Status = status
	return nil
}

// DeleteLocation removes a location by id
func (r *Repository) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const alertColumns = `id, location_id, alert_type, severity, status, sensor_values, timestamp, resolved_at, resolved_by`

// InsertAlert inserts a new alert row and fills in its generated id
func (r *Repository) InsertAlert(ctx context.Context, alert *db.Alert) error {
	query := `
		INSERT INTO alerts (location_id, alert_type, severity, status, sensor_values, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		alert.LocationID,
		alert.AlertType,
		alert.Severity,
		alert.Status,
		alert.SensorValues,
		alert.Timestamp,
	).Scan(&alert.ID)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert retrieves an alert by id
func (r *Repository) GetAlert(ctx context.Context, id uuid.UUID) (*db.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE id = $1
	`

	var alert db.Alert
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&alert.ID,
		&alert.LocationID,
		&alert.AlertType,
		&alert.Severity,
		&alert.Status,
		&alert.SensorValues,
		&alert.Timestamp,
		&alert.ResolvedAt,
		&alert.ResolvedBy,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query alert: %w", err)
	}
	return &alert, nil
}

// ListAlerts returns all alerts newest first, with the location name joined
func (r *Repository) ListAlerts(ctx context.Context) ([]db.Alert, error) {
	query := `
		SELECT a.id, a.location_id, a.alert_type, a.severity, a.status, a.sensor_values,
		       a.timestamp, a.resolved_at, a.resolved_by, l.name
		FROM alerts a
		JOIN locations l ON l.id = a.location_id
		ORDER BY a.timestamp DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []db.Alert
	for rows.Next() {
		var alert db.Alert
		err := rows.Scan(
			&alert.ID,
			&alert.LocationID,
			&alert.AlertType,
			&alert.Severity,
			&alert.Status,
			&alert.SensorValues,
			&alert.Timestamp,
			&alert.ResolvedAt,
			&alert.ResolvedBy,
			&alert.LocationName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return alerts, nil
}

// UpdateAlertStatus sets an alert's status and resolution fields, returning
// the updated row
func (r *Repository) UpdateAlertStatus(ctx context.Context, id uuid.UUID, status string, resolvedAt *time.Time, resolvedBy *uuid.UUID) (*db.Alert, error) {
	query := `
		UPDATE alerts
		SET status = $2, resolved_at = $3, resolved_by = $4
		WHERE id = $1
		RETURNING ` + alertColumns + `
	`

	var alert db.Alert
	err := r.pool.QueryRow(ctx, query, id, status, resolvedAt, resolvedBy).Scan(
		&alert.ID,
		&alert.LocationID,
		&alert.AlertType,
		&alert.Severity,
		&alert.Status,
		&alert.SensorValues,
		&alert.Timestamp,
		&alert.ResolvedAt,
		&alert.ResolvedBy,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	return &alert, nil
}

const profileColumns = `id, user_id, full_name, phone, avatar_url, user_type, authority_name, fire_station, badge_number, department, created_at`

func scanProfile(row pgx.Row) (*db.Profile, error) {
	var p db.Profile
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.FullName,
		&p.Phone,
		&p.AvatarURL,
		&p.UserType,
		&p.AuthorityName,
		&p.FireStation,
		&p.BadgeNumber,
		&p.Department,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ResolveSession resolves an opaque session token to the profile of the
// user holding it. Expired or unknown tokens return ErrNotFound.
func (r *Repository) ResolveSession(ctx context.Context, token string) (*db.Profile, error) {
	query := `
		SELECT p.id, p.user_id, p.full_name, p.phone, p.avatar_url, p.user_type,
		       p.authority_name, p.fire_station, p.badge_number, p.department, p.created_at
		FROM sessions s
		JOIN profiles p ON p.user_id = s.user_id
		WHERE s.token = $1 AND s.expires_at > now()
	`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, token))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	return profile, nil
}

// GetProfileByUserID retrieves the profile for a user
func (r *Repository) GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*db.Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE user_id = $1
	`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, userID))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return profile, nil
}

// UpdateProfile updates the mutable fields of a user's profile
func (r *Repository) UpdateProfile(ctx context.Context, profile *db.Profile) error {
	query := `
		UPDATE profiles
		SET full_name = $2, phone = $3, avatar_url = $4, authority_name = $5,
		    fire_station = $6, badge_number = $7, department = $8
		WHERE user_id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		profile.UserID,
		profile.FullName,
		profile.Phone,
		profile.AvatarURL,
		profile.AuthorityName,
		profile.FireStation,
		profile.BadgeNumber,
		profile.Department,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const requestColumns = `id, user_id, location_name, region, latitude, longitude, thingspeak_channel_id, thingspeak_read_key, reason, status, created_at, reviewed_at, reviewed_by`

func scanRequest(row pgx.Row) (*db.LocationRequest, error) {
	var req db.LocationRequest
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.LocationName,
		&req.Region,
		&req.Latitude,
		&req.Longitude,
		&req.ThingSpeakChannelID,
		&req.ThingSpeakReadKey,
		&req.Reason,
		&req.Status,
		&req.CreatedAt,
		&req.ReviewedAt,
		&req.ReviewedBy,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateLocationRequest inserts a pending location request
func (r *Repository) CreateLocationRequest(ctx context.Context, req *db.LocationRequest) error {
	query := `
		INSERT INTO location_requests (user_id, location_name, region, latitude, longitude,
		                               thingspeak_channel_id, thingspeak_read_key, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	now := time.Now()
	err := r.pool.QueryRow(ctx, query,
		req.UserID,
		req.LocationName,
		req.Region,
		req.Latitude,
		req.Longitude,
		req.ThingSpeakChannelID,
		req.ThingSpeakReadKey,
		req.Reason,
		db.RequestStatusPending,
		now,
	).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create location request: %w", err)
	}
	req.Status = db.RequestStatusPending
	return nil
}

// ListLocationRequestsForUser returns a user's requests newest first
func (r *Repository) ListLocationRequestsForUser(ctx context.Context, userID uuid.UUID) ([]db.LocationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM location_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query location requests: %w", err)
	}
	defer rows.Close()

	var requests []db.LocationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location request: %w", err)
		}
		requests = append(requests, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return requests, nil
}

// GetLocationRequestTx retrieves a location request by id within a transaction
func (r *Repository) GetLocationRequestTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*db.LocationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM location_requests
		WHERE id = $1
		FOR UPDATE
	`

	req, err := scanRequest(tx.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query location request: %w", err)
	}
	return req, nil
}

// MarkRequestReviewedTx stamps a request's review outcome within a transaction
func (r *Repository) MarkRequestReviewedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, reviewedBy uuid.UUID) error {
	query := `
		UPDATE location_requests
		SET status = $2, reviewed_at = $3, reviewed_by = $4
		WHERE id = $1
	`

	_, err := tx.Exec(ctx, query, id, status, time.Now(), reviewedBy)
	if err != nil {
		return fmt.Errorf("failed to mark request reviewed: %w", err)
	}
	return nil
}

// ReviewLocationRequest applies a review outcome atomically: the request
// is stamped, and on approval the location row is created in the same
// transaction. Returns the reviewed request and, on approval, the new
// location.
func (r *Repository) ReviewLocationRequest(ctx context.Context, id uuid.UUID, approve bool, reviewer uuid.UUID) (*db.LocationRequest, *db.Location, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := r.GetLocationRequestTx(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if req.Status != db.RequestStatusPending {
		return nil, nil, ErrAlreadyReviewed
	}

	status := db.RequestStatusRejected
	if approve {
		status = db.RequestStatusApproved
	}

	if err := r.MarkRequestReviewedTx(ctx, tx, id, status, reviewer); err != nil {
		return nil, nil, err
	}

	var loc *db.Location
	if approve {
		loc = &db.Location{
			Name:                req.LocationName,
			Region:              req.Region,
			Latitude:            req.Latitude,
			Longitude:           req.Longitude,
			ThingSpeakChannelID: req.ThingSpeakChannelID,
			ThingSpeakReadKey:   req.ThingSpeakReadKey,
		}
		if err := r.CreateLocationTx(ctx, tx, loc); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	now := time.Now()
	req.Status = status
	req.ReviewedAt = &now
	req.ReviewedBy = &reviewer

	return req, loc, nil
}

// CreateLocationTx inserts a location within a transaction, used when an
// approved request is promoted to a live location
func (r *Repository) CreateLocationTx(ctx context.Context, tx pgx.Tx, loc *db.Location) error {
	query := `
		INSERT INTO locations (name, region, latitude, longitude, thingspeak_channel_id, thingspeak_read_key, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := tx.QueryRow(ctx, query,
		loc.Name,
		loc.Region,
		loc.Latitude,
		loc.Longitude,
		loc.ThingSpeakChannelID,
		loc.ThingSpeakReadKey,
		db.LocationStatusNormal,
		time.Now(),
	).Scan(&loc.ID, &loc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	loc.Status = db.LocationStatusNormal
	return nil
}
