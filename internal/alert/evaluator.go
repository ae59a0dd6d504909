package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/firesense/fire-alert-service/internal/auth"
	"github.com/firesense/fire-alert-service/internal/config"
	"github.com/firesense/fire-alert-service/internal/db"
	"github.com/firesense/fire-alert-service/internal/repository"
	"github.com/firesense/fire-alert-service/internal/thingspeak"
)

var (
	// ErrLocationNotFound is returned when an evaluation targets an unknown location
	ErrLocationNotFound = errors.New("location not found")
	// ErrAlertNotFound is returned when an update targets an unknown alert
	ErrAlertNotFound = errors.New("alert not found")
	// ErrInvalidStatus is returned when an update carries a status outside the enumerated set
	ErrInvalidStatus = errors.New("invalid alert status")
)

// Store is the subset of repository operations the evaluator needs
type Store interface {
	GetLocation(ctx context.Context, id uuid.UUID) (*db.Location, error)
	InsertAlert(ctx context.Context, alert *db.Alert) error
	UpdateAlertStatus(ctx context.Context, id uuid.UUID, status string, resolvedAt *time.Time, resolvedBy *uuid.UUID) (*db.Alert, error)
}

// SensorGateway fetches the latest reading for a channel. A nil reading
// means no data, not a fault.
type SensorGateway interface {
	Latest(ctx context.Context, ch thingspeak.Channel) *thingspeak.Reading
}

// ChangeFeed publishes row change events for dashboard subscribers
type ChangeFeed interface {
	PublishChange(ctx context.Context, table, event string, row interface{}) error
}

// Outcome classifies the result of one evaluation
type Outcome string

const (
	// OutcomeCreated means a threshold was breached and an alert row was inserted
	OutcomeCreated Outcome = "created"
	// OutcomeNormal means a reading was obtained and no threshold was breached
	OutcomeNormal Outcome = "normal"
	// OutcomeNoData means no reading could be obtained; this is a success, not an error
	OutcomeNoData Outcome = "no_data"
)

// Result is the outcome of one evaluation. Alert is set for OutcomeCreated,
// Reading for OutcomeCreated and OutcomeNormal.
type Result struct {
	Outcome Outcome
	Alert   *db.Alert
	Reading *thingspeak.Reading
}

// Evaluator applies the threshold rule set to sensor readings and manages
// alert rows. It is stateless; every invocation is independent.
type Evaluator struct {
	store   Store
	gateway SensorGateway
	feed    ChangeFeed
	authn   *auth.Authenticator
	cfg     config.AlertingConfig
	logger  *zap.Logger
}

// NewEvaluator creates a new alert evaluator
func NewEvaluator(
	store Store,
	gateway SensorGateway,
	feed ChangeFeed,
	authn *auth.Authenticator,
	cfg config.AlertingConfig,
	logger *zap.Logger,
) *Evaluator {
	return &Evaluator{
		store:   store,
		gateway: gateway,
		feed:    feed,
		authn:   authn,
		cfg:     cfg,
		logger:  logger,
	}
}

// Evaluate loads a location, pulls its latest reading, and inserts one
// alert row if a threshold is breached. Repeated calls while a condition
// persists produce repeated rows; debouncing is the caller's concern.
func (e *Evaluator) Evaluate(ctx context.Context, locationID uuid.UUID) (Result, error) {
	location, err := e.store.GetLocation(ctx, locationID)
	if errors.Is(err, repository.ErrNotFound) {
		return Result{}, ErrLocationNotFound
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to load location: %w", err)
	}

	locLogger := e.logger.With(zap.String("location", location.Name))

	if !location.SensorEnabled() {
		locLogger.Info("location has no channel credentials, skipping fetch")
		return Result{Outcome: OutcomeNoData}, nil
	}

	reading := e.gateway.Latest(ctx, thingspeak.Channel{
		Name:      location.Name,
		ChannelID: location.ThingSpeakChannelID,
		ReadKey:   *location.ThingSpeakReadKey,
	})
	if reading == nil {
		locLogger.Info("no sensor data available")
		return Result{Outcome: OutcomeNoData}, nil
	}

	alertType, breached := e.classify(reading)
	if !breached {
		locLogger.Debug("sensors nominal",
			zap.Float64("temperature", reading.Temperature),
			zap.Float64("gas", reading.Gas),
			zap.String("flame", reading.Flame),
		)
		return Result{Outcome: OutcomeNormal, Reading: reading}, nil
	}

	sensorValues, err := json.Marshal(reading)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal reading: %w", err)
	}

	row := &db.Alert{
		LocationID:   location.ID,
		AlertType:    alertType,
		Severity:     db.SeverityCritical,
		Status:       db.AlertStatusActive,
		SensorValues: sensorValues,
		Timestamp:    time.Now(),
	}

	if err := e.store.InsertAlert(ctx, row); err != nil {
		return Result{}, fmt.Errorf("failed to insert alert: %w", err)
	}

	locLogger.Warn("threshold breach, alert created",
		zap.String("alert_id", row.ID.String()),
		zap.String("alert_type", alertType),
		zap.Float64("temperature", reading.Temperature),
		zap.Float64("gas", reading.Gas),
		zap.String("flame", reading.Flame),
	)

	// Publish after the insert so subscribers never see an event for a
	// row that was not written.
	if err := e.feed.PublishChange(ctx, "alerts", "insert", row); err != nil {
		locLogger.Error("failed to publish alert change",
			zap.Error(err),
			zap.String("alert_id", row.ID.String()),
		)
	}

	return Result{Outcome: OutcomeCreated, Alert: row, Reading: reading}, nil
}

// classify applies the decision table in fixed priority order. First match
// wins; at most one alert type per evaluation even if several thresholds
// are breached at once.
func (e *Evaluator) classify(r *thingspeak.Reading) (string, bool) {
	if r.Flame == e.cfg.FlameSentinel {
		return db.AlertTypeFire, true
	}
	if r.Gas > e.cfg.GasMax {
		return db.AlertTypeGasLeak, true
	}
	if r.Temperature > e.cfg.TemperatureMax {
		return db.AlertTypeTemperature, true
	}
	return "", false
}

// Update transitions an alert's status on behalf of an authenticated
// caller. Any non-active status stamps the resolution fields; moving back
// to active clears them, which supports reopening.
func (e *Evaluator) Update(ctx context.Context, alertID uuid.UUID, status, token string) (*db.Alert, error) {
	caller, err := e.authn.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	if !db.ValidAlertStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var resolvedAt *time.Time
	var resolvedBy *uuid.UUID
	if status != db.AlertStatusActive {
		now := time.Now()
		resolvedAt = &now
		resolvedBy = &caller.UserID
	}

	updated, err := e.store.UpdateAlertStatus(ctx, alertID, status, resolvedAt, resolvedBy)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}

	e.logger.Info("alert updated",
		zap.String("alert_id", alertID.String()),
		zap.String("status", status),
		zap.String("updated_by", caller.UserID.String()),
	)

	if err := e.feed.PublishChange(ctx, "alerts", "update", updated); err != nil {
		e.logger.Error("failed to publish alert change",
			zap.Error(err),
			zap.String("alert_id", alertID.String()),
		)
	}

	return updated, nil
}
