package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-events-api/internal/dto"
	"github.com/noah-isme/school-events-api/internal/models"
	appErrors "github.com/noah-isme/school-events-api/pkg/errors"
)

type eventStore interface {
	Create(ctx context.Context, event *models.AcademicEvent, actorID string) (*models.AcademicEvent, error)
	FindByID(ctx context.Context, id string) (*models.AcademicEvent, error)
	Update(ctx context.Context, id, actorID string, mutate func(*models.AcademicEvent) error) (*models.AcademicEvent, error)
	Delete(ctx context.Context, id, actorID string) (*models.AcademicEvent, error)
	List(ctx context.Context) ([]models.AcademicEvent, error)
}

type eventMetrics interface {
	RecordEventMutation(action string)
}

// EventService gates academic event operations by role and runs validation and persistence.
type EventService struct {
	store     eventStore
	validator *EventValidator
	metrics   eventMetrics
	logger    *zap.Logger
	now       func() time.Time
	location  *time.Location
}

// EventServiceConfig carries the optional collaborators of EventService.
type EventServiceConfig struct {
	Metrics  eventMetrics
	Now      func() time.Time
	Location *time.Location
}

// NewEventService constructs an EventService.
func NewEventService(store eventStore, validator *EventValidator, logger *zap.Logger, cfg EventServiceConfig) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if validator == nil {
		validator = NewEventValidator(nil, nil, cfg.Now, cfg.Location)
	}
	return &EventService{
		store:     store,
		validator: validator,
		metrics:   cfg.Metrics,
		logger:    logger,
		now:       cfg.Now,
		location:  cfg.Location,
	}
}

// Now returns the current time in the configured zone.
func (s *EventService) Now() time.Time {
	return s.now().In(s.location)
}

// Get returns a single event to any authenticated principal.
func (s *EventService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.AcademicEvent, error) {
	if err := requireAuthenticated(claims); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, missingID()
	}
	event, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateStoreErr(err, "failed to load event")
	}
	return event, nil
}

// List returns every event to any authenticated principal.
func (s *EventService) List(ctx context.Context, claims *models.JWTClaims) ([]models.AcademicEvent, error) {
	if err := requireAuthenticated(claims); err != nil {
		return nil, err
	}
	events, err := s.store.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

// ListByRole returns the events visible to the caller's role.
func (s *EventService) ListByRole(ctx context.Context, claims *models.JWTClaims) ([]models.AcademicEvent, models.UserRole, error) {
	if err := requireAuthenticated(claims); err != nil {
		return nil, models.RoleNone, err
	}
	role := ResolveRole(claims)
	if role == models.RoleNone {
		return nil, role, appErrors.Clone(appErrors.ErrRoleUnresolved, "could not determine user role")
	}
	events, err := s.store.List(ctx)
	if err != nil {
		return nil, role, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	visible, err := FilterVisible(role, events)
	if err != nil {
		return nil, role, err
	}
	return visible, role, nil
}

// Create validates the payload and stores a new event. Administrators only.
func (s *EventService) Create(ctx context.Context, claims *models.JWTClaims, payload dto.EventPayload) (*models.AcademicEvent, error) {
	if err := requireAdministrator(claims, "only administrators can modify events"); err != nil {
		return nil, err
	}

	audience, audienceErr := dto.DecodeTargetAudience(payload.TargetAudience)
	draft := EventDraft{}
	draft.merge(payload, audience)

	report, err := s.validator.Validate(ctx, draft, ValidateOptions{
		CheckPastDate:    true,
		CheckResponsible: true,
		AudienceErr:      audienceErr,
		FieldErrors:      payload.FieldErrors,
	})
	if err != nil {
		return nil, err
	}
	if err := report.Err(); err != nil {
		return nil, err
	}

	event := &models.AcademicEvent{}
	draft.applyTo(event)
	created, err := s.store.Create(ctx, event, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}

	s.recordMutation("create")
	s.logger.Info("event created", zap.String("event_id", created.ID), zap.String("actor_id", claims.UserID))
	return created, nil
}

// Update merges the supplied fields into the stored event, revalidates the result and saves
// it in one transaction. Administrators only.
func (s *EventService) Update(ctx context.Context, claims *models.JWTClaims, payload dto.EventPayload) (*models.AcademicEvent, error) {
	if err := requireAdministrator(claims, "only administrators can modify events"); err != nil {
		return nil, err
	}
	if payload.ID == nil || strings.TrimSpace(*payload.ID) == "" {
		if len(payload.FieldErrors["id"]) > 0 {
			return nil, appErrors.Validation("id is required", map[string][]string{"id": {"id must be a string"}})
		}
		return nil, missingID()
	}
	id := strings.TrimSpace(*payload.ID)

	audience, audienceErr := dto.DecodeTargetAudience(payload.TargetAudience)
	updated, err := s.store.Update(ctx, id, claims.UserID, func(current *models.AcademicEvent) error {
		draft := draftFromEvent(*current)
		draft.merge(payload, audience)

		report, err := s.validator.Validate(ctx, draft, ValidateOptions{
			CheckPastDate:    payload.Date != nil,
			CheckResponsible: payload.ResponsibleUserID != nil,
			AudienceErr:      audienceErr,
			FieldErrors:      payload.FieldErrors,
		})
		if err != nil {
			return err
		}
		if err := report.Err(); err != nil {
			return err
		}
		draft.applyTo(current)
		return nil
	})
	if err != nil {
		return nil, s.translateStoreErr(err, "failed to update event")
	}

	s.recordMutation("update")
	s.logger.Info("event updated", zap.String("event_id", updated.ID), zap.String("actor_id", claims.UserID))
	return updated, nil
}

// Delete removes an event permanently. Administrators only.
func (s *EventService) Delete(ctx context.Context, claims *models.JWTClaims, id string) (*models.AcademicEvent, error) {
	if err := requireAdministrator(claims, "only administrators can modify events"); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, missingID()
	}
	deleted, err := s.store.Delete(ctx, id, claims.UserID)
	if err != nil {
		return nil, s.translateStoreErr(err, "failed to delete event")
	}

	s.recordMutation("delete")
	s.logger.Info("event deleted", zap.String("event_id", deleted.ID), zap.String("actor_id", claims.UserID))
	return deleted, nil
}

func (s *EventService) recordMutation(action string) {
	if s.metrics != nil {
		s.metrics.RecordEventMutation(action)
	}
}

func (s *EventService) translateStoreErr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrEventNotFound, "event not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func requireAuthenticated(claims *models.JWTClaims) error {
	if claims == nil || claims.UserID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	return nil
}

func requireAdministrator(claims *models.JWTClaims, message string) error {
	if err := requireAuthenticated(claims); err != nil {
		return err
	}
	if ResolveRole(claims) != models.RoleAdministrator {
		return appErrors.Clone(appErrors.ErrForbidden, message)
	}
	return nil
}

func missingID() error {
	return appErrors.Validation("id is required", map[string][]string{"id": {"id is required"}})
}
