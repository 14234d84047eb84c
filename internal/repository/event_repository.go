package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-events-api/internal/models"
)

const eventSelect = `SELECT e.id, e.name, e.event_type, e.event_date, e.start_time, e.end_time, e.location, e.target_audience, e.education_program, e.responsible_user_id, e.short_description, e.capacity, e.created_at, e.updated_at, u.first_name AS responsible_first_name, u.last_name AS responsible_last_name, u.email AS responsible_email FROM academic_events e JOIN users u ON u.id = e.responsible_user_id`

type eventRow struct {
	models.AcademicEvent
	ResponsibleFirstName string `db:"responsible_first_name"`
	ResponsibleLastName  string `db:"responsible_last_name"`
	ResponsibleEmail     string `db:"responsible_email"`
}

func (r eventRow) toModel() models.AcademicEvent {
	event := r.AcademicEvent
	owner := models.User{ID: event.ResponsibleUserID, FirstName: r.ResponsibleFirstName, LastName: r.ResponsibleLastName}
	event.Responsible = &models.ResponsibleUser{
		ID:        event.ResponsibleUserID,
		FirstName: r.ResponsibleFirstName,
		LastName:  r.ResponsibleLastName,
		Email:     r.ResponsibleEmail,
		FullName:  owner.FullName(),
	}
	return event
}

// EventRepository persists academic events. Every mutation commits together with its audit row.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// FindByID returns an event with its responsible user. sql.ErrNoRows is returned untouched.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.AcademicEvent, error) {
	return findEvent(ctx, r.db, id)
}

// List returns every event, newest scheduled first.
func (r *EventRepository) List(ctx context.Context) ([]models.AcademicEvent, error) {
	query := eventSelect + ` ORDER BY e.event_date DESC, e.start_time DESC`
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]models.AcademicEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toModel())
	}
	return events, nil
}

// Create inserts the event and returns the stored row.
func (r *EventRepository) Create(ctx context.Context, event *models.AcademicEvent, actorID string) (created *models.AcademicEvent, err error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create event tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO academic_events (id, name, event_type, event_date, start_time, end_time, location, target_audience, education_program, responsible_user_id, short_description, capacity, created_at, updated_at) VALUES (:id, :name, :event_type, :event_date, :start_time, :end_time, :location, :target_audience, :education_program, :responsible_user_id, :short_description, :capacity, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	if err = r.audit(ctx, tx, actorID, models.AuditActionEventCreate, event.ID, nil, event); err != nil {
		return nil, err
	}
	if created, err = findEvent(ctx, tx, event.ID); err != nil {
		return nil, fmt.Errorf("reload created event: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create event tx: %w", err)
	}
	return created, nil
}

// Update loads the event, lets mutate change it and saves the result in one transaction.
// A mutate error aborts the transaction and is returned unchanged. Concurrent updates of the
// same row are last-write-wins.
func (r *EventRepository) Update(ctx context.Context, id, actorID string, mutate func(*models.AcademicEvent) error) (updated *models.AcademicEvent, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update event tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := findEvent(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	before := *current

	if err = mutate(current); err != nil {
		return nil, err
	}
	current.ID = before.ID
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = time.Now().UTC()
	if current.UpdatedAt.Before(current.CreatedAt) {
		current.UpdatedAt = current.CreatedAt
	}

	const query = `UPDATE academic_events SET name = :name, event_type = :event_type, event_date = :event_date, start_time = :start_time, end_time = :end_time, location = :location, target_audience = :target_audience, education_program = :education_program, responsible_user_id = :responsible_user_id, short_description = :short_description, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, current); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if err = r.audit(ctx, tx, actorID, models.AuditActionEventUpdate, id, &before, current); err != nil {
		return nil, err
	}
	if updated, err = findEvent(ctx, tx, id); err != nil {
		return nil, fmt.Errorf("reload updated event: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update event tx: %w", err)
	}
	return updated, nil
}

// Delete removes the event permanently and returns what was deleted.
func (r *EventRepository) Delete(ctx context.Context, id, actorID string) (deleted *models.AcademicEvent, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete event tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if deleted, err = findEvent(ctx, tx, id); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM academic_events WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete event: %w", err)
	}
	if err = r.audit(ctx, tx, actorID, models.AuditActionEventDelete, id, deleted, nil); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete event tx: %w", err)
	}
	return deleted, nil
}

func (r *EventRepository) audit(ctx context.Context, tx *sqlx.Tx, actorID, action, eventID string, oldValue, newValue interface{}) error {
	log, err := newAudit(actorID, action, models.AuditResourceEvent, eventID, oldValue, newValue)
	if err != nil {
		return err
	}
	return writeAudit(ctx, tx, log)
}

func findEvent(ctx context.Context, q sqlx.QueryerContext, id string) (*models.AcademicEvent, error) {
	query := eventSelect + ` WHERE e.id = $1 LIMIT 1`
	var row eventRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		err = normalizeLookupErr(err)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find event by id: %w", err)
	}
	event := row.toModel()
	return &event, nil
}
