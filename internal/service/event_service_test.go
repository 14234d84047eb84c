package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-events-api/internal/dto"
	"github.com/noah-isme/school-events-api/internal/models"
	appErrors "github.com/noah-isme/school-events-api/pkg/errors"
)

type memoryEventStore struct {
	events  map[string]models.AcademicEvent
	nextID  int
	listErr error
}

func newMemoryEventStore() *memoryEventStore {
	return &memoryEventStore{events: map[string]models.AcademicEvent{}}
}

func (m *memoryEventStore) Create(ctx context.Context, event *models.AcademicEvent, actorID string) (*models.AcademicEvent, error) {
	m.nextID++
	event.ID = "evt-" + strconv.Itoa(m.nextID)
	event.CreatedAt = fixedNow
	event.UpdatedAt = fixedNow
	m.events[event.ID] = *event
	stored := m.events[event.ID]
	return &stored, nil
}

func (m *memoryEventStore) FindByID(ctx context.Context, id string) (*models.AcademicEvent, error) {
	event, ok := m.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &event, nil
}

func (m *memoryEventStore) Update(ctx context.Context, id, actorID string, mutate func(*models.AcademicEvent) error) (*models.AcademicEvent, error) {
	current, ok := m.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	working := current
	working.TargetAudience = append(models.AudienceList(nil), current.TargetAudience...)
	if err := mutate(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = fixedNow.Add(time.Minute)
	m.events[id] = working
	return &working, nil
}

func (m *memoryEventStore) Delete(ctx context.Context, id, actorID string) (*models.AcademicEvent, error) {
	event, ok := m.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	delete(m.events, id)
	return &event, nil
}

func (m *memoryEventStore) List(ctx context.Context) ([]models.AcademicEvent, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.AcademicEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	SortEvents(out)
	return out, nil
}

type countingMetrics struct{ actions []string }

func (c *countingMetrics) RecordEventMutation(action string) { c.actions = append(c.actions, action) }

func newTestEventService(store eventStore, metrics eventMetrics) *EventService {
	return NewEventService(store, newTestValidator(), nil, EventServiceConfig{
		Metrics:  metrics,
		Now:      func() time.Time { return fixedNow },
		Location: time.UTC,
	})
}

var (
	adminClaims   = &models.JWTClaims{UserID: responsibleID, Role: models.RoleAdministrator}
	teacherClaims = &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	studentClaims = &models.JWTClaims{UserID: "student-1", Role: "alumno"}
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func tallerPayload() dto.EventPayload {
	return dto.EventPayload{
		Name:              strPtr("Taller IA"),
		EventType:         strPtr("Workshop"),
		Date:              strPtr("2030-06-16"),
		StartTime:         strPtr("10:00"),
		EndTime:           strPtr("12:00"),
		Location:          strPtr("Auditorio 1"),
		TargetAudience:    json.RawMessage(`["Students"]`),
		EducationProgram:  strPtr(models.ProgramComputerScience),
		ResponsibleUserID: strPtr(responsibleID),
		ShortDescription:  strPtr("Introduccion a IA"),
		Capacity:          intPtr(50),
	}
}

func TestCreateTallerScenario(t *testing.T) {
	store := newMemoryEventStore()
	metrics := &countingMetrics{}
	svc := newTestEventService(store, metrics)

	created, err := svc.Create(context.Background(), adminClaims, tallerPayload())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.EventTypeWorkshop, created.EventType)
	assert.Equal(t, "10:00:00", created.StartTime.String())
	assert.Equal(t, []string{"create"}, metrics.actions)

	payload := tallerPayload()
	payload.EducationProgram = nil
	_, err = svc.Create(context.Background(), adminClaims, payload)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "education_program")
	assert.Len(t, store.events, 1)
}

func TestCreateAcceptsEncodedAudienceAndAliases(t *testing.T) {
	svc := newTestEventService(newMemoryEventStore(), nil)
	payload := tallerPayload()
	payload.EventType = strPtr("Taller")
	payload.TargetAudience = json.RawMessage(`"[\"Público general\", \"Estudiantes\", \"Estudiantes\"]"`)

	created, err := svc.Create(context.Background(), adminClaims, payload)
	require.NoError(t, err)
	assert.Equal(t, models.AudienceList{models.AudienceStudents, models.AudienceGeneralPublic}, created.TargetAudience)
	assert.Equal(t, models.EventTypeWorkshop, created.EventType)
}

func TestCreateMalformedAudienceIsFieldError(t *testing.T) {
	svc := newTestEventService(newMemoryEventStore(), nil)
	payload := tallerPayload()
	payload.TargetAudience = json.RawMessage(`"Students"`)
	payload.Capacity = intPtr(0)

	_, err := svc.Create(context.Background(), adminClaims, payload)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, []string{"capacity", "target_audience"}, appErr.FieldNames())
}

func TestCreateReportsTypeErrorsWithOtherViolations(t *testing.T) {
	svc := newTestEventService(newMemoryEventStore(), nil)
	var payload dto.EventPayload
	body := `{"name":"Taller IA","event_type":"Workshop","date":"2000-01-01","start_time":"10:00","end_time":"12:00",` +
		`"location":"Auditorio 1","target_audience":["Teachers"],"responsible_user_id":"` + responsibleID + `",` +
		`"short_description":"Introduccion a IA","capacity":"abc"}`
	require.NoError(t, json.Unmarshal([]byte(body), &payload))

	_, err := svc.Create(context.Background(), adminClaims, payload)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, []string{"capacity", "date"}, appErr.FieldNames())
	assert.Equal(t, []string{"capacity must be a valid integer"}, appErr.Fields["capacity"])
}

func TestUpdateReportsTypeErrorOnSuppliedField(t *testing.T) {
	store := newMemoryEventStore()
	svc := newTestEventService(store, nil)
	created, err := svc.Create(context.Background(), adminClaims, tallerPayload())
	require.NoError(t, err)

	var payload dto.EventPayload
	require.NoError(t, json.Unmarshal([]byte(`{"id":"`+created.ID+`","capacity":"many"}`), &payload))
	_, err = svc.Update(context.Background(), adminClaims, payload)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, []string{"capacity"}, appErr.FieldNames())
	assert.Equal(t, 50, store.events[created.ID].Capacity)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"`+created.ID+`","capacity":" 80 "}`), &payload))
	updated, err := svc.Update(context.Background(), adminClaims, payload)
	require.NoError(t, err)
	assert.Equal(t, 80, updated.Capacity)
}

func TestMutationsRequireAdministrator(t *testing.T) {
	store := newMemoryEventStore()
	svc := newTestEventService(store, nil)
	created, err := svc.Create(context.Background(), adminClaims, tallerPayload())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), teacherClaims, tallerPayload())
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	update := dto.EventPayload{ID: strPtr(created.ID), Capacity: intPtr(10)}
	_, err = svc.Update(context.Background(), studentClaims, update)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Delete(context.Background(), &models.JWTClaims{UserID: "x"}, created.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Delete(context.Background(), nil, created.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
	assert.Len(t, store.events, 1)
}

func TestUpdateOnlyCapacityKeepsOtherFields(t *testing.T) {
	store := newMemoryEventStore()
	svc := newTestEventService(store, nil)
	created, err := svc.Create(context.Background(), adminClaims, tallerPayload())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), adminClaims, dto.EventPayload{ID: strPtr(created.ID), Capacity: intPtr(75)})
	require.NoError(t, err)
	assert.Equal(t, 75, updated.Capacity)

	expected := *created
	expected.Capacity = 75
	expected.UpdatedAt = updated.UpdatedAt
	assert.Equal(t, expected, *updated)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
}

func TestUpdateRemovingStudentsMakesProgramOptional(t *testing.T) {
	store := newMemoryEventStore()
	svc := newTestEventService(store, nil)
	created, err := svc.Create(context.Background(), adminClaims, tallerPayload())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), adminClaims, dto.EventPayload{ID: strPtr(created.ID), EducationProgram: strPtr("")})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "education_program")

	updated, err := svc.Update(context.Background(), adminClaims, dto.EventPayload{
		ID:               strPtr(created.ID),
		TargetAudience:   json.RawMessage(`["Teachers"]`),
		EducationProgram: strPtr(""),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.EducationProgram)
	assert.Equal(t, models.AudienceList{models.AudienceTeachers}, updated.TargetAudience)
}

func TestUpdateRejectsInvalidMergeAndKeepsStoredEvent(t *testing.T) {
	store := newMemoryEventStore()
	svc := newTestEventService(store, nil)
	created, err := svc.Create(context.Background(), adminClaims, tallerPayload())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), adminClaims, dto.EventPayload{ID: strPtr(created.ID), EndTime: strPtr("09:00")})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "end_time")
	assert.Equal(t, *created, store.events[created.ID])
}

func TestUpdateSkipsPastDateCheckWhenDateUntouched(t *testing.T) {
	store := newMemoryEventStore()
	svc := newTestEventService(store, nil)
	created, err := svc.Create(context.Background(), adminClaims, tallerPayload())
	require.NoError(t, err)

	past := store.events[created.ID]
	past.Date = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	store.events[created.ID] = past

	_, err = svc.Update(context.Background(), adminClaims, dto.EventPayload{ID: strPtr(created.ID), Capacity: intPtr(60)})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), adminClaims, dto.EventPayload{ID: strPtr(created.ID), Date: strPtr("01/02/2030")})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "date")
}

func TestUpdateAndDeleteMissingEvent(t *testing.T) {
	svc := newTestEventService(newMemoryEventStore(), nil)

	_, err := svc.Update(context.Background(), adminClaims, dto.EventPayload{ID: strPtr("missing"), Capacity: intPtr(5)})
	assert.True(t, appErrors.Is(err, appErrors.ErrEventNotFound))

	_, err = svc.Update(context.Background(), adminClaims, dto.EventPayload{Capacity: intPtr(5)})
	assert.Contains(t, appErrors.FromError(err).Fields, "id")

	_, err = svc.Delete(context.Background(), adminClaims, "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrEventNotFound))
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	store := newMemoryEventStore()
	metrics := &countingMetrics{}
	svc := newTestEventService(store, metrics)
	created, err := svc.Create(context.Background(), adminClaims, tallerPayload())
	require.NoError(t, err)

	deleted, err := svc.Delete(context.Background(), adminClaims, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Taller IA", deleted.Name)

	_, err = svc.Get(context.Background(), studentClaims, created.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrEventNotFound))
	assert.Equal(t, []string{"create", "delete"}, metrics.actions)
}

func TestGetIsIdempotent(t *testing.T) {
	store := newMemoryEventStore()
	svc := newTestEventService(store, nil)
	created, err := svc.Create(context.Background(), adminClaims, tallerPayload())
	require.NoError(t, err)

	first, err := svc.Get(context.Background(), teacherClaims, created.ID)
	require.NoError(t, err)
	second, err := svc.Get(context.Background(), teacherClaims, created.ID)
	require.NoError(t, err)

	a, _ := json.Marshal(dto.NewEventResponse(*first, svc.Now()))
	b, _ := json.Marshal(dto.NewEventResponse(*second, svc.Now()))
	assert.Equal(t, string(a), string(b))

	_, err = svc.Get(context.Background(), teacherClaims, " ")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestListByRole(t *testing.T) {
	store := newMemoryEventStore()
	for _, e := range taggedEvents() {
		store.events[e.ID] = e
	}
	svc := newTestEventService(store, nil)

	events, role, err := svc.ListByRole(context.Background(), teacherClaims)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, role)
	assert.Equal(t, []string{"teachers", "both", "public"}, ids(events))

	events, role, err = svc.ListByRole(context.Background(), studentClaims)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, role)
	assert.Equal(t, []string{"both", "public", "students"}, ids(events))

	_, _, err = svc.ListByRole(context.Background(), &models.JWTClaims{UserID: "u", Role: "janitor"})
	assert.True(t, appErrors.Is(err, appErrors.ErrRoleUnresolved))

	all, err := svc.List(context.Background(), studentClaims)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestListStoreFailureIsInternal(t *testing.T) {
	store := newMemoryEventStore()
	store.listErr = errors.New("connection reset")
	svc := newTestEventService(store, nil)

	_, err := svc.List(context.Background(), adminClaims)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	assert.Equal(t, "failed to list events", appErr.Message)
}
