package dto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/school-events-api/internal/models"
	appErrors "github.com/noah-isme/school-events-api/pkg/errors"
)

// EventPayload is the body of create and update requests. Nil fields were not supplied.
type EventPayload struct {
	ID                *string         `json:"id"`
	Name              *string         `json:"name"`
	EventType         *string         `json:"event_type"`
	Date              *string         `json:"date"`
	StartTime         *string         `json:"start_time"`
	EndTime           *string         `json:"end_time"`
	Location          *string         `json:"location"`
	TargetAudience    json.RawMessage `json:"target_audience" swaggertype:"array,string"`
	EducationProgram  *string         `json:"education_program"`
	ResponsibleUserID *string         `json:"responsible_user_id"`
	ShortDescription  *string         `json:"short_description"`
	Capacity          *int            `json:"capacity" swaggertype:"integer"`

	// FieldErrors holds fields whose JSON value had the wrong type.
	FieldErrors map[string][]string `json:"-"`
}

// UnmarshalJSON decodes each field on its own so that a wrongly typed value is reported
// against its field instead of failing the whole body. capacity also accepts a numeric string.
func (p *EventPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = EventPayload{}
	text := map[string]**string{
		"id":                  &p.ID,
		"name":                &p.Name,
		"event_type":          &p.EventType,
		"date":                &p.Date,
		"start_time":          &p.StartTime,
		"end_time":            &p.EndTime,
		"location":            &p.Location,
		"education_program":   &p.EducationProgram,
		"responsible_user_id": &p.ResponsibleUserID,
		"short_description":   &p.ShortDescription,
	}
	for key, value := range raw {
		if dst, ok := text[key]; ok {
			v, err := decodeOptionalString(value)
			if err != nil {
				p.addFieldError(key, "must be a string")
				continue
			}
			*dst = v
			continue
		}
		switch key {
		case "target_audience":
			p.TargetAudience = value
		case "capacity":
			v, err := decodeOptionalInt(value)
			if err != nil {
				p.addFieldError(key, "must be a valid integer")
				continue
			}
			p.Capacity = v
		}
	}
	return nil
}

func (p *EventPayload) addFieldError(field, message string) {
	if p.FieldErrors == nil {
		p.FieldErrors = map[string][]string{}
	}
	p.FieldErrors[field] = append(p.FieldErrors[field], message)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeOptionalString(raw json.RawMessage) (*string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptionalInt(raw json.RawMessage) (*int, error) {
	if isNull(raw) {
		return nil, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// HasTargetAudience reports whether the payload carries a non-null audience.
func (p EventPayload) HasTargetAudience() bool {
	return !isNull(p.TargetAudience)
}

// DecodeTargetAudience turns the raw audience field into a list of names. The field may be a
// JSON array of strings or a string holding such an array. Absent or null input yields nil.
func DecodeTargetAudience(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '"' {
		var encoded string
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return nil, malformedAudience(err)
		}
		trimmed = bytes.TrimSpace([]byte(encoded))
	}

	var values []string
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, malformedAudience(err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func malformedAudience(err error) *appErrors.Error {
	e := appErrors.Clone(appErrors.ErrMalformedInput, "target_audience must be a JSON list of strings")
	e.Err = err
	return e
}

// EventResponse is the public representation of an academic event.
type EventResponse struct {
	ID                string                  `json:"id"`
	Name              string                  `json:"name"`
	EventType         models.EventType        `json:"event_type"`
	Date              string                  `json:"date" example:"31/12/2030"`
	StartTime         string                  `json:"start_time" example:"10:00:00"`
	EndTime           string                  `json:"end_time" example:"12:00:00"`
	Location          string                  `json:"location"`
	TargetAudience    []string                `json:"target_audience"`
	EducationProgram  *string                 `json:"education_program"`
	ResponsibleUserID string                  `json:"responsible_user_id"`
	ResponsibleUser   *models.ResponsibleUser `json:"responsible_user,omitempty"`
	ShortDescription  string                  `json:"short_description"`
	Capacity          int                     `json:"capacity"`
	DurationHours     float64                 `json:"duration_hours"`
	IsActive          bool                    `json:"is_active"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// NewEventResponse shapes an event for clients. now decides is_active.
func NewEventResponse(event models.AcademicEvent, now time.Time) EventResponse {
	return EventResponse{
		ID:                event.ID,
		Name:              event.Name,
		EventType:         event.EventType,
		Date:              event.Date.Format(models.DateLayoutDisplay),
		StartTime:         event.StartTime.String(),
		EndTime:           event.EndTime.String(),
		Location:          event.Location,
		TargetAudience:    event.TargetAudience.Strings(),
		EducationProgram:  event.EducationProgram,
		ResponsibleUserID: event.ResponsibleUserID,
		ResponsibleUser:   event.Responsible,
		ShortDescription:  event.ShortDescription,
		Capacity:          event.Capacity,
		DurationHours:     event.DurationHours(),
		IsActive:          event.IsActive(now),
		CreatedAt:         event.CreatedAt.UTC(),
		UpdatedAt:         event.UpdatedAt.UTC(),
	}
}

// NewEventResponses shapes a list of events.
func NewEventResponses(events []models.AcademicEvent, now time.Time) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, NewEventResponse(e, now))
	}
	return out
}

// CreateEventResponse is returned by POST /events.
type CreateEventResponse struct {
	Message string        `json:"message"`
	EventID string        `json:"event_id"`
	Event   EventResponse `json:"event"`
}

// UpdateEventResponse is returned by PUT /events.
type UpdateEventResponse struct {
	Message string        `json:"message"`
	Event   EventResponse `json:"event"`
}

// MessageResponse carries a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}
