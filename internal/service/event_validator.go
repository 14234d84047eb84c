package service

import (
	"context"
	"strings"
	"time"

	"github.com/noah-isme/school-events-api/internal/dto"
	"github.com/noah-isme/school-events-api/internal/models"
	appErrors "github.com/noah-isme/school-events-api/pkg/errors"
)

// EventDraft is an event in its textual request form, checked before it becomes a model.
type EventDraft struct {
	Name              string   `json:"name" validate:"required,max=200,alnumspace"`
	EventType         string   `json:"event_type" validate:"required,event_type"`
	Date              string   `json:"date" validate:"required,event_date"`
	StartTime         string   `json:"start_time" validate:"required,clock"`
	EndTime           string   `json:"end_time" validate:"required,clock"`
	Location          string   `json:"location" validate:"required,max=200,alnumspace"`
	TargetAudience    []string `json:"target_audience" validate:"required,min=1,dive,audience"`
	EducationProgram  string   `json:"education_program" validate:"omitempty,program"`
	ResponsibleUserID string   `json:"responsible_user_id" validate:"required,uuid"`
	ShortDescription  string   `json:"short_description" validate:"required,max=300,description"`
	Capacity          *int     `json:"capacity" validate:"required,min=1,max=999"`
}

// ValidateOptions tunes the checks that depend on the operation.
type ValidateOptions struct {
	// CheckPastDate rejects dates before today.
	CheckPastDate bool
	// CheckResponsible verifies the responsible user exists.
	CheckResponsible bool
	// AudienceErr is the decode failure of the raw target_audience field, if any.
	AudienceErr error
	// FieldErrors are type errors from decoding the request body. They replace any other
	// violation reported for the same field.
	FieldErrors map[string][]string
}

// ValidationReport collects every violation keyed by field.
type ValidationReport map[string][]string

// Add records a violation for field.
func (r ValidationReport) Add(field, message string) {
	r[field] = appendUnique(r[field], message)
}

// Has reports whether field already carries a violation.
func (r ValidationReport) Has(field string) bool {
	return len(r[field]) > 0
}

// Err returns nil for an empty report, otherwise a VALIDATION_ERROR carrying the fields.
func (r ValidationReport) Err() error {
	if len(r) == 0 {
		return nil
	}
	return appErrors.Validation("invalid event", map[string][]string(r))
}

type userExistence interface {
	ExistsByID(ctx context.Context, id string) (bool, error)
}

// EventValidator enforces field and cross-field rules on event drafts.
type EventValidator struct {
	validator *Validator
	users     userExistence
	now       func() time.Time
	location  *time.Location
}

// NewEventValidator constructs an EventValidator. "Today" is computed from now in loc.
func NewEventValidator(validate *Validator, users userExistence, now func() time.Time, loc *time.Location) *EventValidator {
	if validate == nil {
		validate = NewValidator()
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &EventValidator{validator: validate, users: users, now: now, location: loc}
}

// Validate checks required fields, then per-field rules, then cross-field rules. The
// returned error is reserved for infrastructure failures.
func (v *EventValidator) Validate(ctx context.Context, draft EventDraft, opts ValidateOptions) (ValidationReport, error) {
	report := ValidationReport{}
	for field, messages := range v.validator.Fields(v.validator.Struct(draft)) {
		for _, msg := range messages {
			report.Add(field, msg)
		}
	}

	if opts.AudienceErr != nil {
		delete(report, "target_audience")
		report.Add("target_audience", appErrors.FromError(opts.AudienceErr).Message)
	}
	for field, messages := range opts.FieldErrors {
		delete(report, field)
		for _, msg := range messages {
			report.Add(field, field+" "+msg)
		}
	}

	if !report.Has("start_time") && !report.Has("end_time") {
		start, _ := models.ParseTimeOfDay(draft.StartTime)
		end, _ := models.ParseTimeOfDay(draft.EndTime)
		if end <= start {
			report.Add("end_time", "end_time must be later than start_time")
		}
	}

	if !report.Has("target_audience") && draft.hasAudience(models.AudienceStudents) && draft.EducationProgram == "" {
		report.Add("education_program", "education_program is required when target_audience includes Students")
	}

	if opts.CheckPastDate && !report.Has("date") {
		date, _ := models.ParseEventDate(draft.Date)
		today := models.DateOf(v.now().In(v.location))
		if date.Before(today) {
			report.Add("date", "date cannot be in the past")
		}
	}

	if opts.CheckResponsible && !report.Has("responsible_user_id") && v.users != nil {
		exists, err := v.users.ExistsByID(ctx, draft.ResponsibleUserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify responsible user")
		}
		if !exists {
			report.Add("responsible_user_id", "responsible user does not exist")
		}
	}

	return report, nil
}

func (d EventDraft) hasAudience(target models.Audience) bool {
	for _, raw := range d.TargetAudience {
		if a, ok := models.ParseAudience(raw); ok && a == target {
			return true
		}
	}
	return false
}

// applyTo writes a validated draft onto event.
func (d EventDraft) applyTo(event *models.AcademicEvent) {
	eventType, _ := models.ParseEventType(d.EventType)
	date, _ := models.ParseEventDate(d.Date)
	start, _ := models.ParseTimeOfDay(d.StartTime)
	end, _ := models.ParseTimeOfDay(d.EndTime)

	audiences := make([]models.Audience, 0, len(d.TargetAudience))
	for _, raw := range d.TargetAudience {
		if a, ok := models.ParseAudience(raw); ok {
			audiences = append(audiences, a)
		}
	}

	event.Name = d.Name
	event.EventType = eventType
	event.Date = date
	event.StartTime = start
	event.EndTime = end
	event.Location = d.Location
	event.TargetAudience = models.NewAudienceList(audiences...)
	event.EducationProgram = nil
	if d.EducationProgram != "" {
		program := d.EducationProgram
		event.EducationProgram = &program
	}
	event.ResponsibleUserID = d.ResponsibleUserID
	event.ShortDescription = d.ShortDescription
	if d.Capacity != nil {
		event.Capacity = *d.Capacity
	}
}

// draftFromEvent renders a stored event back into draft form.
func draftFromEvent(event models.AcademicEvent) EventDraft {
	capacity := event.Capacity
	draft := EventDraft{
		Name:              event.Name,
		EventType:         string(event.EventType),
		Date:              event.Date.Format(models.DateLayoutISO),
		StartTime:         event.StartTime.String(),
		EndTime:           event.EndTime.String(),
		Location:          event.Location,
		TargetAudience:    event.TargetAudience.Strings(),
		ResponsibleUserID: event.ResponsibleUserID,
		ShortDescription:  event.ShortDescription,
		Capacity:          &capacity,
	}
	if event.EducationProgram != nil {
		draft.EducationProgram = *event.EducationProgram
	}
	return draft
}

// merge overlays the supplied payload fields. audience replaces the stored list only when
// the payload carried one.
func (d *EventDraft) merge(p dto.EventPayload, audience []string) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&d.Name, p.Name)
	set(&d.EventType, p.EventType)
	set(&d.Date, p.Date)
	set(&d.StartTime, p.StartTime)
	set(&d.EndTime, p.EndTime)
	set(&d.Location, p.Location)
	set(&d.EducationProgram, p.EducationProgram)
	set(&d.ResponsibleUserID, p.ResponsibleUserID)
	set(&d.ShortDescription, p.ShortDescription)
	if p.HasTargetAudience() {
		d.TargetAudience = audience
	}
	if p.Capacity != nil {
		capacity := *p.Capacity
		d.Capacity = &capacity
	}
}
