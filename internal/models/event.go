package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// EventType enumerates the categories of academic events.
type EventType string

const (
	EventTypeConference EventType = "Conference"
	EventTypeWorkshop   EventType = "Workshop"
	EventTypeSeminar    EventType = "Seminar"
	EventTypeContest    EventType = "Contest"
)

var eventTypeAliases = map[string]EventType{
	"conference":  EventTypeConference,
	"conferencia": EventTypeConference,
	"workshop":    EventTypeWorkshop,
	"taller":      EventTypeWorkshop,
	"seminar":     EventTypeSeminar,
	"seminario":   EventTypeSeminar,
	"contest":     EventTypeContest,
	"concurso":    EventTypeContest,
}

// ParseEventType normalises English and legacy Spanish category names.
func ParseEventType(raw string) (EventType, bool) {
	t, ok := eventTypeAliases[strings.ToLower(strings.TrimSpace(raw))]
	return t, ok
}

// Audience is a recipient category of an event.
type Audience string

const (
	AudienceStudents      Audience = "Students"
	AudienceTeachers      Audience = "Teachers"
	AudienceGeneralPublic Audience = "General public"
)

// AudienceOrder is the canonical serialisation order of audiences.
var AudienceOrder = []Audience{AudienceStudents, AudienceTeachers, AudienceGeneralPublic}

var audienceAliases = map[string]Audience{
	"students":        AudienceStudents,
	"estudiantes":     AudienceStudents,
	"teachers":        AudienceTeachers,
	"profesores":      AudienceTeachers,
	"general public":  AudienceGeneralPublic,
	"público general": AudienceGeneralPublic,
	"publico general": AudienceGeneralPublic,
}

// ParseAudience normalises an audience name.
func ParseAudience(raw string) (Audience, bool) {
	a, ok := audienceAliases[strings.ToLower(strings.TrimSpace(raw))]
	return a, ok
}

// AudienceList is an ordered, duplicate free set of audiences stored as TEXT[].
type AudienceList []Audience

// NewAudienceList deduplicates the given audiences and sorts them canonically.
func NewAudienceList(values ...Audience) AudienceList {
	seen := make(map[Audience]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	list := make(AudienceList, 0, len(seen))
	for _, a := range AudienceOrder {
		if _, ok := seen[a]; ok {
			list = append(list, a)
		}
	}
	return list
}

// Contains reports whether the list holds the audience.
func (l AudienceList) Contains(a Audience) bool {
	for _, v := range l {
		if v == a {
			return true
		}
	}
	return false
}

// Intersects reports whether any audience is shared with others.
func (l AudienceList) Intersects(others ...Audience) bool {
	for _, o := range others {
		if l.Contains(o) {
			return true
		}
	}
	return false
}

// Strings returns the audiences as plain strings.
func (l AudienceList) Strings() []string {
	out := make([]string, len(l))
	for i, a := range l {
		out[i] = string(a)
	}
	return out
}

// Value implements driver.Valuer.
func (l AudienceList) Value() (driver.Value, error) {
	return pq.StringArray(l.Strings()).Value()
}

// Scan implements sql.Scanner.
func (l *AudienceList) Scan(src interface{}) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("scan target audience: %w", err)
	}
	values := make([]Audience, 0, len(raw))
	for _, s := range raw {
		a, ok := ParseAudience(s)
		if !ok {
			return fmt.Errorf("scan target audience: unknown value %q", s)
		}
		values = append(values, a)
	}
	*l = NewAudienceList(values...)
	return nil
}

// Education programs offered by the faculty.
const (
	ProgramComputerScience       = "Licenciatura en Ciencias de la Computación"
	ProgramInformationTechnology = "Licenciatura en Ingeniería en Tecnologías de la Información"
	ProgramSoftwareEngineering   = "Licenciatura en Ingeniería de Software"
)

// EducationPrograms lists the accepted education program names.
var EducationPrograms = []string{ProgramComputerScience, ProgramInformationTechnology, ProgramSoftwareEngineering}

// IsEducationProgram reports whether name is an accepted program.
func IsEducationProgram(name string) bool {
	for _, p := range EducationPrograms {
		if p == name {
			return true
		}
	}
	return false
}

// Date layouts accepted and rendered by the API.
const (
	DateLayoutISO     = "2006-01-02"
	DateLayoutDisplay = "02/01/2006"
)

// ParseEventDate accepts YYYY-MM-DD or DD/MM/YYYY.
func ParseEventDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{DateLayoutISO, DateLayoutDisplay} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// TimeOfDay is a wall clock time stored as seconds since midnight.
type TimeOfDay int

// Time layouts accepted for start and end times.
const (
	TimeLayoutShort = "15:04"
	TimeLayoutLong  = "15:04:05"
)

// ParseTimeOfDay accepts HH:MM or HH:MM:SS with two digit hours.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	// Postgres may append fractional seconds.
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	for _, layout := range []string{TimeLayoutShort, TimeLayoutLong} {
		if len(raw) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, raw); err == nil {
			return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time %q", raw)
}

// String renders HH:MM:SS.
func (t TimeOfDay) String() string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan implements sql.Scanner.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = TimeOfDay(v.Hour()*3600 + v.Minute()*60 + v.Second())
		return nil
	case []byte:
		return t.Scan(string(v))
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	default:
		return fmt.Errorf("scan time of day: unsupported type %T", src)
	}
}

// MarshalJSON renders the time as "HH:MM:SS".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses "HH:MM" or "HH:MM:SS".
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ResponsibleUser is the principal owning an event, as rendered in responses.
type ResponsibleUser struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
}

// AcademicEvent represents a row of academic_events.
type AcademicEvent struct {
	ID                string       `db:"id" json:"id"`
	Name              string       `db:"name" json:"name"`
	EventType         EventType    `db:"event_type" json:"event_type"`
	Date              time.Time    `db:"event_date" json:"date"`
	StartTime         TimeOfDay    `db:"start_time" json:"start_time"`
	EndTime           TimeOfDay    `db:"end_time" json:"end_time"`
	Location          string       `db:"location" json:"location"`
	TargetAudience    AudienceList `db:"target_audience" json:"target_audience"`
	EducationProgram  *string      `db:"education_program" json:"education_program,omitempty"`
	ResponsibleUserID string       `db:"responsible_user_id" json:"responsible_user_id"`
	ShortDescription  string       `db:"short_description" json:"short_description"`
	Capacity          int          `db:"capacity" json:"capacity"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`

	Responsible *ResponsibleUser `db:"-" json:"responsible_user,omitempty"`
}

// DurationHours is the length of the event in hours.
func (e AcademicEvent) DurationHours() float64 {
	return float64(e.EndTime-e.StartTime) / 3600
}

// IsActive reports whether the event date is today or later, with now expressed in the
// configured time zone.
func (e AcademicEvent) IsActive(now time.Time) bool {
	today := DateOf(now)
	return !DateOf(e.Date).Before(today)
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
