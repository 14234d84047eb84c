package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-events-api/internal/models"
	appErrors "github.com/noah-isme/school-events-api/pkg/errors"
)

func taggedEvents() []models.AcademicEvent {
	day := func(d int) time.Time { return time.Date(2031, 1, d, 0, 0, 0, 0, time.UTC) }
	return []models.AcademicEvent{
		{ID: "students", Date: day(1), StartTime: 9 * 3600, TargetAudience: models.NewAudienceList(models.AudienceStudents)},
		{ID: "teachers", Date: day(3), StartTime: 9 * 3600, TargetAudience: models.NewAudienceList(models.AudienceTeachers)},
		{ID: "public", Date: day(2), StartTime: 9 * 3600, TargetAudience: models.NewAudienceList(models.AudienceGeneralPublic)},
		{ID: "both", Date: day(2), StartTime: 15 * 3600, TargetAudience: models.NewAudienceList(models.AudienceStudents, models.AudienceTeachers)},
	}
}

func ids(events []models.AcademicEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestFilterVisibleByRole(t *testing.T) {
	cases := map[models.UserRole][]string{
		models.RoleAdministrator: {"teachers", "both", "public", "students"},
		models.RoleTeacher:       {"teachers", "both", "public"},
		models.RoleStudent:       {"both", "public", "students"},
	}
	for role, want := range cases {
		got, err := FilterVisible(role, taggedEvents())
		require.NoError(t, err, role)
		assert.Equal(t, want, ids(got), role)
	}
}

func TestFilterVisibleUnresolvedRole(t *testing.T) {
	_, err := FilterVisible(models.RoleNone, taggedEvents())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrRoleUnresolved))
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestFilterVisibleDoesNotReorderInput(t *testing.T) {
	events := taggedEvents()
	_, err := FilterVisible(models.RoleAdministrator, events)
	require.NoError(t, err)
	assert.Equal(t, "students", events[0].ID)
}
