package service

import (
	"sort"

	"github.com/noah-isme/school-events-api/internal/models"
	appErrors "github.com/noah-isme/school-events-api/pkg/errors"
)

var visibleAudiences = map[models.UserRole][]models.Audience{
	models.RoleTeacher: {models.AudienceTeachers, models.AudienceGeneralPublic},
	models.RoleStudent: {models.AudienceStudents, models.AudienceGeneralPublic},
}

// FilterVisible returns the events the role may see, newest scheduled first. The input slice
// is not modified.
func FilterVisible(role models.UserRole, events []models.AcademicEvent) ([]models.AcademicEvent, error) {
	var visible []models.AcademicEvent
	switch role {
	case models.RoleAdministrator:
		visible = append(make([]models.AcademicEvent, 0, len(events)), events...)
	case models.RoleTeacher, models.RoleStudent:
		allowed := visibleAudiences[role]
		visible = make([]models.AcademicEvent, 0, len(events))
		for _, e := range events {
			if e.TargetAudience.Intersects(allowed...) {
				visible = append(visible, e)
			}
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrRoleUnresolved, "role '"+string(role)+"' is not recognized")
	}
	SortEvents(visible)
	return visible, nil
}

// SortEvents orders events by date then start time, both descending.
func SortEvents(events []models.AcademicEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.StartTime > b.StartTime
	})
}
