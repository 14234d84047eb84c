package service

import (
	"strings"

	"github.com/noah-isme/school-events-api/internal/models"
)

var roleAliases = map[string]models.UserRole{
	"administrator": models.RoleAdministrator,
	"administrador": models.RoleAdministrator,
	"admin":         models.RoleAdministrator,
	"teacher":       models.RoleTeacher,
	"maestro":       models.RoleTeacher,
	"student":       models.RoleStudent,
	"alumno":        models.RoleStudent,
}

// ParseRole maps a stored or legacy role name onto a known role, or RoleNone.
func ParseRole(raw string) models.UserRole {
	if role, ok := roleAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return role
	}
	return models.RoleNone
}

// ResolveRole returns the single role carried by the authenticated principal.
func ResolveRole(claims *models.JWTClaims) models.UserRole {
	if claims == nil {
		return models.RoleNone
	}
	return ParseRole(string(claims.Role))
}
