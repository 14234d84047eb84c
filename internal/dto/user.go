package dto

import "github.com/noah-isme/school-events-api/internal/models"

// ProfileFields are the optional role specific attributes of a profile.
type ProfileFields struct {
	Code         *string  `json:"code" validate:"omitempty,max=255"`
	Phone        *string  `json:"phone" validate:"omitempty,max=50"`
	RFC          *string  `json:"rfc" validate:"omitempty,max=20"`
	CURP         *string  `json:"curp" validate:"omitempty,max=20"`
	BirthDate    *string  `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Age          *int     `json:"age" validate:"omitempty,min=0,max=150"`
	Occupation   *string  `json:"occupation" validate:"omitempty,max=255"`
	Cubicle      *string  `json:"cubicle" validate:"omitempty,max=100"`
	ResearchArea *string  `json:"research_area" validate:"omitempty,max=255"`
	Subjects     []string `json:"subjects" validate:"omitempty,dive,max=255"`
}

// CreateUserRequest registers a principal with its profile.
type CreateUserRequest struct {
	Email     string          `json:"email" validate:"required,email,max=255"`
	Password  string          `json:"password" validate:"required,min=8,max=72"`
	FirstName string          `json:"first_name" validate:"required,max=150"`
	LastName  string          `json:"last_name" validate:"required,max=150"`
	Role      models.UserRole `json:"role" validate:"required,oneof=administrator teacher student"`
	Profile   ProfileFields   `json:"profile"`
}

// UpdateUserRequest changes names and profile fields. The role is immutable.
type UpdateUserRequest struct {
	ID        string         `json:"id" validate:"required,uuid"`
	FirstName *string        `json:"first_name" validate:"omitempty,min=1,max=150"`
	LastName  *string        `json:"last_name" validate:"omitempty,min=1,max=150"`
	Active    *bool          `json:"active"`
	Profile   *ProfileFields `json:"profile"`
}

// UserResponse is the public representation of a principal.
type UserResponse struct {
	models.UserInfo
	Active  bool            `json:"active"`
	Profile *models.Profile `json:"profile,omitempty"`
}

// NewUserResponse shapes a principal and its optional profile.
func NewUserResponse(u models.User, profile *models.Profile) UserResponse {
	return UserResponse{UserInfo: models.NewUserInfo(u), Active: u.Active, Profile: profile}
}
