package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-events-api/internal/dto"
	"github.com/noah-isme/school-events-api/internal/models"
	"github.com/noah-isme/school-events-api/internal/repository"
	appErrors "github.com/noah-isme/school-events-api/pkg/errors"
)

const (
	defaultUserPageSize = 20
	maxUserPageSize     = 100
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindProfile(ctx context.Context, userID string) (*models.Profile, error)
	Totals(ctx context.Context) (*models.UserTotals, error)
	CreateWithProfile(ctx context.Context, user *models.User, profile *models.Profile, actorID string) error
	Update(ctx context.Context, user *models.User, profile *models.Profile, actorID string) error
	DeleteCascade(ctx context.Context, id, actorID string) (int64, error)
}

// BootstrapAdmin describes the administrator seeded on startup.
type BootstrapAdmin struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UserService handles principal management workflows.
type UserService struct {
	repo      userRepository
	validator *Validator
	logger    *zap.Logger
	hashCost  int
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *Validator, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, validator: validate, logger: logger, hashCost: bcrypt.DefaultCost}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, claims *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if err := requireAuthenticated(claims); err != nil {
		return nil, nil, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > maxUserPageSize {
		filter.PageSize = defaultUserPageSize
	}
	filter.Search = strings.TrimSpace(filter.Search)

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}

	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ParseRoleFilter turns the optional role query parameter into a filter value.
func ParseRoleFilter(raw string) (*models.UserRole, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	role := ParseRole(raw)
	if role == models.RoleNone {
		return nil, appErrors.Validation("invalid role filter", map[string][]string{"role": {"role must be one of administrator, teacher, student"}})
	}
	return &role, nil
}

// Get returns a user with its profile.
func (s *UserService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.User, *models.Profile, error) {
	if err := requireAuthenticated(claims); err != nil {
		return nil, nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil, missingID()
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.profile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return user, profile, nil
}

// Totals counts active principals per role.
func (s *UserService) Totals(ctx context.Context, claims *models.JWTClaims) (*models.UserTotals, error) {
	if err := requireAuthenticated(claims); err != nil {
		return nil, err
	}
	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	return totals, nil
}

// Create registers a principal and its profile. Administrators only.
func (s *UserService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateUserRequest) (*models.User, *models.Profile, error) {
	if err := requireAdministrator(claims, "only administrators can manage users"); err != nil {
		return nil, nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Role = ParseRole(string(req.Role))
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Validation("invalid create user payload", s.validator.Fields(err))
	}

	user, profile, err := s.create(ctx, req, "", claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)), zap.String("actor_id", claims.UserID))
	return user, profile, nil
}

// Update changes names, the active flag and profile fields. Administrators only.
func (s *UserService) Update(ctx context.Context, claims *models.JWTClaims, req dto.UpdateUserRequest) (*models.User, *models.Profile, error) {
	if err := requireAdministrator(claims, "only administrators can manage users"); err != nil {
		return nil, nil, err
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		return nil, nil, missingID()
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Validation("invalid update user payload", s.validator.Fields(err))
	}

	user, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, nil, err
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Active != nil {
		if !*req.Active && user.ID == claims.UserID {
			return nil, nil, appErrors.Validation("invalid update user payload", map[string][]string{"active": {"administrators cannot deactivate themselves"}})
		}
		user.Active = *req.Active
	}

	var profile *models.Profile
	if req.Profile != nil {
		profile, err = s.profile(ctx, user.ID)
		if err != nil {
			return nil, nil, err
		}
		if profile == nil {
			profile = &models.Profile{UserID: user.ID}
		}
		applyProfileFields(profile, *req.Profile)
	}

	if err := s.repo.Update(ctx, user, profile, claims.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	if profile == nil {
		if profile, err = s.profile(ctx, user.ID); err != nil {
			return nil, nil, err
		}
	}
	s.logger.Info("user updated", zap.String("user_id", user.ID), zap.String("actor_id", claims.UserID))
	return user, profile, nil
}

// Delete removes the principal, its profile and every event it is responsible for.
// Administrators only. Returns the number of events removed with the principal.
func (s *UserService) Delete(ctx context.Context, claims *models.JWTClaims, id string) (int64, error) {
	if err := requireAdministrator(claims, "only administrators can manage users"); err != nil {
		return 0, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, missingID()
	}
	if id == claims.UserID {
		return 0, appErrors.Validation("invalid delete request", map[string][]string{"id": {"administrators cannot delete themselves"}})
	}

	eventsDeleted, err := s.repo.DeleteCascade(ctx, id, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	s.logger.Info("user deleted", zap.String("user_id", id), zap.Int64("events_deleted", eventsDeleted), zap.String("actor_id", claims.UserID))
	return eventsDeleted, nil
}

// EnsureAdmin seeds an administrator when no principal owns the configured email. It reports
// whether a principal was created.
func (s *UserService) EnsureAdmin(ctx context.Context, admin BootstrapAdmin) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" || admin.Password == "" {
		return false, nil
	}
	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check bootstrap administrator")
	}
	if exists {
		return false, nil
	}

	req := dto.CreateUserRequest{
		Email:     email,
		Password:  admin.Password,
		FirstName: strings.TrimSpace(admin.FirstName),
		LastName:  strings.TrimSpace(admin.LastName),
		Role:      models.RoleAdministrator,
	}
	if err := s.validator.Struct(req); err != nil {
		return false, appErrors.Validation("invalid bootstrap administrator", s.validator.Fields(err))
	}
	// The seeded administrator is recorded as its own creator.
	id := uuid.NewString()
	user, _, err := s.create(ctx, req, id, id)
	if err != nil {
		return false, err
	}
	s.logger.Info("bootstrap administrator created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return true, nil
}

func (s *UserService) create(ctx context.Context, req dto.CreateUserRequest, userID, actorID string) (*models.User, *models.Profile, error) {
	exists, err := s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           userID,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		Active:       true,
	}
	profile := &models.Profile{}
	applyProfileFields(profile, req.Profile)

	if err := s.repo.CreateWithProfile(ctx, user, profile, actorID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, profile, nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func (s *UserService) profile(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.repo.FindProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

// applyProfileFields copies the supplied fields onto profile. Absent fields are left as they
// are; an empty string clears the field.
func applyProfileFields(profile *models.Profile, fields dto.ProfileFields) {
	for _, f := range []struct {
		dst **string
		src *string
	}{
		{&profile.Code, fields.Code},
		{&profile.Phone, fields.Phone},
		{&profile.RFC, fields.RFC},
		{&profile.CURP, fields.CURP},
		{&profile.Occupation, fields.Occupation},
		{&profile.Cubicle, fields.Cubicle},
		{&profile.ResearchArea, fields.ResearchArea},
	} {
		if f.src != nil {
			*f.dst = trimmedOrNil(f.src)
		}
	}
	if fields.Age != nil {
		age := *fields.Age
		profile.Age = &age
	}
	if fields.BirthDate != nil {
		profile.BirthDate = nil
		if t, err := time.Parse("2006-01-02", strings.TrimSpace(*fields.BirthDate)); err == nil {
			profile.BirthDate = &t
		}
	}
	if fields.Subjects != nil {
		subjects := make([]string, 0, len(fields.Subjects))
		for _, subject := range fields.Subjects {
			if trimmed := strings.TrimSpace(subject); trimmed != "" {
				subjects = append(subjects, trimmed)
			}
		}
		profile.Subjects = subjects
	}
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
