package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-events-api/internal/dto"
	"github.com/noah-isme/school-events-api/internal/models"
	"github.com/noah-isme/school-events-api/internal/repository"
	appErrors "github.com/noah-isme/school-events-api/pkg/errors"
)

const (
	teacherUserID = "0b8e6a52-9c1d-4e3f-8a7b-2c4d6e8f0a13"
	studentUserID = "5d2f7c91-1a3b-4c5d-9e6f-7a8b9c0d1e24"
)

type mockUserRepo struct {
	users       map[string]*models.User
	profiles    map[string]*models.Profile
	lastFilter  models.UserFilter
	listErr     error
	createErr   error
	eventsOwned map[string]int64
	actors      []string
}

func newMockUserRepo(users ...models.User) *mockUserRepo {
	repo := &mockUserRepo{users: map[string]*models.User{}, profiles: map[string]*models.Profile{}, eventsOwned: map[string]int64{}}
	for i := range users {
		u := users[i]
		repo.users[u.ID] = &u
		repo.profiles[u.ID] = &models.Profile{ID: uuid.NewString(), UserID: u.ID, Subjects: []string{}}
	}
	return repo
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var users []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) FindProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if profile, ok := m.profiles[userID]; ok {
		copy := *profile
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Totals(ctx context.Context) (*models.UserTotals, error) {
	totals := &models.UserTotals{}
	for _, u := range m.users {
		if !u.Active {
			continue
		}
		switch u.Role {
		case models.RoleAdministrator:
			totals.Administrators++
		case models.RoleTeacher:
			totals.Teachers++
		case models.RoleStudent:
			totals.Students++
		}
	}
	return totals, nil
}

func (m *mockUserRepo) CreateWithProfile(ctx context.Context, user *models.User, profile *models.Profile, actorID string) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	profile.UserID = user.ID
	copyUser, copyProfile := *user, *profile
	m.users[user.ID] = &copyUser
	m.profiles[user.ID] = &copyProfile
	m.actors = append(m.actors, actorID)
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User, profile *models.Profile, actorID string) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copyUser := *user
	m.users[user.ID] = &copyUser
	if profile != nil {
		copyProfile := *profile
		m.profiles[user.ID] = &copyProfile
	}
	m.actors = append(m.actors, actorID)
	return nil
}

func (m *mockUserRepo) DeleteCascade(ctx context.Context, id, actorID string) (int64, error) {
	if _, ok := m.users[id]; !ok {
		return 0, sql.ErrNoRows
	}
	delete(m.users, id)
	delete(m.profiles, id)
	m.actors = append(m.actors, actorID)
	return m.eventsOwned[id], nil
}

func newTestUserService(repo *mockUserRepo) *UserService {
	svc := NewUserService(repo, NewValidator(), zap.NewNop())
	svc.hashCost = bcrypt.MinCost
	return svc
}

func seededUsers() []models.User {
	return []models.User{
		{ID: responsibleID, Email: "admin@example.com", FirstName: "Ada", LastName: "Admin", Role: models.RoleAdministrator, Active: true},
		{ID: teacherUserID, Email: "teacher@example.com", FirstName: "Tom", LastName: "Teacher", Role: models.RoleTeacher, Active: true},
		{ID: studentUserID, Email: "student@example.com", FirstName: "Sam", LastName: "Student", Role: models.RoleStudent, Active: false},
	}
}

func validCreateUserRequest() dto.CreateUserRequest {
	phone := "555-0100"
	birth := "2001-02-03"
	return dto.CreateUserRequest{
		Email:     "  New.Teacher@Example.com ",
		Password:  "s3cretpass",
		FirstName: "Grace",
		LastName:  "Hopper",
		Role:      "maestro",
		Profile: dto.ProfileFields{
			Phone:     &phone,
			BirthDate: &birth,
			Subjects:  []string{" Compilers ", ""},
		},
	}
}

func TestUserServiceCreate(t *testing.T) {
	repo := newMockUserRepo(seededUsers()...)
	svc := newTestUserService(repo)

	user, profile, err := svc.Create(context.Background(), adminClaims, validCreateUserRequest())
	require.NoError(t, err)
	assert.Equal(t, "new.teacher@example.com", user.Email)
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cretpass")))
	require.NotNil(t, profile.BirthDate)
	assert.Equal(t, "2001-02-03", profile.BirthDate.Format("2006-01-02"))
	assert.Equal(t, []string{"Compilers"}, []string(profile.Subjects))
	assert.Equal(t, []string{responsibleID}, repo.actors)
}

func TestUserServiceCreateRejections(t *testing.T) {
	repo := newMockUserRepo(seededUsers()...)
	svc := newTestUserService(repo)

	_, _, err := svc.Create(context.Background(), teacherClaims, validCreateUserRequest())
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	req := validCreateUserRequest()
	req.Email = "TEACHER@example.com"
	_, _, err = svc.Create(context.Background(), adminClaims, req)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	req = validCreateUserRequest()
	req.Role = "janitor"
	req.Password = "short"
	_, _, err = svc.Create(context.Background(), adminClaims, req)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, []string{"password", "role"}, appErr.FieldNames())

	repo.createErr = repository.ErrDuplicate
	_, _, err = svc.Create(context.Background(), adminClaims, validCreateUserRequest())
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	repo.createErr = errors.New("boom")
	_, _, err = svc.Create(context.Background(), adminClaims, validCreateUserRequest())
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdate(t *testing.T) {
	repo := newMockUserRepo(seededUsers()...)
	svc := newTestUserService(repo)
	first := " Thomas "
	active := false
	cubicle := "B-12"

	user, profile, err := svc.Update(context.Background(), adminClaims, dto.UpdateUserRequest{
		ID:        teacherUserID,
		FirstName: &first,
		Active:    &active,
		Profile:   &dto.ProfileFields{Cubicle: &cubicle},
	})
	require.NoError(t, err)
	assert.Equal(t, "Thomas", user.FirstName)
	assert.Equal(t, "Teacher", user.LastName)
	assert.False(t, user.Active)
	require.NotNil(t, profile.Cubicle)
	assert.Equal(t, "B-12", *profile.Cubicle)
	assert.Equal(t, models.RoleTeacher, repo.users[teacherUserID].Role)
}

func TestUserServiceUpdateRejections(t *testing.T) {
	repo := newMockUserRepo(seededUsers()...)
	svc := newTestUserService(repo)
	inactive := false

	_, _, err := svc.Update(context.Background(), adminClaims, dto.UpdateUserRequest{})
	assert.Equal(t, []string{"id"}, appErrors.FromError(err).FieldNames())

	_, _, err = svc.Update(context.Background(), adminClaims, dto.UpdateUserRequest{ID: uuid.NewString()})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, _, err = svc.Update(context.Background(), adminClaims, dto.UpdateUserRequest{ID: responsibleID, Active: &inactive})
	assert.Equal(t, []string{"active"}, appErrors.FromError(err).FieldNames())

	_, _, err = svc.Update(context.Background(), studentClaims, dto.UpdateUserRequest{ID: teacherUserID})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestUserServiceDelete(t *testing.T) {
	repo := newMockUserRepo(seededUsers()...)
	repo.eventsOwned[teacherUserID] = 3
	svc := newTestUserService(repo)

	removed, err := svc.Delete(context.Background(), adminClaims, teacherUserID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	assert.NotContains(t, repo.users, teacherUserID)
	assert.NotContains(t, repo.profiles, teacherUserID)

	_, err = svc.Delete(context.Background(), adminClaims, teacherUserID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Delete(context.Background(), adminClaims, responsibleID)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Delete(context.Background(), teacherClaims, studentUserID)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestUserServiceListAndTotals(t *testing.T) {
	repo := newMockUserRepo(seededUsers()...)
	svc := newTestUserService(repo)

	role, err := ParseRoleFilter("Maestro")
	require.NoError(t, err)
	users, pagination, err := svc.List(context.Background(), studentClaims, models.UserFilter{Role: role, PageSize: 500})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "teacher@example.com", users[0].Email)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, pagination)
	assert.Equal(t, 20, repo.lastFilter.PageSize)

	_, err = ParseRoleFilter("janitor")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	totals, err := svc.Totals(context.Background(), teacherClaims)
	require.NoError(t, err)
	assert.Equal(t, models.UserTotals{Administrators: 1, Teachers: 1, Students: 0}, *totals)

	_, _, err = svc.List(context.Background(), nil, models.UserFilter{})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestUserServiceGet(t *testing.T) {
	repo := newMockUserRepo(seededUsers()...)
	svc := newTestUserService(repo)

	user, profile, err := svc.Get(context.Background(), teacherClaims, studentUserID)
	require.NoError(t, err)
	assert.Equal(t, "Sam Student", user.FullName())
	require.NotNil(t, profile)

	_, _, err = svc.Get(context.Background(), teacherClaims, uuid.NewString())
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnsureAdmin(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo)
	admin := BootstrapAdmin{Email: "Root@Example.com", Password: "change-me-now", FirstName: "Root", LastName: "Admin"}

	created, err := svc.EnsureAdmin(context.Background(), admin)
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, repo.users, 1)
	for id, u := range repo.users {
		assert.Equal(t, "root@example.com", u.Email)
		assert.Equal(t, models.RoleAdministrator, u.Role)
		assert.Equal(t, []string{id}, repo.actors)
	}

	created, err = svc.EnsureAdmin(context.Background(), admin)
	require.NoError(t, err)
	assert.False(t, created)

	created, err = svc.EnsureAdmin(context.Background(), BootstrapAdmin{})
	require.NoError(t, err)
	assert.False(t, created)
}
