package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-events-api/internal/models"
)

const (
	userColumns    = `id, email, password_hash, first_name, last_name, role, active, last_login, created_at, updated_at`
	profileColumns = `id, user_id, code, phone, rfc, curp, birth_date, age, occupation, cubicle, research_area, subjects, created_at, updated_at`
)

// UserRepository provides database access for principals and their profiles.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address, ignoring case.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		err = normalizeLookupErr(err)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ExistsByID reports whether a user with the identifier exists.
func (r *UserRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id); err != nil {
		if errors.Is(normalizeLookupErr(err), sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// ExistsByEmail reports whether the email is already registered.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

// FindProfile returns the profile owned by the user.
func (r *UserRepository) FindProfile(ctx context.Context, userID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1 LIMIT 1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &profile, nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(first_name || ' ' || last_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY last_name ASC, first_name ASC LIMIT %d OFFSET %d", userColumns, baseQuery, pageSize, offset)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// Totals counts active users per role.
func (r *UserRepository) Totals(ctx context.Context) (*models.UserTotals, error) {
	const query = `SELECT
	COUNT(*) FILTER (WHERE role = 'administrator') AS administrators,
	COUNT(*) FILTER (WHERE role = 'teacher') AS teachers,
	COUNT(*) FILTER (WHERE role = 'student') AS students
FROM users WHERE active = TRUE`
	var totals models.UserTotals
	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("count users per role: %w", err)
	}
	return &totals, nil
}

// CreateWithProfile inserts a principal and the profile it owns in one transaction.
func (r *UserRepository) CreateWithProfile(ctx context.Context, user *models.User, profile *models.Profile, actorID string) (err error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	profile.UserID = user.ID
	profile.CreatedAt, profile.UpdatedAt = now, now
	if profile.Subjects == nil {
		profile.Subjects = []string{}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const userQuery = `INSERT INTO users (id, email, password_hash, first_name, last_name, role, active, created_at, updated_at) VALUES (:id, :email, :password_hash, :first_name, :last_name, :role, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, userQuery, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	const profileQuery = `INSERT INTO profiles (id, user_id, code, phone, rfc, curp, birth_date, age, occupation, cubicle, research_area, subjects, created_at, updated_at) VALUES (:id, :user_id, :code, :phone, :rfc, :curp, :birth_date, :age, :occupation, :cubicle, :research_area, :subjects, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	log, err := newAudit(actorID, models.AuditActionUserCreate, models.AuditResourceUser, user.ID, nil, models.NewUserInfo(*user))
	if err != nil {
		return err
	}
	if err = writeAudit(ctx, tx, log); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create user tx: %w", err)
	}
	return nil
}

// Update saves mutable user fields and, when given, the profile.
func (r *UserRepository) Update(ctx context.Context, user *models.User, profile *models.Profile, actorID string) (err error) {
	now := time.Now().UTC()
	user.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update user tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const userQuery = `UPDATE users SET first_name = :first_name, last_name = :last_name, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, userQuery, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if profile != nil {
		profile.UpdatedAt = now
		if profile.Subjects == nil {
			profile.Subjects = []string{}
		}
		const profileQuery = `UPDATE profiles SET code = :code, phone = :phone, rfc = :rfc, curp = :curp, birth_date = :birth_date, age = :age, occupation = :occupation, cubicle = :cubicle, research_area = :research_area, subjects = :subjects, updated_at = :updated_at WHERE user_id = :user_id`
		if _, err = tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
	}
	log, err := newAudit(actorID, models.AuditActionUserUpdate, models.AuditResourceUser, user.ID, nil, models.NewUserInfo(*user))
	if err != nil {
		return err
	}
	if err = writeAudit(ctx, tx, log); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update user tx: %w", err)
	}
	return nil
}

// DeleteCascade removes the events owned by the user, then the profile, then the user
// itself. It returns the number of events removed.
func (r *UserRepository) DeleteCascade(ctx context.Context, id, actorID string) (eventsDeleted int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete user tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var user models.User
	if err = tx.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, id); err != nil {
		err = normalizeLookupErr(err)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("find user for delete: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM academic_events WHERE responsible_user_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete user events: %w", err)
	}
	eventsDeleted, _ = res.RowsAffected()

	if _, err = tx.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete profile: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}

	log, err := newAudit(actorID, models.AuditActionUserDelete, models.AuditResourceUser, id, models.NewUserInfo(user), map[string]int64{"events_deleted": eventsDeleted})
	if err != nil {
		return 0, err
	}
	if err = writeAudit(ctx, tx, log); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete user tx: %w", err)
	}
	return eventsDeleted, nil
}
