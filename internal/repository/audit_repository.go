package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-events-api/internal/models"
)

const insertAuditQuery = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`

// AuditRepository stores audit trail entries written outside of a domain transaction.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create stores an audit log entry.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	return writeAudit(ctx, r.db, log)
}

func writeAudit(ctx context.Context, ext sqlx.ExtContext, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if _, err := sqlx.NamedExecContext(ctx, ext, insertAuditQuery, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func newAudit(actorID, action, resource, resourceID string, oldValue, newValue interface{}) (*models.AuditLog, error) {
	log := &models.AuditLog{Action: action, Resource: resource}
	if actorID != "" {
		log.UserID = &actorID
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	var err error
	if oldValue != nil {
		if log.OldValues, err = json.Marshal(oldValue); err != nil {
			return nil, fmt.Errorf("encode audit old values: %w", err)
		}
	}
	if newValue != nil {
		if log.NewValues, err = json.Marshal(newValue); err != nil {
			return nil, fmt.Errorf("encode audit new values: %w", err)
		}
	}
	return log, nil
}
