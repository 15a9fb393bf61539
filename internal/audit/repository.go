package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/peopleops/hrms-backend/pkg/database"
)

// Repository handles audit entry persistence
type Repository struct {
	db *database.DB
}

// NewRepository creates a new audit repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Create appends an audit entry.
func (r *Repository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if len(entry.Payload) == 0 {
		entry.Payload = []byte("{}")
	}

	query := `
		INSERT INTO audit_entries (id, actor, action, entity_kind, entity_id, payload, remote_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	return r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.Actor, entry.Action, entry.EntityKind, entry.EntityID,
		entry.Payload, entry.RemoteIP, entry.UserAgent,
	).Scan(&entry.CreatedAt)
}

// ListFilter contains filter options for audit browsing.
type ListFilter struct {
	Actor      string
	Action     string
	EntityKind string
	From       *time.Time
	To         *time.Time
}

// List lists audit entries with pagination and filtering, newest first.
func (r *Repository) List(ctx context.Context, filter *ListFilter, page, perPage int) ([]*Entry, int64, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argIndex := 1

	if filter != nil {
		if filter.Actor != "" {
			where += fmt.Sprintf(" AND actor = $%d", argIndex)
			args = append(args, filter.Actor)
			argIndex++
		}
		if filter.Action != "" {
			where += fmt.Sprintf(" AND action = $%d", argIndex)
			args = append(args, filter.Action)
			argIndex++
		}
		if filter.EntityKind != "" {
			where += fmt.Sprintf(" AND entity_kind = $%d", argIndex)
			args = append(args, filter.EntityKind)
			argIndex++
		}
		if filter.From != nil {
			where += fmt.Sprintf(" AND created_at >= $%d", argIndex)
			args = append(args, *filter.From)
			argIndex++
		}
		if filter.To != nil {
			where += fmt.Sprintf(" AND created_at <= $%d", argIndex)
			args = append(args, *filter.To)
			argIndex++
		}
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_entries "+where, args...); err != nil {
		return nil, 0, err
	}

	if perPage <= 0 {
		perPage = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage

	query := fmt.Sprintf(`
		SELECT id, actor, action, entity_kind, entity_id, payload, remote_ip, user_agent, created_at
		FROM audit_entries %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, argIndex, argIndex+1)
	args = append(args, perPage, offset)

	var entries []*Entry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
