package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/internflow/internal/application/port"
	"github.com/garyjia/internflow/internal/domain/entity"
	"go.uber.org/zap"
)

// ResourceResolver reads the internship and student tables to resolve resource references
type ResourceResolver struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewResourceResolver creates a resolver over the shared database
func NewResourceResolver(db *sql.DB, logger *zap.Logger) port.ResourceResolver {
	return &ResourceResolver{
		db:     db,
		logger: logger,
	}
}

// Resolve returns the scope of a live resource; soft-deleted rows resolve to nil
func (r *ResourceResolver) Resolve(ctx context.Context, ref entity.ResourceRef) (*entity.ResourceScope, error) {
	var (
		row   *sql.Row
		scope entity.ResourceScope
	)

	switch ref.Type() {
	case entity.ResourceTypeInternship:
		// the submitter is the student's user account when the student row exists
		row = executor(ctx, r.db).QueryRowContext(ctx, `
			SELECT COALESCE(s.user_id, i.student_id), i.university_id, i.company_id
			FROM internships i
			LEFT JOIN students s ON s.id = i.student_id
			WHERE i.id = ? AND i.deleted_at IS NULL
		`, ref.ID())
	case entity.ResourceTypeResume:
		row = executor(ctx, r.db).QueryRowContext(ctx, `
			SELECT user_id, university_id, ''
			FROM students
			WHERE id = ? AND deleted_at IS NULL
		`, ref.ID())
	default:
		return nil, fmt.Errorf("unsupported resource type %q", ref.Type())
	}

	err := row.Scan(&scope.SubmitterID, &scope.UniversityID, &scope.CompanyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to resolve resource", zap.String("resource", ref.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to resolve resource %s: %w", ref, err)
	}
	return &scope, nil
}

var _ port.ResourceResolver = (*ResourceResolver)(nil)
