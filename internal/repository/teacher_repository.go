package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
)

// upsertTeacher records the identity provider's view of a teacher. Teachers are never created
// any other way.
func upsertTeacher(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now
	const query = `
INSERT INTO teachers (id, email, full_name, created_at, updated_at)
VALUES (:id, :email, :full_name, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, full_name = EXCLUDED.full_name, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, teacher); err != nil {
		return fmt.Errorf("upsert teacher: %w", err)
	}
	return nil
}
