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

	"github.com/markr-hq/markr-api/internal/models"
)

// StudentRepository resolves student numbers to stable identities, creating
// them lazily on first sight.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindOrCreate returns the identity for a student number, creating it when
// absent. A non-empty name that differs from the stored one wins; an empty
// incoming name never clears an existing one.
func (r *StudentRepository) FindOrCreate(ctx context.Context, number, name string) (*models.Student, error) {
	var student models.Student
	err := r.db.GetContext(ctx, &student,
		`SELECT id, student_number, name, created_at, updated_at FROM students WHERE student_number = $1`, number)
	if err == nil {
		if name != "" && (student.Name == nil || *student.Name != name) {
			now := time.Now().UTC()
			if _, err := r.db.ExecContext(ctx,
				`UPDATE students SET name = $2, updated_at = $3 WHERE id = $1`, student.ID, name, now); err != nil {
				return nil, fmt.Errorf("update student name: %w", err)
			}
			student.Name = &name
			student.UpdatedAt = now
		}
		return &student, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find student: %w", err)
	}

	now := time.Now().UTC()
	student = models.Student{
		ID:            uuid.NewString(),
		StudentNumber: number,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if name != "" {
		student.Name = &name
	}
	const query = `INSERT INTO students (id, student_number, name, created_at, updated_at)
        VALUES (:id, :student_number, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}
	return &student, nil
}

// UpsertBatch resolves many student numbers in one round trip inside the
// caller's transaction, returning a number-to-id map for record inserts.
// Name handling matches FindOrCreate: last non-empty value wins.
func (r *StudentRepository) UpsertBatch(ctx context.Context, tx *sqlx.Tx, names map[string]string) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}

	now := time.Now().UTC()
	values := make([]string, 0, len(names))
	args := make([]interface{}, 0, len(names)*3+1)
	args = append(args, now)
	for number, name := range names {
		base := len(args)
		values = append(values, fmt.Sprintf("($%d, $%d, NULLIF($%d, ''), $1, $1)", base+1, base+2, base+3))
		args = append(args, uuid.NewString(), number, name)
	}

	query := fmt.Sprintf(`INSERT INTO students (id, student_number, name, created_at, updated_at)
        VALUES %s
        ON CONFLICT (student_number) DO UPDATE
        SET name = COALESCE(NULLIF(EXCLUDED.name, ''), students.name), updated_at = EXCLUDED.updated_at
        RETURNING student_number, id`, strings.Join(values, ", "))

	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("upsert students: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]string, len(names))
	for rows.Next() {
		var number, id string
		if err := rows.Scan(&number, &id); err != nil {
			return nil, fmt.Errorf("scan student id: %w", err)
		}
		ids[number] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("upsert students: %w", err)
	}
	return ids, nil
}

// FindByNumber fetches one identity by student number.
func (r *StudentRepository) FindByNumber(ctx context.Context, number string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student,
		`SELECT id, student_number, name, created_at, updated_at FROM students WHERE student_number = $1`, number); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns all identities ordered by student number.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students,
		`SELECT id, student_number, name, created_at, updated_at FROM students ORDER BY student_number`); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}
