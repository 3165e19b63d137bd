package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/smart-attendance/internal/roster"
)

// StudentRepository provides PostgreSQL-backed storage for enrolled
// students and their reference face encodings.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// LoadIdentities returns all enrolled students with their encodings.
func (r *StudentRepository) LoadIdentities(ctx context.Context) ([]roster.Identity, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, display_name FROM students ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var identities []roster.Identity
	index := make(map[string]int)
	for rows.Next() {
		var id roster.Identity
		if err := rows.Scan(&id.ID, &id.DisplayName); err != nil {
			return nil, fmt.Errorf("scan student row: %w", err)
		}
		index[id.ID] = len(identities)
		identities = append(identities, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student rows: %w", err)
	}

	encRows, err := r.pool.Query(ctx,
		"SELECT student_id, encoding FROM student_encodings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query encodings: %w", err)
	}
	defer encRows.Close()

	for encRows.Next() {
		var (
			studentID string
			vec       pgvector.Vector
		)
		if err := encRows.Scan(&studentID, &vec); err != nil {
			return nil, fmt.Errorf("scan encoding row: %w", err)
		}
		if i, ok := index[studentID]; ok {
			identities[i].Encodings = append(identities[i].Encodings, vec.Slice())
		}
	}
	if err := encRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encoding rows: %w", err)
	}
	return identities, nil
}

// CreateStudent persists a new student with its first encoding in a
// single transaction.
func (r *StudentRepository) CreateStudent(ctx context.Context, id roster.Identity) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO students (id, display_name) VALUES ($1, $2)",
		id.ID, id.DisplayName,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert student: %w", err)
	}

	for _, enc := range id.Encodings {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO student_encodings (student_id, encoding) VALUES ($1, $2)",
			id.ID, pgvector.NewVector(enc),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert encoding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit student: %w", err)
	}
	return nil
}

// AppendEncoding adds a reference encoding to an existing student.
func (r *StudentRepository) AppendEncoding(ctx context.Context, identityID string, encoding []float32) error {
	result, err := r.pool.Exec(ctx,
		"INSERT INTO student_encodings (student_id, encoding) SELECT id, $2 FROM students WHERE id = $1",
		identityID, pgvector.NewVector(encoding),
	)
	if err != nil {
		return fmt.Errorf("insert encoding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check insert result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("student %s not found", identityID)
	}
	return nil
}

// Count returns the number of enrolled students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}
