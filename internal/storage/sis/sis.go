// Package sis reads the school's student information system over
// MySQL. It is a read-only source used to pre-register students before
// their face encodings are enrolled.
package sis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Student is a roster entry as the SIS knows it.
type Student struct {
	ExternalID string
	FullName   string
}

// Pool manages a MySQL connection pool to the SIS database.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new SIS connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("SIS MySQL DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SIS database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SIS database: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing SIS connection: %w", err)
		}
	}
	return nil
}

// ListActiveStudents returns all active students from the SIS roster.
func (p *Pool) ListActiveStudents(ctx context.Context) ([]Student, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT external_id, full_name
		FROM students
		WHERE active = 1
		ORDER BY full_name
	`)
	if err != nil {
		return nil, fmt.Errorf("query SIS students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ExternalID, &s.FullName); err != nil {
			return nil, fmt.Errorf("scan SIS student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate SIS students: %w", err)
	}
	return students, nil
}
