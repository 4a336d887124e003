// Package repository provides persistence implementations for identity lookups.
package repository

import (
	"context"
	"database/sql"
)

// PostgresAuthRepository answers identity questions from the users table.
// Identities are provisioned elsewhere; this side only reads them.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with the given database connection.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// UserExists checks whether an identity with the given id exists.
func (s *PostgresAuthRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`,
		userID,
	).Scan(&exists)
	return exists, err
}
