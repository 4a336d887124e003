// Package repository provides persistence implementations for vault items
// using a PostgreSQL database.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/linkvault/internal/models"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when no item exists under the given id.
	ErrNotFound = errors.New("vault item not found")
	// ErrLimitReached is returned when an admission would exceed max_views.
	ErrLimitReached = errors.New("view limit reached")
	// ErrDuplicateID is returned when an insert collides with an existing id.
	ErrDuplicateID = errors.New("duplicate item id")
)

const uniqueViolation = "23505"

const itemColumns = `id, kind, content, file_name, password_hash, owner_id, expires_at, max_views, view_count, created_at`

// PostgresVaultRepository stores vault items in PostgreSQL.
type PostgresVaultRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresVaultRepository creates a PostgresVaultRepository using the provided *sql.DB.
func NewPostgresVaultRepository(db *sql.DB) *PostgresVaultRepository {
	return &PostgresVaultRepository{DB: db}
}

// Create inserts a new item with a zero view count.
// Returns ErrDuplicateID if the id is already taken.
func (r *PostgresVaultRepository) Create(ctx context.Context, item *models.VaultItem) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO vault_items (id, kind, content, file_name, password_hash, owner_id, expires_at, max_views, view_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9)
	`, item.ID, item.Kind, item.Content, item.FileName, item.PasswordHash, item.OwnerID,
		item.ExpiresAt, item.MaxViews, item.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// Fetch returns the full row for id, or ErrNotFound.
func (r *PostgresVaultRepository) Fetch(ctx context.Context, id string) (*models.VaultItem, error) {
	var item models.VaultItem
	err := r.DB.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM vault_items WHERE id = $1`, id).
		Scan(&item.ID, &item.Kind, &item.Content, &item.FileName, &item.PasswordHash, &item.OwnerID,
			&item.ExpiresAt, &item.MaxViews, &item.ViewCount, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch item: %w", err)
	}
	return &item, nil
}

// IncrementViewCount admits one view of id and returns the new count.
//
// The limit is re-checked by the database in the same statement that
// increments, so concurrent callers can never push view_count past
// max_views. When no row is updated the item is looked up again to tell
// ErrLimitReached from ErrNotFound.
func (r *PostgresVaultRepository) IncrementViewCount(ctx context.Context, id string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `
		UPDATE vault_items SET view_count = view_count + 1
		 WHERE id = $1 AND (max_views = 0 OR view_count < max_views)
		RETURNING view_count
	`, id).Scan(&count)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("increment view count: %w", err)
	}

	var exists bool
	if err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM vault_items WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("recheck item: %w", err)
	}
	if exists {
		return 0, ErrLimitReached
	}
	return 0, ErrNotFound
}

// ClearContent drops the blob reference of a file item. Calling it again,
// or on a missing row, is a no-op.
func (r *PostgresVaultRepository) ClearContent(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE vault_items SET content = NULL WHERE id = $1 AND kind = 'file'`, id)
	if err != nil {
		return fmt.Errorf("clear content: %w", err)
	}
	return nil
}

// Delete removes the row for id. Returns ErrNotFound if nothing was deleted.
func (r *PostgresVaultRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM vault_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByOwner returns summaries of every item created by ownerID, newest
// first. Status is left for the caller to derive.
func (r *PostgresVaultRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Summary, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, kind, file_name, created_at, expires_at, max_views, view_count
		  FROM vault_items
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ListByOwner: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.Summary, 0)
	for rows.Next() {
		var s models.Summary
		if err := rows.Scan(&s.ID, &s.Kind, &s.FileName, &s.CreatedAt, &s.ExpiresAt, &s.MaxViews, &s.ViewCount); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByOwner: %w", err)
	}
	return summaries, nil
}

// ListReclaimable returns file items that still hold a blob although their
// admission window has closed at now.
func (r *PostgresVaultRepository) ListReclaimable(ctx context.Context, now time.Time) ([]models.ReclaimRef, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, content FROM vault_items
		 WHERE kind = 'file'
		   AND content IS NOT NULL
		   AND (expires_at < $1 OR (max_views > 0 AND view_count >= max_views))
	`, now)
	if err != nil {
		return nil, fmt.Errorf("ListReclaimable: %w", err)
	}
	defer rows.Close()

	var refs []models.ReclaimRef
	for rows.Next() {
		var ref models.ReclaimRef
		if err := rows.Scan(&ref.ID, &ref.StorageKey); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListReclaimable: %w", err)
	}
	return refs, nil
}
