package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var (
	ErrAnalysisNotFound = errors.New("analysis not found")
)

const analysisColumns = `
	id, filename, transcript_size, transcript_hash,
	total_used, required_free, small_directory_total, smallest_sufficient,
	directory_count, file_count, small_directory_threshold, capacity_limit,
	uploaded_at, expires_at, view_count, password_hash,
	deletion_token, created_at`

// Repository provides CRUD operations for analyses.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new analysis record.
func (r *Repository) Create(ctx context.Context, a *Analysis) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO analyses (`+analysisColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		a.ID,
		a.Filename,
		a.TranscriptSize,
		a.TranscriptHash,
		a.TotalUsed,
		a.RequiredFree,
		a.SmallDirectoryTotal,
		a.SmallestSufficient,
		a.DirectoryCount,
		a.FileCount,
		a.SmallDirectoryThreshold,
		a.CapacityLimit,
		a.UploadedAt,
		a.ExpiresAt,
		a.ViewCount,
		a.PasswordHash,
		a.DeletionToken,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	return nil
}

// GetByID retrieves an analysis by its ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Analysis, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id)
	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// IncrementViewCount atomically increments the view counter.
func (r *Repository) IncrementViewCount(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE analyses SET view_count = view_count + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAnalysisNotFound
	}
	return nil
}

// Delete removes an analysis record by ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM analyses WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAnalysisNotFound
	}
	return nil
}

// GetExpired returns all analyses whose expiration time has passed.
func (r *Repository) GetExpired(ctx context.Context) ([]*Analysis, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE expires_at < NOW()`)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

// GetByHash finds a live analysis of an identical transcript.
func (r *Repository) GetByHash(ctx context.Context, hash string) (*Analysis, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses WHERE transcript_hash = $1 AND expires_at > NOW()
		LIMIT 1
	`, hash)
	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No duplicate found (not an error)
		}
		return nil, fmt.Errorf("failed to query by hash: %w", err)
	}
	return a, nil
}

// GetStats returns aggregate server statistics.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE expires_at > NOW()),
			COALESCE(SUM(view_count), 0),
			COALESCE(SUM(transcript_size) FILTER (WHERE expires_at > NOW()), 0)
		FROM analyses
	`).Scan(
		&stats.TotalAnalyses,
		&stats.ActiveAnalyses,
		&stats.TotalViews,
		&stats.StorageUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

func scanAnalysis(row pgx.Row) (*Analysis, error) {
	a := &Analysis{}
	err := row.Scan(
		&a.ID,
		&a.Filename,
		&a.TranscriptSize,
		&a.TranscriptHash,
		&a.TotalUsed,
		&a.RequiredFree,
		&a.SmallDirectoryTotal,
		&a.SmallestSufficient,
		&a.DirectoryCount,
		&a.FileCount,
		&a.SmallDirectoryThreshold,
		&a.CapacityLimit,
		&a.UploadedAt,
		&a.ExpiresAt,
		&a.ViewCount,
		&a.PasswordHash,
		&a.DeletionToken,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
