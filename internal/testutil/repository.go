// Package testutil holds in-memory stand-ins for the server's persistence
// layer so service and api tests run without Postgres.
package testutil

import (
	"context"
	"sync"
	"time"

	"treesize/internal/server/database"
)

// MemoryRepository implements the analysis repository on a map.
type MemoryRepository struct {
	mu       sync.Mutex
	analyses map[string]*database.Analysis

	// CreateErr, when set, is returned by Create.
	CreateErr error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{analyses: make(map[string]*database.Analysis)}
}

// Record returns the stored record itself, so tests can change it in place.
func (r *MemoryRepository) Record(id string) *database.Analysis {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.analyses[id]
}

func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.analyses)
}

func (r *MemoryRepository) Create(ctx context.Context, a *database.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	copied := *a
	r.analyses[a.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*database.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok {
		return nil, database.ErrAnalysisNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *MemoryRepository) GetByHash(ctx context.Context, hash string) (*database.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.analyses {
		if a.TranscriptHash == hash && a.ExpiresAt.After(time.Now()) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetExpired(ctx context.Context) ([]*database.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []*database.Analysis
	for _, a := range r.analyses {
		if a.ExpiresAt.Before(time.Now()) {
			copied := *a
			expired = append(expired, &copied)
		}
	}
	return expired, nil
}

func (r *MemoryRepository) IncrementViewCount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok {
		return database.ErrAnalysisNotFound
	}
	a.ViewCount++
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.analyses[id]; !ok {
		return database.ErrAnalysisNotFound
	}
	delete(r.analyses, id)
	return nil
}

func (r *MemoryRepository) GetStats(ctx context.Context) (*database.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &database.Stats{TotalAnalyses: int64(len(r.analyses))}
	for _, a := range r.analyses {
		if a.ExpiresAt.After(time.Now()) {
			stats.ActiveAnalyses++
			stats.StorageUsed += a.TranscriptSize
		}
		stats.TotalViews += int64(a.ViewCount)
	}
	return stats, nil
}
