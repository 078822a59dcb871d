package storage

import (
	"context"
	"log/slog"
	"time"

	"treesize/internal/server/database"
)

// ExpiryRepository is the part of the analysis repository the cleanup loop needs.
type ExpiryRepository interface {
	GetExpired(ctx context.Context) ([]*database.Analysis, error)
	Delete(ctx context.Context, id string) error
}

// CleanupService periodically removes expired analyses from both
// the database and transcript storage.
type CleanupService struct {
	repo     ExpiryRepository
	store    Store
	interval time.Duration
	done     chan struct{}
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(repo ExpiryRepository, store Store, interval time.Duration) *CleanupService {
	return &CleanupService{
		repo:     repo,
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the cleanup loop in a background goroutine.
func (cs *CleanupService) Start(ctx context.Context) {
	slog.Info("cleanup service started", "interval", cs.interval)

	go func() {
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		// Run once immediately on start
		cs.runCleanup(ctx)

		for {
			select {
			case <-ticker.C:
				cs.runCleanup(ctx)
			case <-ctx.Done():
				slog.Info("cleanup service stopping")
				close(cs.done)
				return
			}
		}
	}()
}

// Wait blocks until the cleanup service has fully stopped.
func (cs *CleanupService) Wait() {
	<-cs.done
}

// runCleanup returns how many analyses were removed and how many failed.
func (cs *CleanupService) runCleanup(ctx context.Context) (cleaned, failed int) {
	expired, err := cs.repo.GetExpired(ctx)
	if err != nil {
		slog.Error("failed to get expired analyses", "error", err)
		return 0, 0
	}

	if len(expired) == 0 {
		slog.Debug("no expired analyses to clean up")
		return 0, 0
	}

	for _, a := range expired {
		if err := cs.store.Delete(a.ID); err != nil {
			slog.Error("failed to delete transcript",
				"analysis_id", a.ID,
				"error", err,
			)
			failed++
			continue
		}

		if err := cs.repo.Delete(ctx, a.ID); err != nil {
			slog.Error("failed to delete db record",
				"analysis_id", a.ID,
				"error", err,
			)
			failed++
			continue
		}

		cleaned++
		slog.Info("cleaned up expired analysis",
			"analysis_id", a.ID,
			"filename", a.Filename,
			"expired_at", a.ExpiresAt,
		)
	}

	slog.Info("cleanup cycle complete",
		"cleaned", cleaned,
		"failed", failed,
		"total_expired", len(expired),
	)
	return cleaned, failed
}
