package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// Snapshot is a point-in-time view of a project's time accounting. The
// millisecond totals are encoded as decimal strings in JSON.
type Snapshot struct {
	ProjectID      string               `json:"project_id"`
	Status         models.ProjectStatus `json:"status"`
	StartedAt      *time.Time           `json:"started_at"`
	PausedAt       *time.Time           `json:"paused_at"`
	ClosedAt       *time.Time           `json:"closed_at"`
	TotalElapsedMs int64                `json:"total_elapsed_ms,string"`
	PausedMs       int64                `json:"paused_ms,string"`
	ActiveMs       int64                `json:"active_ms,string"`
}

// ComputeSnapshot derives the elapsed, paused and active totals of p as of now.
// It does not touch the store.
func ComputeSnapshot(p *models.Project, now time.Time) Snapshot {
	at := truncate(now)

	var elapsed int64
	if p.StartedAt != nil {
		end := at
		if p.ClosedAt != nil {
			end = *p.ClosedAt
		}
		elapsed = elapsedMs(p.StartedAt, end)
	}

	paused := p.TotalPausedMs
	if p.Status == models.ProjectPaused {
		paused += elapsedMs(p.PausedAt, at)
	}

	return Snapshot{
		ProjectID:      p.ID,
		Status:         p.Status,
		StartedAt:      p.StartedAt,
		PausedAt:       p.PausedAt,
		ClosedAt:       p.ClosedAt,
		TotalElapsedMs: elapsed,
		PausedMs:       paused,
		ActiveMs:       max(0, elapsed-paused),
	}
}

// LiveSnapshot loads the project and computes its snapshot as of now.
func LiveSnapshot(ctx context.Context, gdb *gorm.DB, projectID string, now time.Time) (*Snapshot, error) {
	var p models.Project
	if err := gdb.WithContext(ctx).Where("id = ?", projectID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lifecycle: project %s: %w", projectID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("lifecycle: load project %s: %w", projectID, err)
	}
	snap := ComputeSnapshot(&p, now)
	return &snap, nil
}
