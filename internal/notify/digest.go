package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/switchyard/internal/board"
	"github.com/zulandar/switchyard/internal/lifecycle"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule parses a 5-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("notify: digest schedule %q: %w", expr, err)
	}
	return sched, nil
}

// nextFire returns the duration from now until the schedule next fires.
func nextFire(sched cron.Schedule, now time.Time) time.Duration {
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ProjectDigest summarizes one unfinished project.
type ProjectDigest struct {
	Name     string
	Snapshot lifecycle.Snapshot
	Stats    board.Stats
}

// BuildDigest summarizes every project that is not CLOSED, by name.
func BuildDigest(ctx context.Context, db *gorm.DB, now time.Time) ([]ProjectDigest, error) {
	var projects []models.Project
	if err := db.WithContext(ctx).
		Where("status <> ?", models.ProjectClosed).
		Order("name ASC").
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("notify: digest: list projects: %w", err)
	}

	digests := make([]ProjectDigest, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		stats, err := board.ProjectStats(ctx, db, p.ID)
		if err != nil {
			return nil, fmt.Errorf("notify: digest: %w", err)
		}
		digests = append(digests, ProjectDigest{
			Name:     p.Name,
			Snapshot: lifecycle.ComputeSnapshot(p, now),
			Stats:    *stats,
		})
	}
	return digests, nil
}
