// Package lifecycle drives project status transitions and the paused/active
// time accounting that goes with them.
//
// Durations are whole milliseconds held in int64. Instants are truncated to
// millisecond precision before they are stored or subtracted.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/audit"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// Action is a lifecycle action requested on a project.
type Action int

const (
	Start Action = iota + 1
	Pause
	Resume
	Close
)

var actionNames = map[Action]string{
	Start:  "start",
	Pause:  "pause",
	Resume: "resume",
	Close:  "close",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction maps "start", "pause", "resume" or "close" to an Action.
func ParseAction(s string) (Action, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for a, name := range actionNames {
		if name == want {
			return a, nil
		}
	}
	return 0, fmt.Errorf("lifecycle: unknown action %q: %w", s, apperr.ErrValidation)
}

// ValidTransitions maps each action to the statuses it may be applied from.
var ValidTransitions = map[Action][]models.ProjectStatus{
	Start:  {models.ProjectIdle},
	Pause:  {models.ProjectActive},
	Resume: {models.ProjectPaused},
	Close:  {models.ProjectActive, models.ProjectPaused},
}

var auditActions = map[Action]string{
	Start:  audit.ActionProjectStarted,
	Pause:  audit.ActionProjectPaused,
	Resume: audit.ActionProjectResumed,
	Close:  audit.ActionProjectClosed,
}

// State is the lifecycle portion of a project row.
type State struct {
	Status        models.ProjectStatus
	StartedAt     *time.Time
	PausedAt      *time.Time
	ClosedAt      *time.Time
	TotalPausedMs int64
}

// StateOf extracts the lifecycle state of p.
func StateOf(p *models.Project) State {
	return State{
		Status:        p.Status,
		StartedAt:     p.StartedAt,
		PausedAt:      p.PausedAt,
		ClosedAt:      p.ClosedAt,
		TotalPausedMs: p.TotalPausedMs,
	}
}

// CanApply reports whether action a is allowed from status s.
func CanApply(s models.ProjectStatus, a Action) bool {
	return slices.Contains(ValidTransitions[a], s)
}

// Transition returns the state that results from applying a to s at now.
// s is never modified. An action not allowed from s.Status fails with
// apperr.ErrConflict.
func Transition(s State, a Action, now time.Time) (State, error) {
	allowed, ok := ValidTransitions[a]
	if !ok {
		return s, fmt.Errorf("lifecycle: unknown action %v: %w", a, apperr.ErrValidation)
	}
	if !slices.Contains(allowed, s.Status) {
		return s, fmt.Errorf("lifecycle: cannot %s project in %s status: %w", a, s.Status, apperr.ErrConflict)
	}

	at := truncate(now)
	next := s
	switch a {
	case Start:
		next.Status = models.ProjectActive
		next.StartedAt = &at
	case Pause:
		next.Status = models.ProjectPaused
		next.PausedAt = &at
	case Resume:
		next.TotalPausedMs += elapsedMs(s.PausedAt, at)
		next.Status = models.ProjectActive
		next.PausedAt = nil
	case Close:
		if s.Status == models.ProjectPaused {
			next.TotalPausedMs += elapsedMs(s.PausedAt, at)
		}
		next.Status = models.ProjectClosed
		next.ClosedAt = &at
		next.PausedAt = nil
	}
	return next, nil
}

// Apply performs action a on the project inside one transaction: the row is
// locked and re-read, the transition is validated and stored, and one audit
// entry is written.
func Apply(ctx context.Context, gdb *gorm.DB, projectID string, a Action, actorID string, now time.Time) (*models.Project, error) {
	var updated models.Project
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Project
		if err := db.ForUpdate(tx).Where("id = ?", projectID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("lifecycle: project %s: %w", projectID, apperr.ErrNotFound)
			}
			return fmt.Errorf("lifecycle: load project %s: %w", projectID, err)
		}

		from := p.Status
		next, err := Transition(StateOf(&p), a, now)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":          next.Status,
			"started_at":      next.StartedAt,
			"paused_at":       next.PausedAt,
			"closed_at":       next.ClosedAt,
			"total_paused_ms": next.TotalPausedMs,
			"updated_at":      truncate(now),
		}
		if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Updates(updates).Error; err != nil {
			return fmt.Errorf("lifecycle: update project %s: %w", projectID, err)
		}

		if _, err := audit.Record(tx, audit.Entry{
			UserID:    actorID,
			ProjectID: projectID,
			Action:    auditActions[a],
			Entity:    audit.EntityProject,
			EntityID:  projectID,
			Details:   map[string]models.ProjectStatus{"fromStatus": from, "toStatus": next.Status},
			At:        truncate(now),
		}); err != nil {
			return err
		}

		if err := tx.Where("id = ?", projectID).First(&updated).Error; err != nil {
			return fmt.Errorf("lifecycle: reload project %s: %w", projectID, err)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err)
	}
	return &updated, nil
}

func truncate(t time.Time) time.Time {
	return t.Truncate(time.Millisecond)
}

// elapsedMs returns the whole milliseconds from *from to to, clamped at zero.
// A nil from yields zero.
func elapsedMs(from *time.Time, to time.Time) int64 {
	if from == nil {
		return 0
	}
	return max(0, to.UnixMilli()-from.UnixMilli())
}
