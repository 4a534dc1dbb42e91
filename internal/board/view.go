package board

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// View is a project board: its columns by order, each holding its open
// cards by order.
type View struct {
	Project models.Project  `json:"project"`
	Columns []models.Column `json:"columns"`
}

// Stats summarizes card progress in a project.
type Stats struct {
	TotalCards           int64      `json:"total_cards"`
	OpenCards            int64      `json:"open_cards"`
	ClosedCards          int64      `json:"closed_cards"`
	CompletionPercentage int        `json:"completion_percentage"`
	StartTime            *time.Time `json:"start_time"`
	EndTime              *time.Time `json:"end_time"`
}

// Board loads the board view of a project.
func Board(ctx context.Context, gdb *gorm.DB, projectID string) (*View, error) {
	q := gdb.WithContext(ctx)
	p, err := loadProject(q, projectID)
	if err != nil {
		return nil, err
	}

	var cols []models.Column
	err = q.Where("project_id = ?", projectID).
		Preload("Cards", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", models.CardOpen).Order("sort_order ASC")
		}).
		Preload("Cards.Assignee").
		Preload("Cards.Priority").
		Preload("Cards.Labels").
		Order("sort_order ASC, created_at ASC").
		Find(&cols).Error
	if err != nil {
		return nil, fmt.Errorf("board: load board of %s: %w", projectID, err)
	}
	return &View{Project: *p, Columns: cols}, nil
}

// ProjectStats counts a project's cards. StartTime is the first card's
// creation; EndTime is the last close, reported only once every card is
// closed.
func ProjectStats(ctx context.Context, gdb *gorm.DB, projectID string) (*Stats, error) {
	q := gdb.WithContext(ctx)
	if _, err := loadProject(q, projectID); err != nil {
		return nil, err
	}

	var rows []struct {
		Status models.CardStatus
		Count  int64
	}
	if err := q.Model(&models.Card{}).
		Select("status, COUNT(*) as count").
		Where("project_id = ?", projectID).
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("board: stats of %s: %w", projectID, err)
	}

	var s Stats
	for _, r := range rows {
		s.TotalCards += r.Count
		switch r.Status {
		case models.CardOpen:
			s.OpenCards = r.Count
		case models.CardClosed:
			s.ClosedCards = r.Count
		}
	}
	if s.TotalCards == 0 {
		return &s, nil
	}
	s.CompletionPercentage = int((s.ClosedCards*100 + s.TotalCards/2) / s.TotalCards)

	var first models.Card
	if err := q.Where("project_id = ?", projectID).Order("created_at ASC").First(&first).Error; err != nil {
		return nil, fmt.Errorf("board: first card of %s: %w", projectID, err)
	}
	start := first.CreatedAt
	s.StartTime = &start

	if s.OpenCards == 0 {
		var last models.Card
		if err := q.Where("project_id = ? AND closed_at IS NOT NULL", projectID).
			Order("closed_at DESC").First(&last).Error; err != nil {
			return nil, fmt.Errorf("board: last closed card of %s: %w", projectID, err)
		}
		s.EndTime = last.ClosedAt
	}
	return &s, nil
}
