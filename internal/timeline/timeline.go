// Package timeline derives how long a card spent in each column from its
// movement log.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

// Sentinel column shown for the span that ends at the creation log entry.
const (
	InitialColumnID   = "Initial"
	InitialColumnName = "Creation"
)

// Segment is one stay of a card in a column. LeftAt is nil for the current
// stay of an open card.
type Segment struct {
	ColumnID        string     `json:"column_id"`
	ColumnName      string     `json:"column_name"`
	EnteredAt       time.Time  `json:"entered_at"`
	LeftAt          *time.Time `json:"left_at"`
	DurationMs      int64      `json:"duration_ms"`
	DurationSeconds int64      `json:"duration_seconds"`
	IsCurrent       bool       `json:"is_current"`
}

// Timeline is the full residency history of a card.
type Timeline struct {
	CardID           string     `json:"card_id"`
	CardName         string     `json:"card_name"`
	CreatedAt        time.Time  `json:"created_at"`
	ClosedAt         *time.Time `json:"closed_at"`
	EndTime          time.Time  `json:"end_time"`
	Segments         []Segment  `json:"segments"`
	TotalTimeMs      int64      `json:"total_time_ms"`
	TotalTimeSeconds int64      `json:"total_time_seconds"`
}

// Build derives the timeline of card from its movement log, which must be
// ordered by movedAt. Each log entry closes the stay in the column it left;
// a final segment covers the current column up to closedAt, or now for an
// open card. TotalTimeMs always equals EndTime - CreatedAt.
func Build(card models.Card, columnNames map[string]string, logs []models.CardMovementLog, now time.Time) Timeline {
	end := now.Truncate(time.Millisecond)
	if card.ClosedAt != nil {
		end = *card.ClosedAt
	}

	tl := Timeline{
		CardID:    card.ID,
		CardName:  card.Name,
		CreatedAt: card.CreatedAt,
		ClosedAt:  card.ClosedAt,
		EndTime:   end,
		Segments:  make([]Segment, 0, len(logs)+1),
	}

	cursor := card.CreatedAt
	for _, entry := range logs {
		left := entry.MovedAt
		seg := Segment{ColumnID: InitialColumnID, ColumnName: InitialColumnName}
		if entry.FromColumnID != nil {
			seg.ColumnID = *entry.FromColumnID
			seg.ColumnName = columnName(columnNames, *entry.FromColumnID)
		}
		seg.EnteredAt = cursor
		seg.LeftAt = &left
		seg.DurationMs = left.UnixMilli() - cursor.UnixMilli()
		tl.add(seg)
		cursor = left
	}

	current := Segment{
		ColumnID:   card.ColumnID,
		ColumnName: columnName(columnNames, card.ColumnID),
		EnteredAt:  cursor,
		DurationMs: end.UnixMilli() - cursor.UnixMilli(),
		IsCurrent:  card.ClosedAt == nil,
	}
	if card.ClosedAt != nil {
		closed := end
		current.LeftAt = &closed
	}
	tl.add(current)
	tl.TotalTimeSeconds = floorSeconds(tl.TotalTimeMs)
	return tl
}

func (tl *Timeline) add(seg Segment) {
	seg.DurationSeconds = floorSeconds(seg.DurationMs)
	tl.Segments = append(tl.Segments, seg)
	tl.TotalTimeMs += seg.DurationMs
}

// floorSeconds converts milliseconds to whole seconds rounding toward
// negative infinity.
func floorSeconds(ms int64) int64 {
	s := ms / 1000
	if ms%1000 < 0 {
		s--
	}
	return s
}

func columnName(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return "Unknown"
}

// Load reads a card, its movement log and the project's column names and
// builds the timeline as of now.
func Load(ctx context.Context, gdb *gorm.DB, cardID string, now time.Time) (*Timeline, error) {
	q := gdb.WithContext(ctx)

	var card models.Card
	if err := q.Where("id = ?", cardID).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("timeline: card %s: %w", cardID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("timeline: load card %s: %w", cardID, err)
	}

	var logs []models.CardMovementLog
	if err := q.Where("card_id = ?", cardID).Order("moved_at ASC, id ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("timeline: load movement log of %s: %w", cardID, err)
	}

	var cols []models.Column
	if err := q.Where("project_id = ?", card.ProjectID).Find(&cols).Error; err != nil {
		return nil, fmt.Errorf("timeline: load columns of %s: %w", card.ProjectID, err)
	}
	names := make(map[string]string, len(cols))
	for _, c := range cols {
		names[c.ID] = c.Name
	}

	tl := Build(card, names, logs, now)
	return &tl, nil
}
