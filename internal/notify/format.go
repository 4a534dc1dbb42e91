package notify

import (
	"cmp"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/zulandar/switchyard/internal/audit"
	"github.com/zulandar/switchyard/internal/board"
	"github.com/zulandar/switchyard/internal/models"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "warning":
		return ColorWarning
	default:
		return ColorInfo
	}
}

var lifecycleVerbs = map[string]string{
	audit.ActionProjectStarted: "started",
	audit.ActionProjectPaused:  "paused",
	audit.ActionProjectResumed: "resumed",
	audit.ActionProjectClosed:  "closed",
}

func lifecycleSeverity(action string) string {
	switch action {
	case audit.ActionProjectClosed:
		return "success"
	case audit.ActionProjectPaused:
		return "warning"
	default:
		return "info"
	}
}

type lifecycleDetails struct {
	From models.ProjectStatus `json:"fromStatus"`
	To   models.ProjectStatus `json:"toStatus"`
}

// details decodes e.Details as T. Unreadable details yield the zero T, which
// the formatters render with id fallbacks.
func details[T any](e Event) (T, error) {
	var v T
	if e.Details == "" {
		return v, nil
	}
	if err := json.Unmarshal([]byte(e.Details), &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// checkDetails reports whether an announced event's details decode into the
// payload its formatter expects.
func checkDetails(e Event) error {
	var err error
	switch {
	case e.Entity == audit.EntityProject && lifecycleVerbs[e.Action] != "":
		_, err = details[lifecycleDetails](e)
	case e.Entity == audit.EntityCard && e.Action == audit.ActionMove:
		_, err = details[board.MoveDetails](e)
	case e.Entity == audit.EntityCard && e.Action == audit.ActionCreate:
		_, err = details[board.CreateDetails](e)
	}
	return err
}

// Format renders an event for chat. ok is false for events the notifier
// does not announce.
func Format(e Event) (FormattedEvent, bool) {
	switch {
	case e.Entity == audit.EntityProject && lifecycleVerbs[e.Action] != "":
		return FormatLifecycle(e), true
	case e.Entity == audit.EntityCard && e.Action == audit.ActionMove:
		return FormatMove(e), true
	case e.Entity == audit.EntityCard && e.Action == audit.ActionCreate:
		return FormatCardCreated(e), true
	default:
		return FormattedEvent{}, false
	}
}

// FormatLifecycle formats a project start, pause, resume or close.
func FormatLifecycle(e Event) FormattedEvent {
	change, _ := details[lifecycleDetails](e)

	severity := lifecycleSeverity(e.Action)
	fe := FormattedEvent{
		Title:    fmt.Sprintf("Project %s %s", e.projectLabel(), lifecycleVerbs[e.Action]),
		Severity: severity,
		Color:    severityColor(severity),
		Fields: []Field{
			{Name: "Project", Value: e.projectLabel(), Short: true},
		},
	}
	if change.From != "" && change.To != "" {
		fe.Body = fmt.Sprintf("%s → %s", change.From, change.To)
		fe.Fields = append(fe.Fields, Field{Name: "Status", Value: string(change.To), Short: true})
	}
	return fe
}

// FormatMove formats a card move or in-column reorder.
func FormatMove(e Event) FormattedEvent {
	d, _ := details[board.MoveDetails](e)
	from, to := cmp.Or(d.FromName, d.From), cmp.Or(d.ToName, d.To)

	fe := FormattedEvent{
		Title:    fmt.Sprintf("Card %s moved to %s", e.cardLabel(), to),
		Body:     fmt.Sprintf("%s → %s", from, to),
		Severity: "info",
		Color:    ColorInfo,
		Fields: []Field{
			{Name: "Project", Value: e.projectLabel(), Short: true},
			{Name: "Position", Value: strconv.Itoa(d.Order + 1), Short: true},
		},
	}
	if d.From == board.SameColumn {
		fe.Title = fmt.Sprintf("Card %s reordered in %s", e.cardLabel(), to)
		fe.Body = ""
	}
	return fe
}

// FormatCardCreated formats a new card.
func FormatCardCreated(e Event) FormattedEvent {
	d, _ := details[board.CreateDetails](e)
	if d.Name != "" && e.CardName == "" {
		e.CardName = d.Name
	}
	return FormattedEvent{
		Title:    fmt.Sprintf("Card %s created", e.cardLabel()),
		Body:     fmt.Sprintf("Added to %s", d.Column),
		Severity: "info",
		Color:    ColorInfo,
		Fields: []Field{
			{Name: "Project", Value: e.projectLabel(), Short: true},
		},
	}
}

// FormatDigest formats the periodic summary of unfinished projects.
func FormatDigest(digests []ProjectDigest, at time.Time) FormattedEvent {
	fe := FormattedEvent{
		Title:    "Switchyard digest for " + at.UTC().Format("2006-01-02"),
		Severity: "info",
		Color:    ColorInfo,
		Fields: []Field{
			{Name: "Projects", Value: strconv.Itoa(len(digests)), Short: true},
		},
	}
	if len(digests) == 0 {
		fe.Body = "No open projects"
		return fe
	}
	for i, d := range digests {
		if i > 0 {
			fe.Body += "\n"
		}
		fe.Body += fmt.Sprintf("%s [%s] active %s, paused %s, %d/%d cards closed (%d%%)",
			d.Name, d.Snapshot.Status,
			msDuration(d.Snapshot.ActiveMs), msDuration(d.Snapshot.PausedMs),
			d.Stats.ClosedCards, d.Stats.TotalCards, d.Stats.CompletionPercentage)
	}
	return fe
}

func msDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
