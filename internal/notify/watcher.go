package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/switchyard/internal/audit"
	"github.com/zulandar/switchyard/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultPollInterval is used when WatcherOpts leaves it unset.
const DefaultPollInterval = 5 * time.Second

// rescanWindow is how many ids below the cursor each poll reads again.
// MySQL assigns auto-increment ids at insert time, so a transaction holding
// a lower id can commit after a higher id has already been delivered.
const rescanWindow = 256

// Event is one audit entry enriched with display names.
type Event struct {
	AuditID     uint
	Action      string
	Entity      string
	EntityID    string
	ProjectID   string
	ProjectName string
	CardName    string
	ActorID     string
	Details     string
	At          time.Time
}

func (e Event) projectLabel() string {
	if e.ProjectName != "" {
		return e.ProjectName
	}
	return e.ProjectID
}

func (e Event) cardLabel() string {
	if e.CardName != "" {
		return e.CardName
	}
	return e.EntityID
}

// Watcher tails the audit log. The first poll only records the current
// position so a restarted notifier does not replay history.
type Watcher struct {
	db           *gorm.DB
	pollInterval time.Duration
	logger       *zap.Logger

	mu     sync.Mutex
	floor  uint // ids at or below floor predate Seed
	cursor uint // highest id delivered
	seen   map[uint]struct{}
	seeded bool
}

// WatcherOpts holds parameters for creating a Watcher.
type WatcherOpts struct {
	DB           *gorm.DB
	PollInterval time.Duration // defaults to DefaultPollInterval
	Logger       *zap.Logger
}

// NewWatcher creates a Watcher.
func NewWatcher(opts WatcherOpts) (*Watcher, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("notify: watcher: db is required")
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{db: opts.DB, pollInterval: poll, logger: logger, seen: map[uint]struct{}{}}, nil
}

// Seed moves the cursor to the newest audit entry.
func (w *Watcher) Seed(ctx context.Context) error {
	latest, err := audit.LatestID(ctx, w.db)
	if err != nil {
		return fmt.Errorf("notify: watcher: seed: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.floor, w.cursor = latest, latest
	clear(w.seen)
	w.seeded = true
	return nil
}

// Poll returns the audit entries written since the previous poll,
// including late commits that landed below the cursor.
func (w *Watcher) Poll(ctx context.Context) ([]Event, error) {
	w.mu.Lock()
	seeded, from := w.seeded, w.floor
	if w.cursor > w.floor+rescanWindow {
		from = w.cursor - rescanWindow
	}
	w.mu.Unlock()
	if !seeded {
		return nil, w.Seed(ctx)
	}

	all, err := audit.List(ctx, w.db, audit.Filter{AfterID: from, Limit: rescanWindow + audit.DefaultLimit})
	if err != nil {
		return nil, fmt.Errorf("notify: watcher: %w", err)
	}
	w.mu.Lock()
	var rows []models.AuditLog
	for _, r := range all {
		if _, ok := w.seen[r.ID]; !ok {
			rows = append(rows, r)
		}
	}
	w.mu.Unlock()
	if len(rows) == 0 {
		return nil, nil
	}

	projects, cards, err := w.names(ctx, rows)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		e := Event{
			AuditID:     r.ID,
			Action:      r.Action,
			Entity:      r.Entity,
			EntityID:    r.EntityID,
			ProjectID:   r.ProjectID,
			ProjectName: projects[r.ProjectID],
			ActorID:     r.UserID,
			Details:     r.Details,
			At:          r.CreatedAt,
		}
		if r.Entity == audit.EntityCard {
			e.CardName = cards[r.EntityID]
		}
		if err := checkDetails(e); err != nil {
			w.logger.Debug("unreadable audit details, formatting without them",
				zap.Uint("audit_id", r.ID), zap.String("action", r.Action), zap.Error(err))
			e.Details = ""
		}
		events = append(events, e)
	}

	w.mu.Lock()
	for _, r := range rows {
		w.seen[r.ID] = struct{}{}
		w.cursor = max(w.cursor, r.ID)
	}
	for id := range w.seen {
		if id+rescanWindow < w.cursor {
			delete(w.seen, id)
		}
	}
	w.mu.Unlock()
	return events, nil
}

// names resolves project and card names for a batch of rows. Rows whose
// entity has since been deleted keep an empty name.
func (w *Watcher) names(ctx context.Context, rows []models.AuditLog) (map[string]string, map[string]string, error) {
	var projectIDs, cardIDs []string
	for _, r := range rows {
		projectIDs = append(projectIDs, r.ProjectID)
		if r.Entity == audit.EntityCard {
			cardIDs = append(cardIDs, r.EntityID)
		}
	}

	projects := map[string]string{}
	var ps []models.Project
	if err := w.db.WithContext(ctx).Select("id", "name").Where("id IN ?", projectIDs).Find(&ps).Error; err != nil {
		return nil, nil, fmt.Errorf("notify: watcher: project names: %w", err)
	}
	for _, p := range ps {
		projects[p.ID] = p.Name
	}

	cards := map[string]string{}
	if len(cardIDs) > 0 {
		var cs []models.Card
		if err := w.db.WithContext(ctx).Select("id", "name").Where("id IN ?", cardIDs).Find(&cs).Error; err != nil {
			return nil, nil, fmt.Errorf("notify: watcher: card names: %w", err)
		}
		for _, c := range cs {
			cards[c.ID] = c.Name
		}
	}
	return projects, cards, nil
}

// Run polls on the configured interval and sends events to the returned
// channel. The channel is closed when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) <-chan Event {
	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				events, err := w.Poll(ctx)
				if err != nil {
					w.logger.Warn("audit poll failed", zap.Error(err))
					continue
				}
				for _, e := range events {
					select {
					case ch <- e:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return ch
}
