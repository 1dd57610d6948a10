package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/aretw0/scaledspace/pkg/metrics"
	"github.com/aretw0/scaledspace/pkg/store"
)

const (
	DefaultInterval = time.Minute
	DefaultWindow   = time.Minute
)

// DueSource lists reminders due around a point in time.
type DueSource interface {
	DueReminders(ctx context.Context, now int64, window time.Duration) ([]store.Reminder, error)
}

// Scheduler polls for due reminders and notifies each once per process.
// Delivery is best-effort: a restart inside the window may repeat a
// notification and a process suspended across the window misses it.
type Scheduler struct {
	*worker.BaseWorker
	source   DueSource
	notifier Notifier
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger
	events   chan Notification
	cancel   context.CancelFunc

	mu       sync.Mutex
	notified map[string]int64 // reminder id -> scheduledAt that was notified
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithWindow(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a scheduler. It does nothing until started.
func NewScheduler(source DueSource, notifier Notifier, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		BaseWorker: worker.NewBaseWorker("reminder-scheduler"),
		source:     source,
		notifier:   notifier,
		interval:   DefaultInterval,
		window:     DefaultWindow,
		now:        time.Now,
		events:     make(chan Notification, 16),
		notified:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events delivers every notification sent. Events are dropped when nobody
// reads them.
func (s *Scheduler) Events() <-chan Notification {
	return s.events
}

func (s *Scheduler) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	status := s.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("scheduler already started (status: %s)", status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.SetStatus(worker.StatusRunning)
	return s.StartFunc(runCtx, s.run)
}

func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.StopRequested = true
		s.cancel()
	}
	return s.BaseWorker.Stop(ctx)
}

func (s *Scheduler) State() worker.State {
	return s.ExportState(func(st *worker.State) {
		st.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"interval":          s.interval.String(),
			"window":            s.window.String(),
		}
	})
}

func (s *Scheduler) run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.Check(ctx); err != nil && s.logger != nil && ctx.Err() == nil {
		s.logger.Warn("reminder check failed", "error", err)
	}
}

// Check runs one poll and returns how many notifications were sent.
func (s *Scheduler) Check(ctx context.Context) (int, error) {
	now := s.now().UnixMilli()
	due, err := s.source.DueReminders(ctx, now, s.window)
	if err != nil {
		return 0, fmt.Errorf("failed to list due reminders: %w", err)
	}

	s.mu.Lock()
	s.prune(now)
	var pending []store.Reminder
	for _, r := range due {
		if at, ok := s.notified[r.ID]; ok && at == r.ScheduledAt {
			continue
		}
		pending = append(pending, r)
	}
	s.mu.Unlock()

	sent := 0
	for _, r := range pending {
		n := FromReminder(r)
		if err := s.notifier.Notify(ctx, n); err != nil {
			if s.logger != nil {
				s.logger.Warn("notification failed", "tag", n.Tag, "error", err)
			}
			continue
		}
		s.mu.Lock()
		s.notified[r.ID] = r.ScheduledAt
		s.mu.Unlock()
		sent++
		metrics.NotificationsSent.Inc()
		select {
		case s.events <- n:
		default:
		}
	}
	return sent, nil
}

// prune forgets reminders that can no longer be due. Caller holds s.mu.
func (s *Scheduler) prune(now int64) {
	floor := now - s.window.Milliseconds()
	for id, at := range s.notified {
		if at <= floor {
			delete(s.notified, id)
		}
	}
}
