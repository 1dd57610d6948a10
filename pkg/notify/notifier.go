// Package notify delivers reminder notifications when reminders fall due.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/scaledspace/pkg/store"
)

const (
	DefaultBody = "Time for your reminder!"
	DefaultIcon = "/assets/icons/icon-192.png"
)

// Notification is one user-visible alert. Tag identifies the reminder, so
// a host can replace rather than stack repeated alerts.
type Notification struct {
	Tag         string `json:"tag"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Icon        string `json:"icon"`
	ScheduledAt int64  `json:"scheduledAt"`
}

// FromReminder builds the notification shown for r.
func FromReminder(r store.Reminder) Notification {
	body := r.Description
	if body == "" {
		body = DefaultBody
	}
	return Notification{
		Tag:         r.ID,
		Title:       r.Title,
		Body:        body,
		Icon:        DefaultIcon,
		ScheduledAt: r.ScheduledAt,
	}
}

func (n Notification) String() string {
	return fmt.Sprintf("notification %s: %s", n.Tag, n.Title)
}

// Notifier shows notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "reminder due", "tag", n.Tag, "title", n.Title, "body", n.Body)
	return nil
}
