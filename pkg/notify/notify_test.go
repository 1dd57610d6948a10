package notify_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/scaledspace/pkg/adapters/bolt"
	"github.com/aretw0/scaledspace/pkg/notify"
	"github.com/aretw0/scaledspace/pkg/store"
)

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
	fail bool
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("permission denied")
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Tag)
	}
	return out
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(bolt.NewRepository(bolt.Config{Path: filepath.Join(t.TempDir(), "notify.db")}))
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSchedulerCheck(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	c := &clock{t: time.UnixMilli(1_700_000_000_000)}
	now := c.Now().UnixMilli()

	require.NoError(t, s.Reminders.Add(ctx, store.Reminder{ID: "soon", Title: "Stand up", ScheduledAt: now + 30_000}))
	require.NoError(t, s.Reminders.Add(ctx, store.Reminder{ID: "later", Title: "Lunch", ScheduledAt: now + 10*60_000}))
	require.NoError(t, s.Reminders.Add(ctx, store.Reminder{ID: "long-ago", Title: "Old", ScheduledAt: now - 10*60_000}))

	rec := &recorder{}
	sched := notify.NewScheduler(s, rec, notify.WithClock(c.Now))

	sent, err := sched.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"soon"}, rec.tags())

	t.Run("Dedupes Within Window", func(t *testing.T) {
		c.Advance(30 * time.Second)
		sent, err := sched.Check(ctx)
		require.NoError(t, err)
		assert.Zero(t, sent)
	})

	t.Run("Rescheduled Reminder Fires Again", func(t *testing.T) {
		require.NoError(t, s.Reminders.Put(ctx, store.Reminder{ID: "soon", Title: "Stand up", ScheduledAt: c.Now().UnixMilli() + 10_000}))
		sent, err := sched.Check(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sent)
	})

	t.Run("Later Reminder Fires When Due", func(t *testing.T) {
		c.Advance(9 * time.Minute)
		sent, err := sched.Check(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sent)
		assert.Equal(t, []string{"soon", "soon", "later"}, rec.tags())
	})

	t.Run("Notification Content", func(t *testing.T) {
		n := rec.sent[0]
		assert.Equal(t, "Stand up", n.Title)
		assert.Equal(t, notify.DefaultBody, n.Body)
		assert.Equal(t, notify.DefaultIcon, n.Icon)
	})
}

func TestSchedulerFailedNotifyRetries(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	c := &clock{t: time.UnixMilli(1_700_000_000_000)}
	require.NoError(t, s.Reminders.Add(ctx, store.Reminder{ID: "r", ScheduledAt: c.Now().UnixMilli()}))

	rec := &recorder{fail: true}
	sched := notify.NewScheduler(s, rec, notify.WithClock(c.Now))

	sent, err := sched.Check(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	rec.mu.Lock()
	rec.fail = false
	rec.mu.Unlock()

	sent, err = sched.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestSchedulerWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newStore(t)
	require.NoError(t, s.Reminders.Add(ctx, store.Reminder{ID: "now", Title: "Now", ScheduledAt: time.Now().UnixMilli()}))

	got := make(chan notify.Notification, 1)
	sched := notify.NewScheduler(s, notify.NotifierFunc(func(_ context.Context, n notify.Notification) error {
		got <- n
		return nil
	}), notify.WithInterval(10*time.Millisecond))

	require.NoError(t, sched.Start(ctx))
	select {
	case n := <-got:
		assert.Equal(t, "now", n.Tag)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}

	select {
	case n := <-sched.Events():
		assert.Equal(t, "now", n.Tag)
	case <-time.After(time.Second):
		t.Fatal("expected a sent event")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, sched.Stop(stopCtx))
}

type window struct {
	url     string
	focused bool
}

func (w *window) URL() string { return w.url }

func (w *window) Focus(context.Context) error {
	w.focused = true
	return nil
}

type host struct {
	windows []*window
	opened  []string
}

func (h *host) Windows(context.Context) ([]notify.Window, error) {
	out := make([]notify.Window, 0, len(h.windows))
	for _, w := range h.windows {
		out = append(out, w)
	}
	return out, nil
}

func (h *host) Open(_ context.Context, url string) (notify.Window, error) {
	h.opened = append(h.opened, url)
	w := &window{url: url}
	h.windows = append(h.windows, w)
	return w, nil
}

func TestHandleClick(t *testing.T) {
	ctx := context.Background()

	t.Run("Focuses Existing Window", func(t *testing.T) {
		other := &window{url: "https://example.org/"}
		app := &window{url: "https://scaledspace.local/notes?id=1"}
		h := &host{windows: []*window{other, app}}

		require.NoError(t, notify.HandleClick(ctx, h, "https://scaledspace.local/"))
		assert.True(t, app.focused)
		assert.False(t, other.focused)
		assert.Empty(t, h.opened)
	})

	t.Run("Opens When None Match", func(t *testing.T) {
		h := &host{windows: []*window{{url: "https://scaledspace.local.evil/"}}}
		require.NoError(t, notify.HandleClick(ctx, h, "https://scaledspace.local/app/"))
		assert.Equal(t, []string{"https://scaledspace.local/app/"}, h.opened)
	})

	t.Run("Respects Path Prefix", func(t *testing.T) {
		outside := &window{url: "https://scaledspace.local/blog"}
		h := &host{windows: []*window{outside}}
		require.NoError(t, notify.HandleClick(ctx, h, "https://scaledspace.local/app/"))
		assert.False(t, outside.focused)
		assert.Len(t, h.opened, 1)
	})
}
