package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Window is an open client window of the application.
type Window interface {
	URL() string
	Focus(ctx context.Context) error
}

// Host enumerates and opens client windows.
type Host interface {
	Windows(ctx context.Context) ([]Window, error)
	Open(ctx context.Context, url string) (Window, error)
}

// HandleClick responds to a notification click: it focuses the first open
// window already showing the application, or opens a new one at appURL.
func HandleClick(ctx context.Context, host Host, appURL string) error {
	app, err := url.Parse(appURL)
	if err != nil {
		return fmt.Errorf("invalid application url %q: %w", appURL, err)
	}

	windows, err := host.Windows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}
	for _, w := range windows {
		if sameApp(app, w.URL()) {
			return w.Focus(ctx)
		}
	}

	if _, err := host.Open(ctx, appURL); err != nil {
		return fmt.Errorf("failed to open window: %w", err)
	}
	return nil
}

func sameApp(app *url.URL, raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, app.Scheme) || !strings.EqualFold(u.Host, app.Host) {
		return false
	}
	prefix := app.Path
	if prefix == "" {
		prefix = "/"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return strings.HasPrefix(path, prefix)
}
