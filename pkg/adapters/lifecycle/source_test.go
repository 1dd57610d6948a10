package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/scaledspace/pkg/adapters/lifecycle"
	"github.com/aretw0/scaledspace/pkg/offline"
)

func TestSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan offline.Event, 1)
	src := lifecycle.NewSource[offline.Event](events)
	if err := src.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	events <- offline.Event{Generation: "scaledspace-cache-v1", State: offline.StateActive}

	select {
	case e := <-src.Events():
		if e.String() != "cache scaledspace-cache-v1 active" {
			t.Errorf("unexpected event %q", e.String())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	close(events)
	select {
	case _, ok := <-src.Events():
		if ok {
			t.Error("expected the source to close with its input")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close")
	}
}
