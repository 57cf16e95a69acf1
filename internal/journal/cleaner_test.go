package journal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/foxzi/listctl/api"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanerRunOnce(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		storage.Record(ctx, record(fmt.Sprintf("r%d", i), "List/GetInfo", api.OutcomeOK, time.Now().Add(-time.Duration(i)*time.Minute)))
	}

	c := NewCleaner(storage, CleanerConfig{MaxCount: 1, Interval: time.Hour}, newTestLogger())
	if deleted := c.RunOnce(ctx); deleted != 3 {
		t.Errorf("RunOnce() = %d, want 3", deleted)
	}
	if deleted := c.RunOnce(ctx); deleted != 0 {
		t.Errorf("second RunOnce() = %d, want 0", deleted)
	}

	left, _ := storage.List(ctx, Filter{})
	if len(left) != 1 || left[0].ID != "r0" {
		t.Errorf("remaining = %v, want only r0", left)
	}
}

func TestCleanerStartStop(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	storage.Record(ctx, record("old", "List/GetList", api.OutcomeOK, time.Now().Add(-48*time.Hour)))
	storage.Record(ctx, record("new", "List/GetList", api.OutcomeOK, time.Now()))

	c := NewCleaner(storage, CleanerConfig{MaxAge: 24 * time.Hour, Interval: time.Hour}, newTestLogger())
	c.Start(ctx)

	// the first pass runs as soon as the loop starts
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, _ := storage.Get(ctx, "old")
		if rec == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("old record was not cleaned up")
		}
		time.Sleep(10 * time.Millisecond)
	}

	c.Stop()
	c.Stop()

	if rec, _ := storage.Get(ctx, "new"); rec == nil {
		t.Error("new record was removed")
	}
}

func TestCleanerDisabled(t *testing.T) {
	storage := newTestStorage(t)

	tests := []struct {
		name string
		cfg  CleanerConfig
	}{
		{name: "no limits", cfg: CleanerConfig{Interval: time.Millisecond}},
		{name: "no interval", cfg: CleanerConfig{MaxCount: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCleaner(storage, tt.cfg, newTestLogger())
			c.Start(context.Background())

			done := make(chan struct{})
			go func() {
				c.Stop()
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("Stop() blocked for a cleaner that never started")
			}
		})
	}
}
