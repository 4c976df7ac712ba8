package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestClose_WaitsForExpirySweep(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var finished atomic.Bool

	a := &App{}
	a.startExpiry(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		// A sweep that is still writing when shutdown begins.
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})
	<-started

	a.Close()

	if !finished.Load() {
		t.Fatal("Close returned before the expiry sweep finished")
	}

	// A second Close must not block or panic.
	a.Close()
}
