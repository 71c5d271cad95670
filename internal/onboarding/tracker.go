package onboarding

import (
	"context"
	"log/slog"
	"sync"

	"github.com/candidly/backend/internal/logging"
)

// Navigator replaces the current page with route.
type Navigator interface {
	Replace(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

// Replace calls f(route).
func (f NavigatorFunc) Replace(route string) { f(route) }

// Tracker holds the stage for one page instance. It starts out loading on the
// profile stage and only changes when Refresh is called.
type Tracker struct {
	resolver StageResolver

	mu      sync.Mutex
	stage   Stage
	loading bool
	err     error
}

// NewTracker returns a tracker that has not resolved anything yet.
func NewTracker(resolver StageResolver) *Tracker {
	return &Tracker{resolver: resolver, stage: StageProfile, loading: true}
}

// Refresh recomputes the stage. On error the previous stage is kept and the
// error is recorded; loading is cleared either way.
func (t *Tracker) Refresh(ctx context.Context) (Stage, error) {
	t.mu.Lock()
	t.loading = true
	t.mu.Unlock()

	stage, err := t.resolver.Resolve(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.loading = false
	t.err = err
	if err != nil {
		logging.FromContext(ctx).Warn("onboarding refresh failed", slog.String("error", err.Error()))
		return t.stage, err
	}
	t.stage = stage
	return stage, nil
}

// Stage returns the last resolved stage.
func (t *Tracker) Stage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// Loading reports whether a refresh is pending or in flight.
func (t *Tracker) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading
}

// Err returns the error from the last refresh, if any.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// RedirectIfNeeded navigates to the stage's route when page is not the current
// stage. It never navigates while loading. It reports whether it navigated.
func (t *Tracker) RedirectIfNeeded(page Stage, nav Navigator) bool {
	t.mu.Lock()
	loading, stage := t.loading, t.stage
	t.mu.Unlock()

	if loading || nav == nil || page == stage {
		return false
	}
	nav.Replace(stage.Route())
	return true
}
