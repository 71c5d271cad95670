package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/candidly/backend/internal/logging"
	"github.com/candidly/backend/internal/metrics"
	"github.com/candidly/backend/internal/onboarding"
)

// OnboardingHandler tells a page which onboarding stage the caller is on.
type OnboardingHandler struct {
	Stages onboarding.StageResolver
}

type onboardingResponse struct {
	Stage      onboarding.Stage `json:"stage"`
	Route      string           `json:"route"`
	RedirectTo string           `json:"redirectTo,omitempty"`
}

// Resolve handles GET /api/v1/onboarding?page=<stage>. Anonymous callers stay
// on the profile stage.
func (h OnboardingHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Stages == nil {
		logger.Error("onboarding resolver unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "onboarding services unavailable")
		return
	}

	var (
		page    onboarding.Stage
		hasPage bool
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, hasPage = onboarding.ParseStage(raw)
		if !hasPage {
			respondError(ctx, w, http.StatusBadRequest, "unknown page")
			return
		}
	}

	tracker := onboarding.NewTracker(h.Stages)
	stage, err := tracker.Refresh(ctx)
	if err != nil {
		logger.Error("onboarding resolution failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to resolve onboarding stage")
		return
	}

	resp := onboardingResponse{Stage: stage, Route: stage.Route()}
	redirected := false
	if hasPage {
		redirected = tracker.RedirectIfNeeded(page, onboarding.NavigatorFunc(func(route string) {
			resp.RedirectTo = route
		}))
	}
	metrics.ObserveStage(stage.String(), redirected)

	respondJSON(ctx, w, http.StatusOK, resp)
}

// refreshStage recomputes the stage after a mutation. Failures are logged and
// reported as ok=false so the mutation response still succeeds.
func refreshStage(ctx context.Context, resolver onboarding.StageResolver) (onboarding.Stage, bool) {
	if resolver == nil {
		return "", false
	}
	stage, err := onboarding.NewTracker(resolver).Refresh(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("stage refresh after update failed", "error", err)
		return "", false
	}
	return stage, true
}
