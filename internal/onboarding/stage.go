package onboarding

import "strings"

// Stage is a step of candidate onboarding. It is never stored; it is recomputed
// from the profile and resume records on every load.
type Stage string

const (
	StageProfile   Stage = "profile"
	StageResume    Stage = "resume"
	StageDashboard Stage = "dashboard"
)

const (
	RouteProfile   = "/onboarding/profile"
	RouteResume    = "/upload-resume"
	RouteDashboard = "/dashboard"
)

// StageFor maps profile completeness and resume existence onto a stage.
func StageFor(profileComplete, hasResume bool) Stage {
	switch {
	case !profileComplete:
		return StageProfile
	case !hasResume:
		return StageResume
	default:
		return StageDashboard
	}
}

// ParseStage accepts a stage name or its canonical route.
func ParseStage(value string) (Stage, bool) {
	value = strings.TrimSpace(value)
	for _, stage := range []Stage{StageProfile, StageResume, StageDashboard} {
		if strings.EqualFold(value, string(stage)) || value == stage.Route() {
			return stage, true
		}
	}
	return "", false
}

// Route returns the page a browser on this stage belongs on.
func (s Stage) Route() string {
	switch s {
	case StageResume:
		return RouteResume
	case StageDashboard:
		return RouteDashboard
	default:
		return RouteProfile
	}
}

func (s Stage) String() string { return string(s) }
