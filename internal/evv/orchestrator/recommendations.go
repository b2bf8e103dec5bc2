package orchestrator

import (
	"fmt"
	"strings"

	"carebridge/internal/evv/models"
	"carebridge/pkg/domain"
)

// readyForSubmission is the affirmative fallback: the recommendation list is
// never left empty.
const readyForSubmission = "Visit verification passed all checks and is ready for submission."

// buildRecommendations produces the ordered, deterministic guidance list for
// one feedback object. State-specific nuance comes from the catalog's advice
// hook, not from inline state branches.
func (s *Service) buildRecommendations(state domain.StateCode, feedback *models.RealTimeValidationFeedback) []string {
	var recs []string

	if !feedback.Geofence.WithinBounds {
		excess := feedback.Geofence.DistanceMeters - feedback.Geofence.AllowedRadiusMeters
		recs = append(recs, fmt.Sprintf(
			"Clock-in was %.0fm outside the allowed radius (%.0fm over the %.0fm limit). Re-verify the location or request a supervisor-approved manual override.",
			excess, excess, feedback.Geofence.AllowedRadiusMeters))
		if advice := s.catalog.Advice(state); advice != nil {
			recs = append(recs, fmt.Sprintf(
				"%s corrections go through the %s workflow and must be filed within %d days of the visit.",
				state, advice.Workflow, advice.WindowDays))
		}
	}

	if !feedback.GracePeriod.WithinGrace {
		minutes := feedback.GracePeriod.MinutesFromScheduled
		if minutes < 0 {
			recs = append(recs, fmt.Sprintf(
				"Clock-in was %d minutes before the scheduled start; the grace window is %d minutes.",
				-minutes, feedback.GracePeriod.AllowedGraceMinutes))
		} else {
			recs = append(recs, fmt.Sprintf(
				"Clock-in was %d minutes after the scheduled start; the grace window is %d minutes.",
				minutes, feedback.GracePeriod.AllowedGraceMinutes))
		}
	}

	for _, issue := range feedback.Validation.Errors {
		if issue.Code == models.IssueGPSAccuracyExceeded {
			recs = append(recs, "GPS accuracy was too low for verification. Move away from buildings or reposition for better satellite signal, then re-verify.")
		}
	}

	if len(feedback.RequiredAggregators) > 1 && len(feedback.Validation.Errors) > 0 {
		recs = append(recs, fmt.Sprintf(
			"%s submits to multiple aggregators (%s). Verify payor-specific routing before resubmitting.",
			state, strings.Join(feedback.RequiredAggregators, ", ")))
	}

	if len(recs) == 0 {
		recs = append(recs, readyForSubmission)
	}
	return recs
}
