// Package dashboard derives aggregate compliance statistics from EVV record
// collections. Everything here is pure computation over the input slice.
package dashboard

import (
	"sort"
	"time"

	"carebridge/internal/evv/models"
	"carebridge/pkg/domain"
)

// topIssueLimit caps the ranked violation list.
const topIssueLimit = 10

// Generate filters records by state and inclusive date range, then computes
// the dashboard aggregates. An empty filtered set yields zero counts and a
// zero compliance rate; means are taken only over records where the measured
// field is present.
func Generate(state domain.StateCode, start, end time.Time, records []*models.EVVRecord) models.StateComplianceDashboard {
	d := models.StateComplianceDashboard{
		State:     state,
		StartDate: start,
		EndDate:   end,
	}

	var (
		distanceSum   float64
		distanceCount int
		accuracySum   float64
		accuracyCount int
		flagCounts    = map[string]int{}
	)

	for _, record := range records {
		if record.State != state {
			continue
		}
		if record.ServiceDate.Before(start) || record.ServiceDate.After(end) {
			continue
		}

		d.TotalVisits++

		switch {
		case record.IsFullyCompliant():
			d.CompliantVisits++
		case record.HasFlag(models.FlagCompliant):
			d.PartialVisits++
		default:
			d.NonCompliantVisits++
		}

		if record.ClockIn.WithinGeofence {
			d.GeofencePassed++
		} else {
			d.GeofenceFailed++
		}
		if record.ClockIn.DistanceFromAddress != nil {
			distanceSum += *record.ClockIn.DistanceFromAddress
			distanceCount++
		}
		if record.ClockIn.AccuracyMeters > 0 {
			accuracySum += record.ClockIn.AccuracyMeters
			accuracyCount++
		}

		if record.SubmittedToPayor {
			d.SubmittedToPayor++
		}
		switch record.PayorApprovalStatus {
		case models.ApprovalApproved:
			d.PayorApproved++
		case models.ApprovalDenied:
			d.PayorDenied++
		case models.ApprovalPending:
			d.PayorPending++
		}

		for _, flag := range record.ComplianceFlags {
			if flag != models.FlagCompliant {
				flagCounts[flag]++
			}
		}
	}

	if d.TotalVisits > 0 {
		d.ComplianceRate = float64(d.CompliantVisits) / float64(d.TotalVisits)
	}
	if distanceCount > 0 {
		d.AvgDistanceMeters = distanceSum / float64(distanceCount)
	}
	if accuracyCount > 0 {
		d.AvgAccuracyMeters = accuracySum / float64(accuracyCount)
	}
	d.TopIssues = rankIssues(flagCounts, d.TotalVisits)

	return d
}

// rankIssues orders violation flags by frequency, ties broken by flag name
// for deterministic output, and keeps the top ten.
func rankIssues(counts map[string]int, totalVisits int) []models.IssueFrequency {
	issues := make([]models.IssueFrequency, 0, len(counts))
	for flag, count := range counts {
		freq := models.IssueFrequency{Flag: flag, Count: count}
		if totalVisits > 0 {
			freq.Percentage = float64(count) / float64(totalVisits) * 100
		}
		issues = append(issues, freq)
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Count != issues[j].Count {
			return issues[i].Count > issues[j].Count
		}
		return issues[i].Flag < issues[j].Flag
	})
	if len(issues) > topIssueLimit {
		issues = issues[:topIssueLimit]
	}
	return issues
}
