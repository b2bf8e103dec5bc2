// Package compliance applies state-parameterized EVV verification rules to a
// visit snapshot. Validation failures are data, not errors: the only error
// this service returns is a state-not-supported configuration fault.
package compliance

import (
	"fmt"
	"log/slog"

	"carebridge/internal/evv/geo"
	"carebridge/internal/evv/models"
	"carebridge/internal/evv/rules"
	"carebridge/pkg/domain"
)

type Service struct {
	catalog *rules.Catalog
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(catalog *rules.Catalog, opts ...Option) (*Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("rule catalog is required")
	}
	svc := &Service{catalog: catalog}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ValidateEVVForState evaluates a visit against one state's rules. The
// per-address geofence override, when present, replaces the state base radius.
// Valid is false if and only if Errors is non-empty.
func (s *Service) ValidateEVVForState(state domain.StateCode, visit models.VisitData, address models.ServiceAddress) (models.ValidationResult, error) {
	stateRules, err := s.catalog.Rules(state)
	if err != nil {
		return models.ValidationResult{}, err
	}

	result := models.ValidationResult{
		Errors:            []models.Issue{},
		Warnings:          []models.Issue{},
		RegulatoryContext: stateRules.RegulatoryContext,
	}

	if visit.GPSAccuracyMeters > stateRules.MaxAccuracyMeters {
		result.Errors = append(result.Errors, models.Issue{
			Code: models.IssueGPSAccuracyExceeded,
			Message: fmt.Sprintf("GPS accuracy %.0fm exceeds the %s limit of %.0fm",
				visit.GPSAccuracyMeters, state, stateRules.MaxAccuracyMeters),
		})
	}

	allowedRadius, err := s.catalog.AllowedRadius(state, visit.GPSAccuracyMeters, address.RadiusMeters)
	if err != nil {
		return models.ValidationResult{}, err
	}

	clockInDistance := geo.Distance(
		visit.ClientCoordinates.Latitude, visit.ClientCoordinates.Longitude,
		visit.ClockIn.Latitude, visit.ClockIn.Longitude,
	)
	if clockInDistance > allowedRadius {
		result.Errors = append(result.Errors, models.Issue{
			Code: models.IssueGeofenceViolation,
			Message: fmt.Sprintf("clock-in was %.0fm from the service address; the allowed radius is %.0fm",
				clockInDistance, allowedRadius),
		})
	}

	if visit.HasClockOut() {
		clockOutDistance := geo.Distance(
			visit.ClientCoordinates.Latitude, visit.ClientCoordinates.Longitude,
			visit.ClockOut.Latitude, visit.ClockOut.Longitude,
		)
		if clockOutDistance > allowedRadius {
			result.Errors = append(result.Errors, models.Issue{
				Code: models.IssueClockOutGeofenceViolation,
				Message: fmt.Sprintf("clock-out was %.0fm from the service address; the allowed radius is %.0fm",
					clockOutDistance, allowedRadius),
			})
		}
		if !visit.ClockOutTime.After(visit.ClockInTime) {
			result.Errors = append(result.Errors, models.Issue{
				Code:    models.IssueClockOutBeforeClockIn,
				Message: "clock-out time must follow clock-in time",
			})
		}
	}

	if !address.Verified {
		result.Warnings = append(result.Warnings, models.Issue{
			Code:    models.IssueUnverifiedAddress,
			Message: "the service address has not been verified; geofence results may be unreliable",
		})
	}

	result.Valid = len(result.Errors) == 0

	if s.logger != nil && !result.Valid {
		s.logger.Debug("EVV validation failed",
			"state", state,
			"errors", len(result.Errors),
			"warnings", len(result.Warnings),
		)
	}

	return result, nil
}
