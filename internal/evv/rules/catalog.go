// Package rules holds the per-state EVV rule catalog. Rules are loaded once
// at process start and read-only afterwards; lookups need no synchronization.
//
// An unconfigured state is a configuration error, fatal to the current call.
// Callers must never default to another state's rules.
package rules

import (
	"fmt"

	"carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

// AllowancePolicy selects how reported GPS accuracy widens the geofence.
type AllowancePolicy string

const (
	// AllowanceAccuracy adds the reported GPS accuracy to the base radius.
	AllowanceAccuracy AllowancePolicy = "accuracy"

	// AllowanceFixed adds a fixed per-state tolerance to the base radius,
	// ignoring reported accuracy.
	AllowanceFixed AllowancePolicy = "fixed"
)

// GracePeriod is the permitted clock-in offset from the scheduled start.
type GracePeriod struct {
	EarlyClockInMinutes int
	LateClockInMinutes  int
}

// CorrectionAdvice is the per-state advice hook for geofence violations. It
// keeps state-specific workflow prose out of orchestrator control flow, and
// the window is configuration because regulatory windows change independently
// of code releases.
type CorrectionAdvice struct {
	Workflow   string
	WindowDays int
}

// StateRules is the full rule set for one state.
type StateRules struct {
	BaseRadiusMeters     float64
	Allowance            AllowancePolicy
	FixedAllowanceMeters float64
	MaxAccuracyMeters    float64
	Grace                GracePeriod
	Aggregators          []string
	RegulatoryContext    string
	Advice               *CorrectionAdvice
}

// Catalog answers per-state rule lookups.
type Catalog struct {
	states map[domain.StateCode]StateRules
}

// NewCatalog builds the catalog with the states this deployment supports.
func NewCatalog() *Catalog {
	return &Catalog{states: defaultStates()}
}

// NewCatalogWith builds a catalog from an explicit rule set. Used by tests
// and by deployments that load rules from configuration.
func NewCatalogWith(states map[domain.StateCode]StateRules) *Catalog {
	copied := make(map[domain.StateCode]StateRules, len(states))
	for code, r := range states {
		copied[code] = r
	}
	return &Catalog{states: copied}
}

func defaultStates() map[domain.StateCode]StateRules {
	return map[domain.StateCode]StateRules{
		"TX": {
			BaseRadiusMeters:  100,
			Allowance:         AllowanceAccuracy,
			MaxAccuracyMeters: 100,
			Grace:             GracePeriod{EarlyClockInMinutes: 10, LateClockInMinutes: 15},
			Aggregators:       []string{"HHAeXchange"},
			RegulatoryContext: "1 TAC §354.4005 (Texas HHSC EVV)",
			Advice:            &CorrectionAdvice{Workflow: "Visit Maintenance Unlock Request", WindowDays: 30},
		},
		"OH": {
			BaseRadiusMeters:  150,
			Allowance:         AllowanceAccuracy,
			MaxAccuracyMeters: 100,
			Grace:             GracePeriod{EarlyClockInMinutes: 15, LateClockInMinutes: 15},
			Aggregators:       []string{"Sandata"},
			RegulatoryContext: "OAC 5160-1-40 (Ohio Medicaid EVV)",
		},
		"CA": {
			BaseRadiusMeters:     200,
			Allowance:            AllowanceFixed,
			FixedAllowanceMeters: 50,
			MaxAccuracyMeters:    150,
			Grace:                GracePeriod{EarlyClockInMinutes: 15, LateClockInMinutes: 30},
			Aggregators:          []string{"CalEVV"},
			RegulatoryContext:    "W&I Code §14132.956 (CalEVV)",
		},
		"FL": {
			BaseRadiusMeters:     100,
			Allowance:            AllowanceFixed,
			FixedAllowanceMeters: 30,
			MaxAccuracyMeters:    100,
			Grace:                GracePeriod{EarlyClockInMinutes: 10, LateClockInMinutes: 10},
			Aggregators:          []string{"Tellus", "Netsmart"},
			RegulatoryContext:    "§409.9132, Florida Statutes (AHCA EVV)",
		},
		"PA": {
			BaseRadiusMeters:  150,
			Allowance:         AllowanceAccuracy,
			MaxAccuracyMeters: 120,
			Grace:             GracePeriod{EarlyClockInMinutes: 15, LateClockInMinutes: 20},
			Aggregators:       []string{"Sandata", "HHAeXchange"},
			RegulatoryContext: "55 Pa. Code Ch. 52 (Pennsylvania DHS EVV)",
		},
	}
}

// Rules returns the full rule set for a state.
func (c *Catalog) Rules(state domain.StateCode) (StateRules, error) {
	r, ok := c.states[state]
	if !ok {
		return StateRules{}, fmt.Errorf("state %s: %w", state, sentinel.ErrStateNotSupported)
	}
	return r, nil
}

// GeofenceRadius returns the allowed clock-in radius for a state given the
// reported GPS accuracy.
func (c *Catalog) GeofenceRadius(state domain.StateCode, gpsAccuracy float64) (float64, error) {
	return c.AllowedRadius(state, gpsAccuracy, nil)
}

// AllowedRadius is GeofenceRadius with an optional per-address base override.
// The compliance service and the orchestrator both compute geofence bounds
// through this single path so their results always agree.
func (c *Catalog) AllowedRadius(state domain.StateCode, gpsAccuracy float64, baseOverride *float64) (float64, error) {
	r, err := c.Rules(state)
	if err != nil {
		return 0, err
	}
	base := r.BaseRadiusMeters
	if baseOverride != nil && *baseOverride > 0 {
		base = *baseOverride
	}
	switch r.Allowance {
	case AllowanceFixed:
		return base + r.FixedAllowanceMeters, nil
	default:
		return base + gpsAccuracy, nil
	}
}

// GracePeriods returns the clock-in grace window for a state.
func (c *Catalog) GracePeriods(state domain.StateCode) (GracePeriod, error) {
	r, err := c.Rules(state)
	if err != nil {
		return GracePeriod{}, err
	}
	return r.Grace, nil
}

// RequiredAggregators returns the aggregator targets a state mandates.
func (c *Catalog) RequiredAggregators(state domain.StateCode) ([]string, error) {
	r, err := c.Rules(state)
	if err != nil {
		return nil, err
	}
	return append([]string{}, r.Aggregators...), nil
}

// RegulatoryContext returns the free-text citation for the audit trail.
func (c *Catalog) RegulatoryContext(state domain.StateCode) (string, error) {
	r, err := c.Rules(state)
	if err != nil {
		return "", err
	}
	return r.RegulatoryContext, nil
}

// MaxAccuracy returns the GPS accuracy ceiling above which a clock event is a
// hard validation error.
func (c *Catalog) MaxAccuracy(state domain.StateCode) (float64, error) {
	r, err := c.Rules(state)
	if err != nil {
		return 0, err
	}
	return r.MaxAccuracyMeters, nil
}

// Advice returns the state's correction-workflow advice hook, or nil when the
// state has none.
func (c *Catalog) Advice(state domain.StateCode) *CorrectionAdvice {
	if r, ok := c.states[state]; ok {
		return r.Advice
	}
	return nil
}

// Supported lists the configured state codes.
func (c *Catalog) Supported() []domain.StateCode {
	codes := make([]domain.StateCode, 0, len(c.states))
	for code := range c.states {
		codes = append(codes, code)
	}
	return codes
}
