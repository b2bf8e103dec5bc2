// Package models defines the EVV vertical's domain types. Records are owned
// by the EVV vertical; validation feedback is computed per call and never
// persisted.
package models

import (
	"time"

	"carebridge/pkg/domain"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// VisitData is the ephemeral snapshot a single validation call runs against.
// Invariant: ClockOut and ClockOutTime are either both present or both absent.
type VisitData struct {
	ClientCoordinates Coordinates
	ClockIn           Coordinates
	ClockOut          *Coordinates
	ClockInTime       time.Time
	ClockOutTime      *time.Time
	ScheduledStart    time.Time
	GPSAccuracyMeters float64
}

// HasClockOut reports whether the visit carries complete clock-out data.
func (v VisitData) HasClockOut() bool {
	return v.ClockOut != nil && v.ClockOutTime != nil
}

// ServiceAddress is the client's service location. Owned by the client/visit
// record; read-only to this vertical.
type ServiceAddress struct {
	Line1        string   `json:"line1"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	PostalCode   string   `json:"postal_code"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	RadiusMeters *float64 `json:"radius_meters,omitempty"` // per-address geofence override
	Verified     bool     `json:"verified"`
}

// Coordinates returns the address location as a point.
func (a ServiceAddress) Coordinates() Coordinates {
	return Coordinates{Latitude: a.Latitude, Longitude: a.Longitude}
}

// ClockVerification captures one clock event's location evidence.
type ClockVerification struct {
	Coordinates         Coordinates `json:"coordinates"`
	AccuracyMeters      float64     `json:"accuracy_meters"`
	Timestamp           time.Time   `json:"timestamp"`
	WithinGeofence      bool        `json:"within_geofence"`
	DistanceFromAddress *float64    `json:"distance_from_address,omitempty"`
}

// ApprovalStatus is the payor's verdict on a submitted record.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalDenied   ApprovalStatus = "DENIED"
)

// FlagCompliant is the literal flag marking a record as compliant; any
// additional flags name specific violations.
const FlagCompliant = "COMPLIANT"

// FlagOutsideGracePeriod marks a clock-in outside the grace window. Advisory:
// it coexists with FlagCompliant on otherwise-valid records.
const FlagOutsideGracePeriod = "OUTSIDE_GRACE_PERIOD"

// EVVRecord is the persisted verification record for one visit. Created on
// clock-in, mutated on clock-out and on each validation/submission pass.
// Archived records are immutable; corrections after the regulatory cutoff go
// through a separate unlock workflow outside this vertical.
type EVVRecord struct {
	VisitID     domain.VisitID     `json:"visit_id"`
	ClientID    domain.ClientID    `json:"client_id"`
	CaregiverID domain.CaregiverID `json:"caregiver_id"`
	State       domain.StateCode   `json:"state"`
	ServiceDate time.Time          `json:"service_date"`

	ServiceAddress ServiceAddress     `json:"service_address"`
	ScheduledStart time.Time          `json:"scheduled_start"`
	ClockIn        ClockVerification  `json:"clock_in"`
	ClockOut       *ClockVerification `json:"clock_out,omitempty"`

	ComplianceFlags []string `json:"compliance_flags"`

	SubmittedToPayor    bool           `json:"submitted_to_payor"`
	PayorApprovalStatus ApprovalStatus `json:"payor_approval_status"`

	Archived bool `json:"archived"`
}

// HasFlag reports whether the record carries the given compliance flag.
func (r *EVVRecord) HasFlag(flag string) bool {
	for _, f := range r.ComplianceFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// IsFullyCompliant reports flags == {COMPLIANT} exactly.
func (r *EVVRecord) IsFullyCompliant() bool {
	return len(r.ComplianceFlags) == 1 && r.ComplianceFlags[0] == FlagCompliant
}

// Issue is one validation error or warning.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validation issue codes.
const (
	IssueGPSAccuracyExceeded       = "GPS_ACCURACY_EXCEEDED"
	IssueGeofenceViolation         = "GEOFENCE_VIOLATION"
	IssueClockOutGeofenceViolation = "CLOCK_OUT_GEOFENCE_VIOLATION"
	IssueClockOutBeforeClockIn     = "CLOCK_OUT_BEFORE_CLOCK_IN"
	IssueUnverifiedAddress         = "UNVERIFIED_ADDRESS"
)

// ValidationResult is the structured outcome of state rule evaluation.
// Valid is false if and only if Errors is non-empty; warnings never affect Valid.
type ValidationResult struct {
	Valid             bool    `json:"valid"`
	Errors            []Issue `json:"errors"`
	Warnings          []Issue `json:"warnings"`
	RegulatoryContext string  `json:"regulatory_context"`
}

// HasError reports whether the result contains an error with the given code.
func (r ValidationResult) HasError(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// ComplianceStatus is the three-valued outcome of a validation pass.
type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "COMPLIANT"
	StatusWarning      ComplianceStatus = "WARNING"
	StatusNonCompliant ComplianceStatus = "NON_COMPLIANT"
)

// SubmissionState tracks one record's aggregator submission lifecycle.
type SubmissionState string

const (
	SubmissionPending    SubmissionState = "PENDING"
	SubmissionInProgress SubmissionState = "IN_PROGRESS"
	SubmissionCompleted  SubmissionState = "COMPLETED"
	SubmissionFailed     SubmissionState = "FAILED"
)

// GeofenceDetail is the orchestrator's independent geofence computation.
type GeofenceDetail struct {
	WithinBounds        bool    `json:"within_bounds"`
	DistanceMeters      float64 `json:"distance_meters"`
	AllowedRadiusMeters float64 `json:"allowed_radius_meters"`
	AccuracyMeters      float64 `json:"accuracy_meters"`
}

// GracePeriodDetail is the orchestrator's grace-window computation.
// MinutesFromScheduled is signed: negative means early arrival.
type GracePeriodDetail struct {
	WithinGrace          bool `json:"within_grace"`
	MinutesFromScheduled int  `json:"minutes_from_scheduled"`
	AllowedGraceMinutes  int  `json:"allowed_grace_minutes"`
}

// AggregatorSubmissionStatus is one aggregator target's submission outcome.
// A multi-aggregator state yields an ordered list of these.
type AggregatorSubmissionStatus struct {
	Aggregator     string    `json:"aggregator"`
	Success        bool      `json:"success"`
	SubmissionID   string    `json:"submission_id,omitempty"`
	ConfirmationID string    `json:"confirmation_id,omitempty"`
	ErrorCode      string    `json:"error_code,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// RealTimeValidationFeedback is the atomic unit of validation output. It is
// computed fresh on every call, never persisted, and safe to log verbatim.
type RealTimeValidationFeedback struct {
	Status              ComplianceStatus             `json:"status"`
	State               domain.StateCode             `json:"state"`
	Validation          ValidationResult             `json:"validation"`
	Geofence            GeofenceDetail               `json:"geofence"`
	GracePeriod         GracePeriodDetail            `json:"grace_period"`
	RequiredAggregators []string                     `json:"required_aggregators"`
	SubmissionState     SubmissionState              `json:"submission_state"`
	SubmissionResults   []AggregatorSubmissionStatus `json:"submission_results,omitempty"`
	Recommendations     []string                     `json:"recommendations"`
	RegulatoryContext   string                       `json:"regulatory_context"`
}

// StateComplianceDashboard aggregates EVV records for one state over a date
// range. Purely derived; never persisted.
type StateComplianceDashboard struct {
	State     domain.StateCode `json:"state"`
	StartDate time.Time        `json:"start_date"`
	EndDate   time.Time        `json:"end_date"`

	TotalVisits        int     `json:"total_visits"`
	CompliantVisits    int     `json:"compliant_visits"`
	PartialVisits      int     `json:"partially_compliant_visits"`
	NonCompliantVisits int     `json:"non_compliant_visits"`
	ComplianceRate     float64 `json:"compliance_rate"`

	GeofencePassed        int     `json:"geofence_passed"`
	GeofenceFailed        int     `json:"geofence_failed"`
	AvgDistanceMeters     float64 `json:"avg_distance_meters"`
	AvgAccuracyMeters     float64 `json:"avg_accuracy_meters"`

	SubmittedToPayor int `json:"submitted_to_payor"`
	PayorApproved    int `json:"payor_approved"`
	PayorDenied      int `json:"payor_denied"`
	PayorPending     int `json:"payor_pending"`

	TopIssues []IssueFrequency `json:"top_issues"`
}

// IssueFrequency is one violation flag's share of the filtered record set.
type IssueFrequency struct {
	Flag       string  `json:"flag"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}
