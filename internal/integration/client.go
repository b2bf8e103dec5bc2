// Package integration talks to the agency platform's scheduling API. The EVV
// vertical uses it to hydrate visit context (schedule, service address) and
// caregiver identity before validation.
package integration

import (
	"context"
	"time"

	"carebridge/internal/evv/models"
	"carebridge/pkg/domain"
)

// VisitContext is the scheduling system's view of one visit.
type VisitContext struct {
	VisitID        domain.VisitID        `json:"visit_id"`
	ClientID       domain.ClientID       `json:"client_id"`
	CaregiverID    domain.CaregiverID    `json:"caregiver_id"`
	State          domain.StateCode      `json:"state"`
	ServiceDate    time.Time             `json:"service_date"`
	ScheduledStart time.Time             `json:"scheduled_start"`
	ScheduledEnd   time.Time             `json:"scheduled_end"`
	ServiceAddress models.ServiceAddress `json:"service_address"`
	PayorID        string                `json:"payor_id"`
}

// CaregiverProfile is the scheduling system's view of one caregiver.
type CaregiverProfile struct {
	CaregiverID domain.CaregiverID `json:"caregiver_id"`
	FullName    string             `json:"full_name"`
	Active      bool               `json:"active"`
	MedicaidID  string             `json:"medicaid_id"`
}

// Client fetches visit and caregiver context. Missing entities surface
// sentinel.ErrNotFound.
type Client interface {
	GetVisitData(ctx context.Context, visitID domain.VisitID) (*VisitContext, error)
	GetCaregiverData(ctx context.Context, caregiverID domain.CaregiverID) (*CaregiverProfile, error)
}
