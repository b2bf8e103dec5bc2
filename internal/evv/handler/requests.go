package handler

import (
	"time"

	"carebridge/internal/evv/models"
	"carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

// IngestRecordRequest creates or replaces a visit's EVV record. Schedule and
// service address may be omitted; the handler hydrates them from the
// scheduling system.
type IngestRecordRequest struct {
	VisitID     string `json:"visit_id"`
	ClientID    string `json:"client_id"`
	CaregiverID string `json:"caregiver_id"`
	State       string `json:"state"`
	ServiceDate string `json:"service_date"`

	ServiceAddress *models.ServiceAddress    `json:"service_address,omitempty"`
	ScheduledStart *time.Time                `json:"scheduled_start,omitempty"`
	ClockIn        models.ClockVerification  `json:"clock_in"`
	ClockOut       *models.ClockVerification `json:"clock_out,omitempty"`
}

// ToRecord validates identifiers and builds the partial record. Hydration of
// missing schedule context happens in the handler.
func (r IngestRecordRequest) ToRecord() (*models.EVVRecord, error) {
	visitID, err := domain.ParseVisitID(r.VisitID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse visit_id")
	}
	clientID, err := domain.ParseClientID(r.ClientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse client_id")
	}
	caregiverID, err := domain.ParseCaregiverID(r.CaregiverID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse caregiver_id")
	}
	state, err := domain.ParseStateCode(r.State)
	if err != nil {
		return nil, err
	}
	if r.ClockIn.Timestamp.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "clock_in.timestamp is required")
	}

	record := &models.EVVRecord{
		VisitID:     visitID,
		ClientID:    clientID,
		CaregiverID: caregiverID,
		State:       state,
		ClockIn:     r.ClockIn,
		ClockOut:    r.ClockOut,
	}
	if r.ServiceDate != "" {
		serviceDate, err := time.Parse("2006-01-02", r.ServiceDate)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse service_date")
		}
		record.ServiceDate = serviceDate
	}
	if r.ServiceAddress != nil {
		record.ServiceAddress = *r.ServiceAddress
	}
	if r.ScheduledStart != nil {
		record.ScheduledStart = *r.ScheduledStart
	}
	return record, nil
}

// ValidateBatchRequest validates a set of stored records in one call.
type ValidateBatchRequest struct {
	Items []BatchItemRequest `json:"items"`
}

// BatchItemRequest names one stored record and the state to validate against.
type BatchItemRequest struct {
	VisitID string `json:"visit_id"`
	State   string `json:"state"`
}
