package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"carebridge/internal/evv/models"
)

// Transport performs the HTTP exchange with one aggregator endpoint. Remote
// rejection is data on the Result; only transport-level failure is an error.
type Transport interface {
	Send(ctx context.Context, target Target, record *models.EVVRecord) (Result, error)
}

// HTTPTransport submits records over HTTPS with a short-lived signed bearer
// token, the scheme the state aggregator sandboxes use for agency clients.
type HTTPTransport struct {
	client   *http.Client
	secret   []byte
	agencyID string
	tracer   trace.Tracer
}

// NewHTTPTransport builds the shared aggregator transport. The per-request
// timeout is enforced by the caller's context, not the http.Client, so one
// slow aggregator cannot stretch another's budget.
func NewHTTPTransport(secret, agencyID string) (*HTTPTransport, error) {
	if secret == "" {
		return nil, fmt.Errorf("aggregator signing secret is required")
	}
	if agencyID == "" {
		return nil, fmt.Errorf("agency identifier is required")
	}
	return &HTTPTransport{
		client:   &http.Client{},
		secret:   []byte(secret),
		agencyID: agencyID,
		tracer:   otel.Tracer("carebridge/evv/aggregator"),
	}, nil
}

// submissionPayload is the normalized wire form shared by all aggregator
// targets. Target-specific field mapping happens server-side at the
// aggregator's agency gateway.
type submissionPayload struct {
	VisitID     string                    `json:"visit_id"`
	ClientID    string                    `json:"client_id"`
	CaregiverID string                    `json:"caregiver_id"`
	State       string                    `json:"state"`
	ServiceDate string                    `json:"service_date"`
	Schedule    time.Time                 `json:"scheduled_start"`
	ClockIn     models.ClockVerification  `json:"clock_in"`
	ClockOut    *models.ClockVerification `json:"clock_out,omitempty"`
	Flags       []string                  `json:"compliance_flags"`
}

type submissionResponse struct {
	Accepted       bool   `json:"accepted"`
	SubmissionID   string `json:"submission_id"`
	ConfirmationID string `json:"confirmation_id"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
}

func (t *HTTPTransport) Send(ctx context.Context, target Target, record *models.EVVRecord) (Result, error) {
	ctx, span := t.tracer.Start(ctx, "aggregator.submit",
		trace.WithAttributes(
			attribute.String("aggregator.name", target.Name),
			attribute.String("evv.visit_id", record.VisitID.String()),
		))
	defer span.End()

	payload := submissionPayload{
		VisitID:     record.VisitID.String(),
		ClientID:    record.ClientID.String(),
		CaregiverID: record.CaregiverID.String(),
		State:       record.State.String(),
		ServiceDate: record.ServiceDate.Format("2006-01-02"),
		Schedule:    record.ScheduledStart,
		ClockIn:     record.ClockIn,
		ClockOut:    record.ClockOut,
		Flags:       record.ComplianceFlags,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal submission payload: %w", err)
	}

	token, err := t.bearerToken(target.Name)
	if err != nil {
		return Result{}, fmt.Errorf("sign aggregator token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build aggregator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("submit to %s: %w", target.Name, err)
	}
	defer resp.Body.Close()

	var decoded submissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("decode %s response: %w", target.Name, err)
	}

	result := Result{
		Aggregator:     target.Name,
		Accepted:       decoded.Accepted && resp.StatusCode < 300,
		SubmissionID:   decoded.SubmissionID,
		ConfirmationID: decoded.ConfirmationID,
		ErrorCode:      decoded.ErrorCode,
		ErrorMessage:   decoded.ErrorMessage,
	}
	if !result.Accepted && result.ErrorCode == "" {
		result.ErrorCode = ErrorCodeRejected
		result.ErrorMessage = fmt.Sprintf("%s returned status %d", target.Name, resp.StatusCode)
	}
	return result, nil
}

// bearerToken signs a short-lived HS256 token identifying the agency to the
// aggregator's gateway.
func (t *HTTPTransport) bearerToken(aggregator string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": t.agencyID,
		"aud": aggregator,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}
