// Package domain provides typed identifiers and primitives shared across
// verticals. IDs are distinct types over uuid.UUID so the compiler rejects
// cross-entity mixups.
package domain

import (
	"github.com/google/uuid"

	dErrors "carebridge/pkg/domain-errors"
)

// VisitID identifies a scheduled or recorded home-care visit.
type VisitID uuid.UUID

// ClientID identifies the person receiving care.
type ClientID uuid.UUID

// CaregiverID identifies the person delivering care.
type CaregiverID uuid.UUID

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be nil", kind)
	}
	return u, nil
}

// ParseVisitID validates and returns a VisitID.
func ParseVisitID(s string) (VisitID, error) {
	u, err := parseUUID(s, "visit_id")
	return VisitID(u), err
}

// ParseClientID validates and returns a ClientID.
func ParseClientID(s string) (ClientID, error) {
	u, err := parseUUID(s, "client_id")
	return ClientID(u), err
}

// ParseCaregiverID validates and returns a CaregiverID.
func ParseCaregiverID(s string) (CaregiverID, error) {
	u, err := parseUUID(s, "caregiver_id")
	return CaregiverID(u), err
}

func (id VisitID) String() string     { return uuid.UUID(id).String() }
func (id ClientID) String() string    { return uuid.UUID(id).String() }
func (id CaregiverID) String() string { return uuid.UUID(id).String() }

func (id VisitID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CaregiverID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// IDs travel as canonical UUID strings on every wire surface (JSON bodies,
// JSONB payloads, audit events). Without these, encoding/json would fall back
// to the underlying byte-array representation.

func (id VisitID) MarshalText() ([]byte, error)     { return []byte(uuid.UUID(id).String()), nil }
func (id ClientID) MarshalText() ([]byte, error)    { return []byte(uuid.UUID(id).String()), nil }
func (id CaregiverID) MarshalText() ([]byte, error) { return []byte(uuid.UUID(id).String()), nil }

func unmarshalUUID(b []byte, kind string) (uuid.UUID, error) {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}

func (id *VisitID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b, "visit_id")
	*id = VisitID(u)
	return err
}

func (id *ClientID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b, "client_id")
	*id = ClientID(u)
	return err
}

func (id *CaregiverID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b, "caregiver_id")
	*id = CaregiverID(u)
	return err
}
