package domain

import (
	"strings"

	dErrors "carebridge/pkg/domain-errors"
)

// StateCode is a two-letter USPS state abbreviation. Parsing enforces shape
// only; whether a state has EVV rules configured is the rule catalog's call.
type StateCode string

// ParseStateCode validates and normalizes a state code to upper case.
func ParseStateCode(s string) (StateCode, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != 2 {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "state code must be two letters, got %q", s)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", dErrors.Newf(dErrors.CodeInvalidInput, "state code must be alphabetic, got %q", s)
		}
	}
	return StateCode(code), nil
}

func (c StateCode) String() string { return string(c) }

// IsNil returns true if the state code is empty.
func (c StateCode) IsNil() bool { return c == "" }
