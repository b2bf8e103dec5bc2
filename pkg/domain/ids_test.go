package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "carebridge/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseVisitID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseVisitID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseCaregiverID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseClientID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, ClientID(validUUID), id)
	})
}

// TestIDJSONEncoding validates the wire invariant: IDs serialize as canonical
// UUID strings, never as the underlying byte array, and decode the
// conventional string form other services send.
func TestIDJSONEncoding(t *testing.T) {
	type payload struct {
		Visit     VisitID     `json:"visit_id"`
		Client    ClientID    `json:"client_id"`
		Caregiver CaregiverID `json:"caregiver_id"`
	}

	t.Run("round trips as UUID strings", func(t *testing.T) {
		in := payload{
			Visit:     VisitID(uuid.New()),
			Client:    ClientID(uuid.New()),
			Caregiver: CaregiverID(uuid.New()),
		}

		raw, err := json.Marshal(in)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"visit_id":"`+in.Visit.String()+`"`)

		var out payload
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, in, out)
	})

	t.Run("decodes conventional string form", func(t *testing.T) {
		u := uuid.New()
		var out payload
		require.NoError(t, json.Unmarshal([]byte(`{"visit_id":"`+u.String()+`"}`), &out))
		assert.Equal(t, VisitID(u), out.Visit)
	})

	t.Run("rejects malformed string", func(t *testing.T) {
		var out payload
		err := json.Unmarshal([]byte(`{"visit_id":"not-a-uuid"}`), &out)
		require.Error(t, err)
	})
}

func TestParseStateCode(t *testing.T) {
	t.Run("normalizes to upper case", func(t *testing.T) {
		code, err := ParseStateCode(" tx ")
		require.NoError(t, err)
		assert.Equal(t, StateCode("TX"), code)
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParseStateCode("TEX")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non-alphabetic", func(t *testing.T) {
		_, err := ParseStateCode("T1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
