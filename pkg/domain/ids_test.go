package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseTaskID_Invariants validates the parsing invariant: task ids
// must be well-formed UUIDs.
//
// Justification: this is a pure function enforcing a domain invariant at
// trust boundaries (URL parameters, event payloads).
func TestParseTaskID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseTaskID("")
		require.Error(t, err)
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseTaskID("not-a-uuid")
		require.Error(t, err)
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseTaskID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, TaskID(valid), id)
	})

	t.Run("round-trips through String", func(t *testing.T) {
		id := NewTaskID()
		parsed, err := ParseTaskID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
}

func TestTaskID_IsNil(t *testing.T) {
	assert.True(t, TaskID{}.IsNil())
	assert.False(t, NewTaskID().IsNil())
}

// TestTaskID_JSON verifies the id serializes as its canonical string, not
// as raw UUID bytes.
func TestTaskID_JSON(t *testing.T) {
	id := NewTaskID()

	raw, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(raw))

	var decoded TaskID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, id, decoded)

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &decoded))
}

func TestEntityID(t *testing.T) {
	assert.True(t, EntityID("").IsEmpty())
	assert.False(t, EntityID("POL-1001").IsEmpty())
	assert.Equal(t, "POL-1001", EntityID("POL-1001").String())
}
