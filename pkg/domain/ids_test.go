package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fracmarket/pkg/domain-errors"
)

func TestParseAccountID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAccountID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects oversized input", func(t *testing.T) {
		_, err := ParseAccountID(strings.Repeat("a", 129))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts opaque identifiers", func(t *testing.T) {
		id, err := ParseAccountID("alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", id.String())
		assert.False(t, id.IsNil())
	})
}

func TestParseListingID(t *testing.T) {
	t.Run("rejects non-UUID input", func(t *testing.T) {
		_, err := ParseListingID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects the nil UUID", func(t *testing.T) {
		_, err := ParseListingID(uuid.Nil.String())
		require.Error(t, err)
	})

	t.Run("round-trips a fresh id", func(t *testing.T) {
		id := NewListingID()
		parsed, err := ParseListingID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
}

func TestListingID_JSON(t *testing.T) {
	id := NewListingID()

	raw, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(raw))

	var decoded ListingID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, id, decoded)

	var bad ListingID
	err = json.Unmarshal([]byte(`"not-a-uuid"`), &bad)
	require.Error(t, err)
}
