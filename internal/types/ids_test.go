package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id1 := NewID()
	id2 := NewID()

	assert.False(t, id1.IsZero())
	assert.NotEqual(t, id1, id2)
	require.NoError(t, id1.Validate())
}

func TestNewMemoryID_Deterministic(t *testing.T) {
	conv := NewID()
	ts := time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC)

	id1 := NewMemoryID(conv, ts)
	id2 := NewMemoryID(conv, ts)

	assert.Equal(t, id1, id2, "same conversation and timestamp must map to the same id")
	require.NoError(t, id1.Validate())
}

func TestNewMemoryID_DistinguishesInputs(t *testing.T) {
	conv := NewID()
	other := NewID()
	ts := time.Now().UTC()

	assert.NotEqual(t, NewMemoryID(conv, ts), NewMemoryID(other, ts))
	assert.NotEqual(t, NewMemoryID(conv, ts), NewMemoryID(conv, ts.Add(time.Nanosecond)))
}

func TestNewMemoryID_TimezoneInsensitive(t *testing.T) {
	conv := NewID()
	utc := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	shifted := utc.In(time.FixedZone("UTC+8", 8*3600))

	assert.Equal(t, NewMemoryID(conv, utc), NewMemoryID(conv, shifted))
}

func TestParseID(t *testing.T) {
	id := NewID()

	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseID("not-a-uuid")
	assert.Error(t, err)
}
