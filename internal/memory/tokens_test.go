package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateStringTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateStringTokens(""))
	// Short text never rounds down to zero.
	assert.Equal(t, 1, EstimateStringTokens("hi"))
	assert.Equal(t, 25, EstimateStringTokens(strings.Repeat("a", 100)))
}

func TestRecencyScore(t *testing.T) {
	assert.Equal(t, 1.0, recencyScore(0, 4))
	assert.Equal(t, 0.75, recencyScore(1, 4))
	assert.Equal(t, 0.25, recencyScore(3, 4))
	assert.Equal(t, 0.0, recencyScore(0, 0))
}
