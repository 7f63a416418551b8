package hostinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGather(t *testing.T) {
	info, err := Gather()
	require.NoError(t, err)
	assert.Greater(t, info.CPUs, 0)
	assert.Greater(t, float64(info.MemGB), 0.0)
	assert.NotEmpty(t, info.String())
}
