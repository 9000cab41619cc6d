package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible("1.0"))
	assert.True(t, Compatible("v1.0"))
	assert.True(t, Compatible("1.0.0"))
	assert.False(t, Compatible("2.0"))
	assert.False(t, Compatible("0.9"))
	assert.False(t, Compatible("1.1")) // newer minor than this build exposes
	assert.False(t, Compatible("not-a-version"))
}

func TestCompareVersions(t *testing.T) {
	cmp, err := CompareVersions("1.2.0", "1.10.0")
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = CompareVersions("v2.0.0", "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)

	_, err = CompareVersions("garbage", "1.0.0")
	assert.Error(t, err)
}
