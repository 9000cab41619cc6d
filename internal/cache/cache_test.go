package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkathuria/comicden/internal/util"
)

func TestFolderUsesCanonicalNames(t *testing.T) {
	m := New(t.TempDir())

	p, err := m.Folder(12)
	require.NoError(t, err)
	assert.Equal(t, "12", filepath.Base(p))

	p, err = m.Folder(1.5)
	require.NoError(t, err)
	assert.Equal(t, "1.5", filepath.Base(p))

	// 1.0 and 1 share a slot.
	a, err := m.Folder(1.0)
	require.NoError(t, err)
	b, err := m.Folder(1)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSlotStates(t *testing.T) {
	m := New(t.TempDir())
	assert.Equal(t, StateEmpty, m.State(3))

	_, err := m.Folder(3)
	require.NoError(t, err)
	assert.Equal(t, StateLoading, m.State(3))

	m.MarkReady(3)
	assert.True(t, m.IsReady(3))

	// Re-requesting a ready folder keeps it ready.
	_, err = m.Folder(3)
	require.NoError(t, err)
	assert.True(t, m.IsReady(3))

	m.MarkFailed(3)
	assert.Equal(t, StateFailed, m.State(3))
}

func TestAdvanceRetract(t *testing.T) {
	m := New(t.TempDir())
	m.SetCurrent(2)

	assert.InDelta(t, 2.5, float64(m.Advance(0.5)), 1e-9)
	assert.InDelta(t, 2.0, float64(m.Retract(0.5)), 1e-9)

	// Retracting below zero clamps.
	m.SetCurrent(0.5)
	assert.Equal(t, 0.0, float64(m.Retract(1)))
}

func TestResetAllDeletesSlots(t *testing.T) {
	root := t.TempDir()
	m := New(root)
	for _, n := range []util.ChapterNum{1, 2, 3} {
		p, err := m.Folder(n)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(p, "001.png"), []byte("x"), 0644))
		m.MarkReady(n)
	}

	require.NoError(t, m.ResetAll())
	assert.Equal(t, 0, m.ReadyCount())
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEnforceCapEvictsFarthestFirst(t *testing.T) {
	root := t.TempDir()
	m := New(root)
	m.SetCurrent(5)
	for _, n := range []util.ChapterNum{3, 4, 5, 6, 7} {
		_, err := m.Folder(n)
		require.NoError(t, err)
		m.MarkReady(n)
	}

	m.EnforceCap(3)
	assert.Equal(t, 3, m.ReadyCount())

	// 3 and 7 are tied for farthest; both ends shrink before the middle.
	assert.True(t, m.IsReady(5))
	assert.True(t, m.IsReady(4) || m.IsReady(6))
	assert.False(t, m.IsReady(3) && m.IsReady(7))
}

func TestEnforceCapNeverEvictsCurrent(t *testing.T) {
	m := New(t.TempDir())
	m.SetCurrent(1)
	for _, n := range []util.ChapterNum{1, 2} {
		_, err := m.Folder(n)
		require.NoError(t, err)
		m.MarkReady(n)
	}

	m.EnforceCap(1)
	assert.True(t, m.IsReady(1))
}

func TestEnforceCapDisabled(t *testing.T) {
	m := New(t.TempDir())
	for _, n := range []util.ChapterNum{1, 2, 3, 4} {
		_, err := m.Folder(n)
		require.NoError(t, err)
		m.MarkReady(n)
	}

	m.EnforceCap(-1)
	assert.Equal(t, 4, m.ReadyCount())
}
