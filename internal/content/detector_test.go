package content

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMtimeDetector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenes.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	d := NewMtimeDetector(path)
	assert.False(t, d.Poll(), "existing file at construction is not a change")

	// Bump the mtime well past filesystem timestamp granularity
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.True(t, d.Poll())
	assert.False(t, d.Poll(), "change must be consumed by the first poll")
}

func TestMtimeDetectorMissingFile(t *testing.T) {
	d := NewMtimeDetector(filepath.Join(t.TempDir(), "absent.json"))
	assert.False(t, d.Poll())
}

func TestFlagDetector(t *testing.T) {
	d := NewFlagDetector()
	assert.False(t, d.Poll())

	d.Set()
	assert.True(t, d.Poll())
	assert.False(t, d.Poll())
}

func TestCompositeDetector(t *testing.T) {
	a := NewFlagDetector()
	b := NewFlagDetector()
	c := NewCompositeDetector(a, b)

	assert.False(t, c.Poll())

	a.Set()
	b.Set()
	assert.True(t, c.Poll())

	// Both members were consumed by the composite poll
	assert.False(t, a.Poll())
	assert.False(t, b.Poll())
}
