package mirror

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/depo/internal/errors"
	"github.com/Iron-Ham/depo/internal/testutil"
)

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/srv", "libs", "core.git"), Path("/srv", "libs/core"))
}

func TestInitWritesSettings(t *testing.T) {
	root := t.TempDir()
	m := Open(root, "libs/core")
	assert.False(t, m.Exists())

	require.NoError(t, m.Init(Settings{User: "mirror-bot", Port: "ssl:p4:1666", Client: "build"}))
	assert.True(t, m.Exists())

	for key, want := range map[string]string{
		"user":          "mirror-bot",
		"port":          "ssl:p4:1666",
		"client":        "build",
		"useClientSpec": "true",
	} {
		got, err := m.Setting(key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}
}

func TestInitWithoutClient(t *testing.T) {
	m := Open(t.TempDir(), "core")
	require.NoError(t, m.Init(Settings{User: "u", Port: "p"}))

	got, err := m.Setting("useClientSpec")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRemove(t *testing.T) {
	m := Open(t.TempDir(), "core")
	require.NoError(t, m.Init(Settings{}))
	require.NoError(t, m.Remove())
	assert.False(t, m.Exists())
}

func TestTrackingRevMissing(t *testing.T) {
	m := Open(t.TempDir(), "core")
	require.NoError(t, m.Init(Settings{}))

	_, err := m.TrackingRev()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRefNotFound)
}

func TestOpenMissingMirror(t *testing.T) {
	m := Open(t.TempDir(), "nowhere")
	_, err := m.TrackingRev()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotMirror)
}

func TestPublishBranch(t *testing.T) {
	m := Open(t.TempDir(), "libs/core")
	require.NoError(t, m.Init(Settings{}))
	tip := testutil.AddCommits(t, m.Dir(), testutil.TrackingRef, 3)

	got, err := m.PublishBranch(DefaultBranch)
	require.NoError(t, err)
	assert.Equal(t, tip, got)

	branch, err := m.BranchRev(DefaultBranch)
	require.NoError(t, err)
	assert.Equal(t, tip, branch)

	tracking, err := m.TrackingRev()
	require.NoError(t, err)
	assert.Equal(t, tip, tracking)
}

func TestPublishBranchWithoutTrackingRef(t *testing.T) {
	m := Open(t.TempDir(), "core")
	require.NoError(t, m.Init(Settings{}))

	_, err := m.PublishBranch(DefaultBranch)
	assert.ErrorIs(t, err, errors.ErrRefNotFound)
}

func TestCountCommits(t *testing.T) {
	m := Open(t.TempDir(), "core")
	require.NoError(t, m.Init(Settings{}))
	base := testutil.AddCommits(t, m.Dir(), testutil.TrackingRef, 2)

	n, err := m.CountCommits(base, base)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	tip := testutil.AddCommits(t, m.Dir(), testutil.TrackingRef, 4)
	n, err = m.CountCommits(base, tip)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = m.CountCommits("", tip)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}
