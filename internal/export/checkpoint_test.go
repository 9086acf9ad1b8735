package export

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCheckpointMissingFile(t *testing.T) {
	cp, err := LoadCheckpoint(afero.NewMemMapFs(), "none.json")
	require.NoError(t, err)
	assert.Empty(t, cp.Threads)
	assert.Empty(t, cp.Folders)
}

func TestCheckpointSaveAndLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	cp := NewCheckpoint()
	cp.SetThread("TAAAAAAAAAA", ThreadProgress{LastChecked: at, Downloaded: true})
	cp.SetFolder("FAAAAAAAAAA", FolderProgress{LastProcessed: at, ChildCount: 3, SubfolderCount: 1, FullyProcessed: true})
	require.NoError(t, cp.Save(fs, "dir/cp.json"))

	exists, err := afero.Exists(fs, "dir/cp.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	raw, err := afero.ReadFile(fs, "dir/cp.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"lastChecked": "2025-01-02T03:04:05Z"`)
	assert.Contains(t, string(raw), `"subfolderCount": 1`)

	loaded, err := LoadCheckpoint(fs, "dir/cp.json")
	require.NoError(t, err)
	assert.Equal(t, cp.Threads, loaded.Threads)
	assert.Equal(t, cp.Folders, loaded.Folders)
}

func TestLoadCheckpointRejectsGarbage(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "cp.json", []byte("{"), 0o644))

	_, err := LoadCheckpoint(fs, "cp.json")
	require.Error(t, err)
}

func TestShouldSkip(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	cp := NewCheckpoint()
	cp.SetThread("old", ThreadProgress{LastChecked: now.Add(-time.Hour), Downloaded: true})
	cp.SetThread("recent", ThreadProgress{LastChecked: now.Add(-time.Hour), Downloaded: true, IsRecent: true})
	cp.SetThread("stale", ThreadProgress{LastChecked: now.Add(-48 * time.Hour), Downloaded: true})
	cp.SetThread("failed", ThreadProgress{LastChecked: now.Add(-time.Hour)})
	cp.SetFolder("leaf", FolderProgress{LastProcessed: now.Add(-time.Hour), IsLeaf: true, FullyProcessed: true})
	cp.SetFolder("branch", FolderProgress{LastProcessed: now.Add(-time.Hour), FullyProcessed: true})
	cp.SetFolder("partial", FolderProgress{LastProcessed: now.Add(-time.Hour), IsLeaf: true})

	day := 24 * time.Hour
	assert.True(t, cp.ShouldSkipThread("old", now, day))
	assert.False(t, cp.ShouldSkipThread("recent", now, day))
	assert.False(t, cp.ShouldSkipThread("stale", now, day))
	assert.False(t, cp.ShouldSkipThread("failed", now, day))
	assert.False(t, cp.ShouldSkipThread("unknown", now, day))

	assert.True(t, cp.ShouldSkipFolder("leaf", now, day))
	assert.False(t, cp.ShouldSkipFolder("branch", now, day))
	assert.False(t, cp.ShouldSkipFolder("partial", now, day))
}
