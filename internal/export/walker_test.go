package export

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipkit/quipkit/internal/core/engine"
	"github.com/quipkit/quipkit/internal/quip"
	"github.com/quipkit/quipkit/internal/quip/quiptest"
)

const (
	rootFolder  = "FROOTAAAAAA"
	childFolder = "FCHILDAAAAA"
	docOne      = "TDOCONEAAAA"
	docTwo      = "TDOCTWOAAAA"
	docMissing  = "TMISSINGAAA"
)

type instantTimer struct {
	c chan time.Time
}

func (t *instantTimer) Start(time.Duration) {
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

var walkNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestWalker(t *testing.T, server *quiptest.Server) (*Walker, afero.Fs) {
	t.Helper()
	client := quip.New(quip.Options{BaseURL: server.URL, DisableAutoLimit: true})
	fs := afero.NewMemMapFs()

	walker := NewWalker(client, fs, Options{OutDir: "out", CheckpointPath: "state/checkpoint.json"})
	walker.Retry = &engine.RetryDriver{
		MaxAttempts: 3,
		Cooldown:    time.Minute,
		NewTimer:    func() backoff.Timer { return &instantTimer{} },
	}
	walker.Clock = func() time.Time { return walkNow }
	return walker, fs
}

func seedTree(server *quiptest.Server) {
	server.AddFolder(quiptest.Folder{ID: rootFolder, Title: "Team", Threads: []string{docOne}, Folders: []string{childFolder}})
	// The child links back to the root to exercise cycle protection.
	server.AddFolder(quiptest.Folder{ID: childFolder, Title: "Specs/Drafts", Threads: []string{docTwo}, Folders: []string{rootFolder}})
	server.AddThread(quiptest.Thread{ID: docOne, Title: "Roadmap", Type: "document", Pages: []string{"<h1>", "Roadmap</h1>"}, UpdatedUsec: walkNow.Add(-30 * 24 * time.Hour).UnixMicro()})
	server.AddThread(quiptest.Thread{ID: docTwo, Title: "API: v2", Type: "document", HTML: "<p>v2</p>", UpdatedUsec: walkNow.Add(-time.Hour).UnixMicro()})
}

func TestWalkExportsTree(t *testing.T) {
	server := quiptest.New()
	defer server.Close()
	seedTree(server)
	walker, fs := newTestWalker(t, server)

	summary, err := walker.Walk(context.Background(), rootFolder)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.FoldersVisited)
	assert.Equal(t, 2, summary.ThreadsDownloaded)
	assert.Zero(t, summary.Failures)

	data, err := afero.ReadFile(fs, "out/Team/Roadmap-"+docOne+".html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Roadmap</h1>", string(data))

	data, err = afero.ReadFile(fs, "out/Team/Specs_Drafts/API_ v2-"+docTwo+".html")
	require.NoError(t, err)
	assert.Equal(t, "<p>v2</p>", string(data))

	cp, err := LoadCheckpoint(fs, "state/checkpoint.json")
	require.NoError(t, err)
	assert.True(t, cp.Threads[docOne].Downloaded)
	assert.False(t, cp.Threads[docOne].IsRecent)
	assert.True(t, cp.Threads[docTwo].IsRecent)
	assert.True(t, cp.Folders[rootFolder].FullyProcessed)
	assert.Equal(t, 1, cp.Folders[rootFolder].SubfolderCount)
}

func TestWalkSkipsFromCheckpoint(t *testing.T) {
	server := quiptest.New()
	defer server.Close()
	seedTree(server)
	walker, _ := newTestWalker(t, server)

	_, err := walker.Walk(context.Background(), rootFolder)
	require.NoError(t, err)
	first := server.Requests()

	summary, err := walker.Walk(context.Background(), rootFolder)
	require.NoError(t, err)
	// docOne is old and downloaded; docTwo is recent and fetched again.
	assert.Equal(t, 1, summary.ThreadsSkipped)
	assert.Equal(t, 1, summary.ThreadsDownloaded)
	assert.Less(t, server.Requests()-first, first)
}

func TestWalkRecordsFailuresAndContinues(t *testing.T) {
	server := quiptest.New()
	defer server.Close()
	server.AddFolder(quiptest.Folder{ID: rootFolder, Title: "Team", Threads: []string{docMissing, docOne}})
	server.AddThread(quiptest.Thread{ID: docOne, Title: "Roadmap", HTML: "<p>r</p>"})
	walker, fs := newTestWalker(t, server)

	summary, err := walker.Walk(context.Background(), rootFolder)
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 1)
	assert.Contains(t, err.Error(), docMissing)
	assert.Equal(t, 1, summary.ThreadsDownloaded)
	assert.Equal(t, 1, summary.Failures)

	cp, err := LoadCheckpoint(fs, "state/checkpoint.json")
	require.NoError(t, err)
	assert.False(t, cp.Folders[rootFolder].FullyProcessed)
	assert.False(t, cp.Threads[docMissing].Downloaded)
}

func TestWalkRetriesRateLimitedCalls(t *testing.T) {
	server := quiptest.New()
	defer server.Close()
	seedTree(server)
	server.Throttle("/1/folders/"+rootFolder, 2)
	walker, _ := newTestWalker(t, server)

	summary, err := walker.Walk(context.Background(), rootFolder)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.FoldersVisited)
}

func TestWalkGivesUpAfterMaxAttempts(t *testing.T) {
	server := quiptest.New()
	defer server.Close()
	seedTree(server)
	server.Throttle("/1/folders/"+childFolder, 10)
	walker, _ := newTestWalker(t, server)

	summary, err := walker.Walk(context.Background(), rootFolder)
	require.Error(t, err)
	var givenUp *engine.GivenUpError
	require.ErrorAs(t, err, &givenUp)
	assert.Equal(t, 3, givenUp.Attempts)
	assert.Equal(t, 1, summary.FoldersVisited)
	assert.Equal(t, 1, summary.ThreadsDownloaded)
}

func TestWalkStopsOnCancel(t *testing.T) {
	server := quiptest.New()
	defer server.Close()
	seedTree(server)
	walker, _ := newTestWalker(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := walker.Walk(ctx, rootFolder)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, server.Requests())
}

func TestWalkRejectsInvalidRoot(t *testing.T) {
	walker := NewWalker(nil, afero.NewMemMapFs(), Options{})
	_, err := walker.Walk(context.Background(), "x")
	require.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "a_b", sanitizeName("a/b", "x"))
	assert.Equal(t, "x", sanitizeName("  ...  ", "x"))
	assert.Equal(t, "Notes 2025", sanitizeName(" Notes 2025 ", "x"))
}
