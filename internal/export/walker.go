// Package export walks a folder tree and writes every document to disk,
// resuming from a checkpoint file between runs.
package export

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/quipkit/quipkit/internal/core"
	"github.com/quipkit/quipkit/internal/core/engine"
)

// Defaults for the skip policy.
const (
	DefaultRecheckAfter = 24 * time.Hour
	DefaultRecentWindow = 7 * 24 * time.Hour
)

// API is the subset of the client the walker needs.
type API interface {
	Folder(ctx context.Context, id string) (*core.Folder, error)
	Thread(ctx context.Context, id string) (*core.Thread, error)
	ThreadHTML(ctx context.Context, id string, limit int) (string, error)
}

// Options configures a Walker.
type Options struct {
	// OutDir is the export root on the walker filesystem.
	OutDir string

	// CheckpointPath is where progress is saved; empty disables saving.
	CheckpointPath string

	RecheckAfter time.Duration
	RecentWindow time.Duration

	// PageLimit is forwarded to ThreadHTML as the page size hint.
	PageLimit int
}

// Summary counts what a walk did.
type Summary struct {
	FoldersVisited    int `json:"folders_visited"`
	FoldersSkipped    int `json:"folders_skipped"`
	ThreadsDownloaded int `json:"threads_downloaded"`
	ThreadsSkipped    int `json:"threads_skipped"`
	Failures          int `json:"failures"`
}

// Walker exports a folder tree.
type Walker struct {
	API        API
	Retry      *engine.RetryDriver
	Fs         afero.Fs
	Checkpoint *Checkpoint
	Options    Options
	Logger     *logging.Logger
	Clock      func() time.Time

	// Progress, when set, receives a copy of the running totals after each folder.
	Progress func(Summary)

	visited map[string]bool
	summary *Summary
	errs    *multierror.Error
}

// NewWalker returns a walker writing to fs with an empty checkpoint.
func NewWalker(api API, fs afero.Fs, opts Options) *Walker {
	return &Walker{
		API:        api,
		Retry:      engine.NewRetryDriver(),
		Fs:         fs,
		Checkpoint: NewCheckpoint(),
		Options:    opts,
	}
}

// Walk exports rootFolderID and everything below it. Failures on individual
// folders or threads are recorded and the walk continues; they are returned
// together as a *multierror.Error. Context cancellation aborts the walk.
func (w *Walker) Walk(ctx context.Context, rootFolderID string) (*Summary, error) {
	if w == nil || w.API == nil {
		return nil, errors.New("walker is not configured")
	}
	if err := core.ValidateID("folder", rootFolderID); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if w.Fs == nil {
		w.Fs = afero.NewOsFs()
	}
	if w.Checkpoint == nil {
		w.Checkpoint = NewCheckpoint()
	}

	w.visited = make(map[string]bool)
	w.summary = &Summary{}
	w.errs = nil

	if _, err := w.walkFolder(ctx, rootFolderID, ""); err != nil {
		return w.summary, err
	}

	return w.summary, w.errs.ErrorOrNil()
}

// walkFolder returns whether the folder and all of its children completed.
// A non-nil error means the walk must stop.
func (w *Walker) walkFolder(ctx context.Context, id, parentPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if w.visited[id] {
		w.logDebug("folder already visited", zap.String("folder_id", id))
		return true, nil
	}
	w.visited[id] = true

	if w.Checkpoint.ShouldSkipFolder(id, w.now(), w.recheckAfter()) {
		w.summary.FoldersSkipped++
		w.logDebug("folder skipped", zap.String("folder_id", id))
		return true, nil
	}

	folder, err := engine.Retry(ctx, w.Retry, func(ctx context.Context) (*core.Folder, error) {
		return w.API.Folder(ctx, id)
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		w.fail(fmt.Errorf("folder %s: %w", id, err))
		return false, nil
	}
	w.summary.FoldersVisited++

	dir := path.Join(parentPath, sanitizeName(folder.Title, folder.ID))
	w.logInfo("exporting folder", zap.String("folder_id", id), zap.String("path", dir))

	complete := true
	subfolders := 0
	for _, child := range folder.Children {
		if child.IsFolder() {
			subfolders++
			ok, err := w.walkFolder(ctx, child.FolderID, dir)
			if err != nil {
				return false, err
			}
			complete = complete && ok
			continue
		}

		ok, err := w.exportThread(ctx, child.ThreadID, dir)
		if err != nil {
			return false, err
		}
		complete = complete && ok
	}

	w.Checkpoint.SetFolder(id, FolderProgress{
		LastProcessed:  w.now(),
		ChildCount:     len(folder.Children),
		SubfolderCount: subfolders,
		IsLeaf:         subfolders == 0,
		FullyProcessed: complete,
	})
	if err := w.saveCheckpoint(); err != nil {
		w.fail(err)
	}
	if w.Progress != nil {
		w.Progress(*w.summary)
	}

	return complete, nil
}

func (w *Walker) exportThread(ctx context.Context, id, dir string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := w.now()
	if w.Checkpoint.ShouldSkipThread(id, now, w.recheckAfter()) {
		w.summary.ThreadsSkipped++
		return true, nil
	}

	thread, err := engine.Retry(ctx, w.Retry, func(ctx context.Context) (*core.Thread, error) {
		return w.API.Thread(ctx, id)
	})
	if err != nil {
		return w.threadFailed(ctx, id, err)
	}

	html := thread.HTML
	if thread.Type != core.ThreadTypeChat {
		html, err = engine.Retry(ctx, w.Retry, func(ctx context.Context) (string, error) {
			return w.API.ThreadHTML(ctx, id, w.Options.PageLimit)
		})
		if err != nil {
			return w.threadFailed(ctx, id, err)
		}
	}

	target := path.Join(w.Options.OutDir, dir, sanitizeName(thread.Title, "untitled")+"-"+thread.ID+".html")
	if err := w.Fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return w.threadFailed(ctx, id, err)
	}
	if err := afero.WriteFile(w.Fs, target, []byte(html), 0o644); err != nil {
		return w.threadFailed(ctx, id, err)
	}

	recent := false
	if thread.UpdatedUsec > 0 {
		updated := time.UnixMicro(thread.UpdatedUsec)
		recent = now.Sub(updated) < w.recentWindow()
	}
	w.Checkpoint.SetThread(id, ThreadProgress{IsRecent: recent, LastChecked: now, Downloaded: true})
	w.summary.ThreadsDownloaded++
	w.logDebug("thread exported", zap.String("thread_id", id), zap.String("file", target))

	return true, nil
}

func (w *Walker) threadFailed(ctx context.Context, id string, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	prev, _ := w.Checkpoint.Thread(id)
	prev.LastChecked = w.now()
	w.Checkpoint.SetThread(id, prev)
	w.fail(fmt.Errorf("thread %s: %w", id, err))
	return false, nil
}

func (w *Walker) fail(err error) {
	w.summary.Failures++
	w.errs = multierror.Append(w.errs, err)
	if w.Logger != nil {
		w.Logger.Warn("export item failed", zap.Error(err))
	}
}

func (w *Walker) saveCheckpoint() error {
	if w.Options.CheckpointPath == "" {
		return nil
	}
	return w.Checkpoint.Save(w.Fs, w.Options.CheckpointPath)
}

func (w *Walker) recheckAfter() time.Duration {
	if w.Options.RecheckAfter > 0 {
		return w.Options.RecheckAfter
	}
	return DefaultRecheckAfter
}

func (w *Walker) recentWindow() time.Duration {
	if w.Options.RecentWindow > 0 {
		return w.Options.RecentWindow
	}
	return DefaultRecentWindow
}

func (w *Walker) now() time.Time {
	if w.Clock != nil {
		return w.Clock().UTC()
	}
	return time.Now().UTC()
}

func (w *Walker) logInfo(msg string, fields ...zap.Field) {
	if w.Logger != nil {
		w.Logger.Info(msg, fields...)
	}
}

func (w *Walker) logDebug(msg string, fields ...zap.Field) {
	if w.Logger != nil {
		w.Logger.Debug(msg, fields...)
	}
}

// sanitizeName turns a title into a single safe path segment.
func sanitizeName(title, fallback string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	name := strings.Trim(b.String(), " .")
	if runes := []rune(name); len(runes) > 100 {
		name = strings.TrimSpace(string(runes[:100]))
	}
	if name == "" {
		return fallback
	}
	return name
}
