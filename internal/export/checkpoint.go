package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// ThreadProgress records what the exporter knows about one thread.
type ThreadProgress struct {
	IsRecent    bool      `json:"isRecent"`
	LastChecked time.Time `json:"lastChecked"`
	Downloaded  bool      `json:"downloaded"`
}

// FolderProgress records what the exporter knows about one folder.
type FolderProgress struct {
	LastProcessed  time.Time `json:"lastProcessed"`
	ChildCount     int       `json:"childCount"`
	SubfolderCount int       `json:"subfolderCount"`
	IsLeaf         bool      `json:"isLeaf"`
	FullyProcessed bool      `json:"fullyProcessed"`
}

// Checkpoint is the resumable progress of an export. It is safe for
// concurrent use.
type Checkpoint struct {
	mu      sync.Mutex
	Threads map[string]ThreadProgress `json:"threads"`
	Folders map[string]FolderProgress `json:"folders"`
}

// NewCheckpoint returns an empty checkpoint.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Threads: make(map[string]ThreadProgress),
		Folders: make(map[string]FolderProgress),
	}
}

// LoadCheckpoint reads a checkpoint from path. A missing file yields an
// empty checkpoint.
func LoadCheckpoint(fs afero.Fs, path string) (*Checkpoint, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewCheckpoint(), nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	cp := NewCheckpoint()
	if len(data) == 0 {
		return cp, nil
	}
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	if cp.Threads == nil {
		cp.Threads = make(map[string]ThreadProgress)
	}
	if cp.Folders == nil {
		cp.Folders = make(map[string]FolderProgress)
	}
	return cp, nil
}

// Save writes the checkpoint to path through a temporary file and a rename,
// so readers never observe a partial file.
func (c *Checkpoint) Save(fs afero.Fs, path string) error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	data, err := json.MarshalIndent(c, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Thread returns the recorded progress for a thread.
func (c *Checkpoint) Thread(id string) (ThreadProgress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.Threads[id]
	return p, ok
}

// SetThread records progress for a thread.
func (c *Checkpoint) SetThread(id string, p ThreadProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Threads[id] = p
}

// Folder returns the recorded progress for a folder.
func (c *Checkpoint) Folder(id string) (FolderProgress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.Folders[id]
	return p, ok
}

// SetFolder records progress for a folder.
func (c *Checkpoint) SetFolder(id string, p FolderProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Folders[id] = p
}

// ShouldSkipThread reports whether a thread can be skipped: it was
// downloaded, was not recent, and was checked within recheckAfter.
func (c *Checkpoint) ShouldSkipThread(id string, now time.Time, recheckAfter time.Duration) bool {
	p, ok := c.Thread(id)
	if !ok {
		return false
	}
	return p.Downloaded && !p.IsRecent && now.Sub(p.LastChecked) < recheckAfter
}

// ShouldSkipFolder reports whether a folder can be skipped: it was fully
// processed, is a leaf, and was processed within recheckAfter.
func (c *Checkpoint) ShouldSkipFolder(id string, now time.Time, recheckAfter time.Duration) bool {
	p, ok := c.Folder(id)
	if !ok {
		return false
	}
	return p.FullyProcessed && p.IsLeaf && now.Sub(p.LastProcessed) < recheckAfter
}
