package widget

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/julianstephens/prayanswer/internal/logger"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Surface is the external widget renderer.
type Surface interface {
	ReloadAll()
}

const reloadStampName = ".reload"

// FileSurface signals reloads by touching a stamp file in the shared
// directory. A widget process picks the change up with Watch.
type FileSurface struct {
	dir string
	now func() time.Time
}

func NewFileSurface(dir string) *FileSurface {
	return &FileSurface{dir: dir, now: time.Now}
}

func (f *FileSurface) ReloadAll() {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		logger.Warn("Failed to create widget directory", "error", err)
		return
	}
	stamp := strconv.FormatInt(f.now().UnixNano(), 10)
	if err := os.WriteFile(filepath.Join(f.dir, reloadStampName), []byte(stamp), 0644); err != nil {
		logger.Warn("Failed to signal widget reload", "error", err)
	}
}

// Watch calls onReload whenever the reload stamp changes, until ctx is done.
func (f *FileSurface) Watch(ctx context.Context, onReload func()) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("failed to create widget directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	defer func() { _ = watcher.Close() }()

	// The directory is watched rather than the file so the first stamp is seen too.
	if err := watcher.Add(f.dir); err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != reloadStampName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				onReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Widget watcher error", "error", err)
		}
	}
}
