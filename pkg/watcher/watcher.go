package watcher

import (
	"context"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var videoExtensions = map[string]bool{
	".webm": true,
	".mp4":  true,
	".mkv":  true,
	".mov":  true,
}

func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Handler receives the absolute path of a newly uploaded video once its size stopped changing.
type Handler func(ctx context.Context, path string)

type Watcher struct {
	dir          string
	handler      Handler
	stableFor    time.Duration
	pollInterval time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

type Option func(*Watcher)

func WithStability(stableFor, pollInterval time.Duration) Option {
	return func(w *Watcher) {
		if stableFor > 0 {
			w.stableFor = stableFor
		}
		if pollInterval > 0 {
			w.pollInterval = pollInterval
		}
	}
}

func New(dir string, handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		dir:          dir,
		handler:      handler,
		stableFor:    2 * time.Second,
		pollInterval: 200 * time.Millisecond,
		inFlight:     map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches dir and its subdirectories until ctx is done. Files present before Run are ignored.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := os.MkdirAll(w.dir, os.ModePerm); err != nil {
		return err
	}
	if err := w.addTree(fsw, w.dir); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("dir", w.dir).Msg("watching uploads")

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				w.wg.Wait()
				return nil
			}
			w.handleEvent(ctx, fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				w.wg.Wait()
				return nil
			}
			zerolog.Ctx(ctx).Error().Err(err).Msg("upload watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addTree(fsw, event.Name); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("dir", event.Name).Msg("failed to watch directory")
			}
		}
		return
	}
	if !IsVideoFile(event.Name) {
		return
	}

	path, err := filepath.Abs(event.Name)
	if err != nil {
		path = event.Name
	}
	if !w.acquire(path) {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.release(path)
		if !w.waitStable(ctx, path) {
			return
		}
		zerolog.Ctx(ctx).Info().Str("file", path).Msg("new upload detected")
		w.handler(ctx, path)
	}()
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) acquire(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.inFlight[path]; ok {
		return false
	}
	w.inFlight[path] = struct{}{}
	return true
}

func (w *Watcher) release(path string) {
	w.mu.Lock()
	delete(w.inFlight, path)
	w.mu.Unlock()
}

// waitStable polls the file size until it has not changed for stableFor.
func (w *Watcher) waitStable(ctx context.Context, path string) bool {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	lastSize := int64(-1)
	stableSince := time.Now()
	for {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.Size() != lastSize {
			lastSize = info.Size()
			stableSince = time.Now()
		} else if time.Since(stableSince) >= w.stableFor {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
