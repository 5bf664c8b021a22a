package engine

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Loader reads the precompiled module image from disk and exposes it as a
// read-only virtual file. It can watch the on-disk image and signal when a
// replacement binary lands, so the embedder can restart the session.
type Loader struct {
	log  *slog.Logger
	path string

	mu    sync.RWMutex
	image []byte

	watcher *fsnotify.Watcher
	changed chan struct{}
	closeCh chan struct{}
	once    sync.Once
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the loader's logger.
func WithLoaderLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.log = log
	}
}

// NewLoader creates a loader for the module image at path.
func NewLoader(path string, opts ...LoaderOption) *Loader {
	l := &Loader{
		log:     slog.Default(),
		path:    path,
		changed: make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the on-disk location of the module image.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the image from disk and caches it.
func (l *Loader) Load() ([]byte, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("load engine image %s: %w", l.path, err)
	}

	l.mu.Lock()
	l.image = data
	l.mu.Unlock()
	return data, nil
}

// Image returns the cached image, loading it on first use.
func (l *Loader) Image() ([]byte, error) {
	l.mu.RLock()
	img := l.image
	l.mu.RUnlock()
	if img != nil {
		return img, nil
	}
	return l.Load()
}

// FS exposes the cached image as a read-only single-entry filesystem, the
// virtual file the sandbox sees for the module's own binary.
func (l *Loader) FS() fs.FS {
	return imageFS{loader: l}
}

// Watch starts watching the image path. Changed fires (coalesced) when the
// on-disk binary is rewritten or replaced.
func (l *Loader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch engine image: %w", err)
	}
	// Watch the directory: builds typically replace the file via rename,
	// which drops a watch placed on the file itself.
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch engine image dir: %w", err)
	}

	l.watcher = w
	go l.watchLoop()
	return nil
}

// Changed receives one signal per (coalesced) image replacement.
func (l *Loader) Changed() <-chan struct{} {
	return l.changed
}

// Close stops watching.
func (l *Loader) Close() {
	l.once.Do(func() {
		close(l.closeCh)
		if l.watcher != nil {
			l.watcher.Close()
		}
	})
}

func (l *Loader) watchLoop() {
	base := filepath.Base(l.path)
	for {
		select {
		case <-l.closeCh:
			return
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			l.log.Info("engine image changed on disk", "path", l.path, "op", ev.Op.String())
			select {
			case l.changed <- struct{}{}:
			default:
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.log.Warn("engine image watch error", "error", err)
		}
	}
}

// imageFS is the read-only single-file view over a loader's cached image.
type imageFS struct {
	loader *Loader
}

// Open implements fs.FS. Only the image's base name resolves.
func (ifs imageFS) Open(name string) (fs.File, error) {
	base := filepath.Base(ifs.loader.path)
	if name != base {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	img, err := ifs.loader.Image()
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &imageFile{name: base, reader: bytes.NewReader(img), size: int64(len(img))}, nil
}

type imageFile struct {
	name   string
	reader *bytes.Reader
	size   int64
}

func (f *imageFile) Stat() (fs.FileInfo, error) {
	return imageInfo{name: f.name, size: f.size}, nil
}

func (f *imageFile) Read(p []byte) (int, error) {
	return f.reader.Read(p)
}

func (f *imageFile) Close() error {
	return nil
}

type imageInfo struct {
	name string
	size int64
}

func (i imageInfo) Name() string       { return i.name }
func (i imageInfo) Size() int64        { return i.size }
func (i imageInfo) Mode() fs.FileMode  { return 0o444 }
func (i imageInfo) ModTime() time.Time { return time.Time{} }
func (i imageInfo) IsDir() bool        { return false }
func (i imageInfo) Sys() any           { return nil }
