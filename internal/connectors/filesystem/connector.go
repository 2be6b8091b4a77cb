// Package filesystem reads documents from local files and directories
// and watches them for changes with fsnotify.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/logger"
	"github.com/weiranzhiqian/ThinkRAG/internal/normalisers"
)

// Type is the connector type identifier.
const Type = "filesystem"

// Metadata keys set on raw documents.
const (
	MetaModified = "modified"
	MetaRelPath  = "relative_path"
)

// ErrClosed is returned by operations on a closed connector.
var ErrClosed = errors.New("filesystem connector closed")

// Ensure Connector implements the interfaces.
var (
	_ driven.Connector = (*Connector)(nil)
	_ driven.Watcher   = (*Connector)(nil)
)

// Options filters which files are read.
type Options struct {
	// Include holds doublestar patterns matched against slash separated
	// paths relative to the root. Empty includes everything.
	Include []string

	// Exclude holds patterns that drop otherwise included files.
	Exclude []string

	// NoRecurse limits a directory root to its direct children.
	NoRecurse bool

	// MaxFileSize skips larger files when positive.
	MaxFileSize int64

	// IncludeHidden reads dot files and dot directories.
	IncludeHidden bool
}

// Connector reads a file or directory tree.
type Connector struct {
	rootPath string
	opts     Options

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

// New creates a connector rooted at a file or directory.
func New(rootPath string, opts Options) *Connector {
	return &Connector{rootPath: rootPath, opts: opts}
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return Type
}

// Root returns the configured root path.
func (c *Connector) Root() string {
	return c.rootPath
}

// Validate checks the root exists and patterns are well formed.
func (c *Connector) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.rootPath == "" {
		return fmt.Errorf("%w: empty path", domain.ErrInvalidInput)
	}
	if _, err := os.Stat(c.rootPath); err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	for _, p := range append(append([]string{}, c.opts.Include...), c.opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: bad glob pattern %q", domain.ErrInvalidConfig, p)
		}
	}
	return nil
}

// FullSync emits every matching file. Unreadable files are reported on
// the error channel and the walk continues.
func (c *Connector) FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		if err := c.Validate(ctx); err != nil {
			errs <- err
			return
		}
		walkErr := c.walk(ctx, func(path string) error {
			doc, err := c.read(path)
			if err != nil {
				logger.Warn("Skipping %s: %v", path, err)
				return nil
			}
			if doc == nil {
				return nil
			}
			select {
			case docs <- *doc:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if walkErr != nil {
			errs <- walkErr
		}
	}()

	return docs, errs
}

// walk visits matching regular files below the root in lexical order.
func (c *Connector) walk(ctx context.Context, visit func(path string) error) error {
	root := filepath.Clean(c.rootPath)
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return visit(root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Walk %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel := c.rel(path)
		hidden := !c.opts.IncludeHidden && isHidden(rel)
		if d.IsDir() {
			if hidden || c.opts.NoRecurse {
				return fs.SkipDir
			}
			return nil
		}
		if hidden || !d.Type().IsRegular() || !c.matches(rel) {
			return nil
		}
		return visit(path)
	})
}

// read loads one file, returning nil for files over the size limit.
func (c *Connector) read(path string) (*domain.RawDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if c.opts.MaxFileSize > 0 && info.Size() > c.opts.MaxFileSize {
		logger.Debug("Skipping %s: %d bytes exceeds limit", path, info.Size())
		return nil, nil //nolint:nilnil // a skipped file is not an error
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &domain.RawDocument{
		Name:     filepath.Base(path),
		URI:      abs,
		Kind:     domain.SourceKindFile,
		MIMEType: normalisers.DetectMIMEType(path, content),
		Size:     int64(len(content)),
		Content:  content,
		Metadata: map[string]any{
			MetaModified: info.ModTime().UTC().Format(time.RFC3339),
			MetaRelPath:  c.rel(path),
		},
	}, nil
}

// Watch reports created, modified and removed files until ctx ends or the
// connector is closed. New directories are watched as they appear.
func (c *Connector) Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	info, err := os.Stat(c.rootPath)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if info.IsDir() {
		err = c.addTree(w, c.rootPath)
	} else {
		err = w.Add(filepath.Dir(c.rootPath))
	}
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", c.rootPath, err)
	}
	c.watcher = w

	changes := make(chan domain.RawDocumentChange)
	go c.pump(ctx, w, changes)
	return changes, nil
}

func (c *Connector) pump(ctx context.Context, w *fsnotify.Watcher, out chan<- domain.RawDocumentChange) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("Watch error: %v", err)
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !c.opts.NoRecurse && event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := c.addTree(w, event.Name); err != nil {
						logger.Warn("Watch %s: %v", event.Name, err)
					}
				}
			}
			change, ok := c.handleFsEvent(event)
			if !ok {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleFsEvent converts an fsnotify event. Directories, hidden files,
// filtered files and chmod events produce nothing.
func (c *Connector) handleFsEvent(event fsnotify.Event) (domain.RawDocumentChange, bool) {
	rel := c.rel(event.Name)
	if !c.opts.IncludeHidden && isHidden(rel) {
		return domain.RawDocumentChange{}, false
	}
	if info, err := os.Stat(c.rootPath); err == nil && !info.IsDir() &&
		filepath.Clean(event.Name) != filepath.Clean(c.rootPath) {
		return domain.RawDocumentChange{}, false
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if !c.matches(rel) {
			return domain.RawDocumentChange{}, false
		}
		abs, err := filepath.Abs(event.Name)
		if err != nil {
			abs = event.Name
		}
		return domain.RawDocumentChange{
			Type: domain.ChangeDeleted,
			Document: domain.RawDocument{
				Name: filepath.Base(event.Name),
				URI:  abs,
				Kind: domain.SourceKindFile,
			},
		}, true

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || !info.Mode().IsRegular() || !c.matches(rel) {
			return domain.RawDocumentChange{}, false
		}
		doc, err := c.read(event.Name)
		if err != nil || doc == nil {
			return domain.RawDocumentChange{}, false
		}
		typ := domain.ChangeUpdated
		if event.Has(fsnotify.Create) {
			typ = domain.ChangeCreated
		}
		return domain.RawDocumentChange{Type: typ, Document: *doc}, true
	}
	return domain.RawDocumentChange{}, false
}

// addTree watches dir and every visible subdirectory.
func (c *Connector) addTree(w *fsnotify.Watcher, dir string) error {
	if c.opts.NoRecurse {
		return w.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && !c.opts.IncludeHidden && isHidden(c.rel(path)) {
			return fs.SkipDir
		}
		return w.Add(path)
	})
}

// Close stops any active watch. It is safe to call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// rel returns path relative to the root with forward slashes.
func (c *Connector) rel(path string) string {
	root := filepath.Clean(c.rootPath)
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		root = filepath.Dir(root)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// matches applies the include and exclude patterns.
func (c *Connector) matches(rel string) bool {
	if len(c.opts.Include) > 0 {
		included := false
		for _, p := range c.opts.Include {
			if ok, _ := doublestar.Match(p, rel); ok {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, p := range c.opts.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	return true
}

// isHidden reports whether any path element starts with a dot.
// The elements . and .. are not hidden.
func isHidden(path string) bool {
	for part := range strings.SplitSeq(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
