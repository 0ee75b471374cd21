// Package project answers file queries about a pushed revision.
package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds memoised queries per project.
const DefaultCacheSize = 1024

// excludedDirs are never searched by Glob.
var excludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
}

// Dir is a project backed by a file system, usually a checkout on disk.
// Query results are memoised: the revision does not change under a push.
type Dir struct {
	fsys  fs.FS
	root  string
	files *lru.Cache[string, bool]
	globs *lru.Cache[string, []string]
}

// NewDir creates a project over the checkout at root.
func NewDir(root string, cacheSize int) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open project: %s is not a directory", root)
	}
	return NewFS(os.DirFS(root), root, cacheSize)
}

// NewFS creates a project over an arbitrary file system. name is used in
// error messages only.
func NewFS(fsys fs.FS, name string, cacheSize int) (*Dir, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	files, err := lru.New[string, bool](cacheSize)
	if err != nil {
		return nil, err
	}
	globs, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Dir{fsys: fsys, root: name, files: files, globs: globs}, nil
}

// Root returns the project's location.
func (d *Dir) Root() string {
	return d.root
}

// HasFile implements push.Project.
func (d *Dir) HasFile(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	name = clean(name)
	if ok, hit := d.files.Get(name); hit {
		return ok, nil
	}

	info, err := fs.Stat(d.fsys, name)
	switch {
	case err == nil:
		ok := !info.IsDir()
		d.files.Add(name, ok)
		return ok, nil
	case errors.Is(err, fs.ErrNotExist):
		d.files.Add(name, false)
		return false, nil
	default:
		return false, fmt.Errorf("stat %s in %s: %w", name, d.root, err)
	}
}

// Glob implements push.Project.
func (d *Dir) Glob(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cached, hit := d.globs.Get(pattern); hit {
		return append([]string(nil), cached...), nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}

	var matches []string
	err := doublestar.GlobWalk(d.fsys, pattern, func(p string, entry fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if excluded(p) || entry.IsDir() {
			return nil
		}
		matches = append(matches, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("glob %s in %s: %w", pattern, d.root, err)
	}
	sort.Strings(matches)
	d.globs.Add(pattern, matches)
	return append([]string(nil), matches...), nil
}

// ReadFile implements push.Project.
func (d *Dir) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(d.fsys, clean(name))
	if err != nil {
		return nil, fmt.Errorf("read %s in %s: %w", name, d.root, err)
	}
	return data, nil
}

func clean(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

func excluded(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if excludedDirs[part] {
			return true
		}
	}
	return false
}
