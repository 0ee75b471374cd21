package project

import (
	"testing/fstest"
)

// Files builds an in-memory project from path -> content.
func Files(files map[string]string) *Dir {
	m := make(fstest.MapFS, len(files))
	for name, content := range files {
		m[clean(name)] = &fstest.MapFile{Data: []byte(content)}
	}
	d, err := NewFS(m, "memory", DefaultCacheSize)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return d
}
