// Package asset implements the loading collaborator the scheduler gates on:
// named YAML documents loaded from a directory, cached forever once loaded.
package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Library loads and caches assets keyed by name. Load is idempotent:
// concurrent calls for the same key share one in-flight read, and the
// scheduler only ever touches IsLoaded.
type Library struct {
	dir string
	log *zap.Logger

	mu       sync.Mutex
	loaded   map[string]any
	inflight map[string]*inflightLoad
}

type inflightLoad struct {
	once  sync.Once
	value any
	err   error
}

func NewLibrary(dir string, log *zap.Logger) *Library {
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{
		dir:      dir,
		log:      log,
		loaded:   make(map[string]any, 16),
		inflight: make(map[string]*inflightLoad, 4),
	}
}

// IsLoaded reports whether the key's value is cached.
func (l *Library) IsLoaded(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loaded[key]
	return ok
}

// Get returns a cached value without triggering a load.
func (l *Library) Get(key string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.loaded[key]
	return v, ok
}

// Loaded returns the number of cached assets.
func (l *Library) Loaded() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loaded)
}

// Load reads <dir>/<key>.yaml, caches the decoded document, and returns it.
// Re-loading a cached key returns the cached value; a failed load is retried
// on the next call.
func (l *Library) Load(key string) (any, error) {
	l.mu.Lock()
	if v, ok := l.loaded[key]; ok {
		l.mu.Unlock()
		return v, nil
	}
	fl, ok := l.inflight[key]
	if !ok {
		fl = &inflightLoad{}
		l.inflight[key] = fl
	}
	l.mu.Unlock()

	fl.once.Do(func() {
		fl.value, fl.err = l.read(key)
	})

	l.mu.Lock()
	delete(l.inflight, key)
	if fl.err == nil {
		l.loaded[key] = fl.value
	}
	l.mu.Unlock()

	if fl.err != nil {
		return nil, fl.err
	}
	l.log.Debug("asset loaded", zap.String("key", key))
	return fl.value, nil
}

func (l *Library) read(key string) (any, error) {
	path := filepath.Join(l.dir, key+".yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asset %q: %w", key, err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse asset %q: %w", key, err)
	}
	return doc, nil
}
