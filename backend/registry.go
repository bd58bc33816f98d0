package backend

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Config carries the construction parameters common to all adapters.
type Config struct {
	// DataDir is the directory the adapter persists its state under.
	DataDir string

	// SnapshotDir is the directory the snapshot manager captures into.
	SnapshotDir string

	Logger *slog.Logger
}

// Factory constructs an adapter from its configuration. It must not open
// the backend; the dispatcher controls the open/close lifecycle.
type Factory func(cfg Config) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register installs a factory under name. Adapters call this from init, so
// the registry is fully populated at process start. Registering the same
// name twice panics: it is always a programming error.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("backend: duplicate registration for %q", name))
	}

	registry[name] = f
}

// New constructs the adapter registered under name.
func New(name string, cfg Config) (Backend, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf(
			"unknown backend %q (registered: %v)", name, Registered(),
		)
	}

	return f(cfg)
}

// Registered returns the sorted names of all registered adapters.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
