package mapping

import (
	"slices"
	"strings"
	"sync"

	"github.com/goran-ethernal/ChainProcessor/internal/db"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
)

var (
	registry   = make(map[string]HandlerFunc)
	migrations = make(map[string][]db.Migration)
	mu         sync.RWMutex
)

// Register registers a handler under the given reference, e.g. "balances.handleTransfer".
// This is typically called in init() functions of mapping packages.
// References are case-insensitive.
func Register(ref string, handler HandlerFunc) {
	mu.Lock()
	defer mu.Unlock()

	name := strings.ToLower(ref)
	if _, exists := registry[name]; exists {
		logger.GetDefaultLogger().Infof("handler %s already in mapping registry. It will be overwritten.", name)
	}

	registry[name] = handler
}

// RegisterMigrations registers the schema of a mapping package. Each migration id is
// namespaced by the package name.
func RegisterMigrations(pkg string, migs ...db.Migration) {
	mu.Lock()
	defer mu.Unlock()

	for i := range migs {
		if migs[i].Prefix == "" {
			migs[i].Prefix = pkg + "_"
		}
	}
	migrations[pkg] = migs
}

// Resolve returns the handler registered under ref.
func Resolve(ref string) (HandlerFunc, bool) {
	mu.RLock()
	defer mu.RUnlock()

	h, ok := registry[strings.ToLower(ref)]
	return h, ok
}

// ListRegistered returns all registered handler references, sorted.
func ListRegistered() []string {
	mu.RLock()
	defer mu.RUnlock()

	refs := make([]string, 0, len(registry))
	for ref := range registry {
		refs = append(refs, ref)
	}
	slices.Sort(refs)

	return refs
}

// RegisteredMigrations returns the migrations of all mapping packages, ordered by package.
func RegisteredMigrations() []db.Migration {
	mu.RLock()
	defer mu.RUnlock()

	pkgs := make([]string, 0, len(migrations))
	for pkg := range migrations {
		pkgs = append(pkgs, pkg)
	}
	slices.Sort(pkgs)

	var out []db.Migration
	for _, pkg := range pkgs {
		out = append(out, migrations[pkg]...)
	}
	return out
}

// Resolver maps handler references to handlers.
type Resolver interface {
	Resolve(ref string) (HandlerFunc, bool)
}

// DefaultResolver resolves against the global registry.
var DefaultResolver Resolver = registryResolver{}

type registryResolver struct{}

func (registryResolver) Resolve(ref string) (HandlerFunc, bool) {
	return Resolve(ref)
}

// Handlers is a fixed set of handlers keyed by reference.
type Handlers map[string]HandlerFunc

func (h Handlers) Resolve(ref string) (HandlerFunc, bool) {
	if fn, ok := h[ref]; ok {
		return fn, true
	}
	fn, ok := h[strings.ToLower(ref)]
	return fn, ok
}
