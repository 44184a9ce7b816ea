// Package mapping resolves configured handlers and runs them block by block.
package mapping

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/goran-ethernal/ChainProcessor/pkg/mapping"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
)

// Lookup holds the resolved handlers of one mapping configuration.
type Lookup struct {
	cfg      config.MappingConfig
	resolver mapping.Resolver

	events     map[string]mapping.HandlerFunc
	extrinsics map[string]mapping.HandlerFunc
	pre        []mapping.HandlerFunc
	post       []mapping.HandlerFunc
}

// NewLookup creates a lookup for cfg. Load must succeed before handlers are looked up.
func NewLookup(cfg config.MappingConfig, resolver mapping.Resolver) *Lookup {
	if resolver == nil {
		resolver = mapping.DefaultResolver
	}
	return &Lookup{cfg: cfg, resolver: resolver}
}

// Load resolves every handler reference. All unresolved references are reported together.
func (l *Lookup) Load() error {
	var missing []string
	resolve := func(ref string) mapping.HandlerFunc {
		h, ok := l.resolver.Resolve(ref)
		if !ok {
			missing = append(missing, ref)
		}
		return h
	}

	events := make(map[string]mapping.HandlerFunc, len(l.cfg.EventHandlers))
	for _, name := range slices.Sorted(maps.Keys(l.cfg.EventHandlers)) {
		events[name] = resolve(l.cfg.EventHandlers[name])
	}

	extrinsics := make(map[string]mapping.HandlerFunc, len(l.cfg.ExtrinsicHandlers))
	for _, name := range slices.Sorted(maps.Keys(l.cfg.ExtrinsicHandlers)) {
		extrinsics[name] = resolve(l.cfg.ExtrinsicHandlers[name])
	}

	pre := make([]mapping.HandlerFunc, 0, len(l.cfg.PreBlockHooks))
	for _, ref := range l.cfg.PreBlockHooks {
		pre = append(pre, resolve(ref))
	}

	post := make([]mapping.HandlerFunc, 0, len(l.cfg.PostBlockHooks))
	for _, ref := range l.cfg.PostBlockHooks {
		post = append(post, resolve(ref))
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", mapping.ErrUnresolvedHandler, strings.Join(missing, ", "))
	}

	l.events, l.extrinsics, l.pre, l.post = events, extrinsics, pre, post
	return nil
}

// EventHandler returns the handler of an event name.
func (l *Lookup) EventHandler(name string) (mapping.HandlerFunc, bool) {
	h, ok := l.events[name]
	return h, ok
}

// ExtrinsicHandler returns the handler of an extrinsic name.
func (l *Lookup) ExtrinsicHandler(name string) (mapping.HandlerFunc, bool) {
	h, ok := l.extrinsics[name]
	return h, ok
}

// HandlersFor returns the handlers an event triggers: its event handler, then the handler of
// its extrinsic when the event is an extrinsic success.
func (l *Lookup) HandlersFor(ev source.EventContext) []mapping.HandlerFunc {
	var out []mapping.HandlerFunc
	if h, ok := l.EventHandler(ev.Event.Name); ok {
		out = append(out, h)
	}
	if ev.Event.Name == source.ExtrinsicSuccessEvent && ev.Extrinsic != nil {
		if h, ok := l.ExtrinsicHandler(ev.Extrinsic.Name); ok {
			out = append(out, h)
		}
	}
	return out
}

// PreBlockHooks returns the pre-block hooks in declaration order.
func (l *Lookup) PreBlockHooks() []mapping.HandlerFunc {
	return l.pre
}

// PostBlockHooks returns the post-block hooks in declaration order.
func (l *Lookup) PostBlockHooks() []mapping.HandlerFunc {
	return l.post
}

// HasHooks reports whether any block hook is declared.
func (l *Lookup) HasHooks() bool {
	return len(l.cfg.PreBlockHooks) > 0 || len(l.cfg.PostBlockHooks) > 0
}

// Filter returns the indexer filter matching the declared handlers.
func (l *Lookup) Filter() source.Filter {
	return source.Filter{
		Events:     slices.Sorted(maps.Keys(l.cfg.EventHandlers)),
		Extrinsics: slices.Sorted(maps.Keys(l.cfg.ExtrinsicHandlers)),
	}
}
