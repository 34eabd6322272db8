// Package hooks provides an in-process hook registry and a lifecycle
// component that buffers registrations until the plugin runs.
//
// The [Registry] holds three kinds of callbacks:
//
//   - actions, fired with [Registry.DoAction] for their side effects;
//   - filters, chained by [Registry.ApplyFilters] to transform a value;
//   - shortcodes, one callback per tag, rendered with [Registry.DoShortcode].
//
// Actions and filters on the same hook run by ascending priority, and in
// registration order within a priority. A registration is identified by
// its [Key]: hook, component, callback name, priority and accepted
// argument count. Adding a key that is already registered replaces its
// function in place; nothing else is deduplicated.
package hooks

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// Defaults matching the conventional host registration values.
const (
	DefaultPriority     = 10
	DefaultAcceptedArgs = 1
)

// ActionFunc is an action callback. It receives at most the registration's
// AcceptedArgs arguments.
type ActionFunc func(ctx context.Context, args ...any)

// FilterFunc is a filter callback. It receives the current value and at
// most AcceptedArgs-1 extra arguments, and returns the new value.
type FilterFunc func(ctx context.Context, value any, args ...any) any

// ShortcodeFunc renders a shortcode from its attributes and enclosed
// content.
type ShortcodeFunc func(ctx context.Context, attrs map[string]string, content string) string

// Key identifies an action or filter registration.
type Key struct {
	// Hook is the name the callback is attached to.
	Hook string `json:"hook"`

	// Component names the object owning the callback, such as a
	// lifecycle component's name. It may be empty for free functions.
	Component string `json:"component,omitempty"`

	// Callback names the function, such as a method name.
	Callback string `json:"callback"`

	Priority     int `json:"priority"`
	AcceptedArgs int `json:"accepted_args"`
}

func (k Key) validate() error {
	if strings.TrimSpace(k.Hook) == "" {
		return sserr.New(sserr.CodeValidationRequired, "hooks: hook name must not be empty")
	}
	if strings.TrimSpace(k.Callback) == "" {
		return sserr.Newf(sserr.CodeValidationRequired, "hooks: callback name for %q must not be empty", k.Hook)
	}
	if k.AcceptedArgs < 0 {
		return sserr.Newf(sserr.CodeValidation,
			"hooks: accepted args for %q must be >= 0, got %d", k.Hook, k.AcceptedArgs)
	}
	return nil
}

// ActionHook is an action registration.
type ActionHook struct {
	Key
	Fn ActionFunc
}

// NewAction returns an action registration with the default priority and
// accepted argument count.
func NewAction(hook, component, callback string, fn ActionFunc) ActionHook {
	return ActionHook{
		Key: Key{Hook: hook, Component: component, Callback: callback,
			Priority: DefaultPriority, AcceptedArgs: DefaultAcceptedArgs},
		Fn: fn,
	}
}

func (a ActionHook) validate() error {
	if err := a.Key.validate(); err != nil {
		return err
	}
	if a.Fn == nil {
		return sserr.Newf(sserr.CodeValidation, "hooks: action %q has no function", a.Hook)
	}
	return nil
}

// FilterHook is a filter registration.
type FilterHook struct {
	Key
	Fn FilterFunc
}

// NewFilter returns a filter registration with the default priority and
// accepted argument count.
func NewFilter(hook, component, callback string, fn FilterFunc) FilterHook {
	return FilterHook{
		Key: Key{Hook: hook, Component: component, Callback: callback,
			Priority: DefaultPriority, AcceptedArgs: DefaultAcceptedArgs},
		Fn: fn,
	}
}

func (f FilterHook) validate() error {
	if err := f.Key.validate(); err != nil {
		return err
	}
	if f.Fn == nil {
		return sserr.Newf(sserr.CodeValidation, "hooks: filter %q has no function", f.Hook)
	}
	return nil
}

// Shortcode is a shortcode registration. A tag has at most one callback.
type Shortcode struct {
	Tag       string `json:"tag"`
	Component string `json:"component,omitempty"`
	Callback  string `json:"callback"`
	Fn        ShortcodeFunc
}

func (s Shortcode) validate() error {
	if strings.TrimSpace(s.Tag) == "" {
		return sserr.New(sserr.CodeValidationRequired, "hooks: shortcode tag must not be empty")
	}
	if strings.ContainsAny(s.Tag, " \t\n[]/<>&") {
		return sserr.Newf(sserr.CodeValidationFormat, "hooks: shortcode tag %q contains invalid characters", s.Tag)
	}
	if s.Fn == nil {
		return sserr.Newf(sserr.CodeValidation, "hooks: shortcode %q has no function", s.Tag)
	}
	return nil
}

type entry[F any] struct {
	key Key
	fn  F
	seq uint64
}

// Registry is an in-process hook table. It is safe for concurrent use.
// Callbacks are invoked outside the registry lock and may register or
// remove other callbacks; such changes take effect from the next call.
type Registry struct {
	mu         sync.RWMutex
	seq        uint64
	actions    map[string][]entry[ActionFunc]
	filters    map[string][]entry[FilterFunc]
	shortcodes map[string]Shortcode
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions:    make(map[string][]entry[ActionFunc]),
		filters:    make(map[string][]entry[FilterFunc]),
		shortcodes: make(map[string]Shortcode),
	}
}

// add inserts or replaces an entry, keeping list ordered by priority and
// then registration sequence.
func add[F any](r *Registry, list []entry[F], key Key, fn F) []entry[F] {
	for i := range list {
		if list[i].key == key {
			list[i].fn = fn
			return list
		}
	}
	r.seq++
	list = append(list, entry[F]{key: key, fn: fn, seq: r.seq})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].key.Priority != list[j].key.Priority {
			return list[i].key.Priority < list[j].key.Priority
		}
		return list[i].seq < list[j].seq
	})
	return list
}

func remove[F any](list []entry[F], key Key) ([]entry[F], bool) {
	for i := range list {
		if list[i].key == key {
			return slices.Delete(list, i, i+1), true
		}
	}
	return list, false
}

func keys[F any](list []entry[F]) []Key {
	out := make([]Key, len(list))
	for i, e := range list {
		out[i] = e.key
	}
	return out
}

// capArgs returns at most n leading arguments.
func capArgs(args []any, n int) []any {
	if n < 0 {
		n = 0
	}
	if len(args) > n {
		return args[:n]
	}
	return args
}

// AddAction registers an action callback.
func (r *Registry) AddAction(a ActionHook) error {
	if err := a.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[a.Hook] = add(r, r.actions[a.Hook], a.Key, a.Fn)
	return nil
}

// RemoveAction removes the action registered under key and reports
// whether it existed.
func (r *Registry) RemoveAction(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, ok := remove(r.actions[key.Hook], key)
	if len(list) == 0 {
		delete(r.actions, key.Hook)
	} else {
		r.actions[key.Hook] = list
	}
	return ok
}

// HasAction reports whether any action is registered on hook.
func (r *Registry) HasAction(hook string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions[hook]) > 0
}

// Actions returns the keys registered on hook in invocation order.
func (r *Registry) Actions(hook string) []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return keys(r.actions[hook])
}

// DoAction calls every action registered on hook and returns how many ran.
// Each callback receives at most its AcceptedArgs leading arguments.
func (r *Registry) DoAction(ctx context.Context, hook string, args ...any) int {
	r.mu.RLock()
	list := slices.Clone(r.actions[hook])
	r.mu.RUnlock()

	for _, e := range list {
		e.fn(ctx, capArgs(args, e.key.AcceptedArgs)...)
	}
	return len(list)
}

// AddFilter registers a filter callback.
func (r *Registry) AddFilter(f FilterHook) error {
	if err := f.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[f.Hook] = add(r, r.filters[f.Hook], f.Key, f.Fn)
	return nil
}

// RemoveFilter removes the filter registered under key and reports
// whether it existed.
func (r *Registry) RemoveFilter(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, ok := remove(r.filters[key.Hook], key)
	if len(list) == 0 {
		delete(r.filters, key.Hook)
	} else {
		r.filters[key.Hook] = list
	}
	return ok
}

// HasFilter reports whether any filter is registered on hook.
func (r *Registry) HasFilter(hook string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.filters[hook]) > 0
}

// Filters returns the keys registered on hook in invocation order.
func (r *Registry) Filters(hook string) []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return keys(r.filters[hook])
}

// ApplyFilters passes value through every filter registered on hook and
// returns the result. The value counts as the first accepted argument, so
// a filter receives at most AcceptedArgs-1 extra arguments.
func (r *Registry) ApplyFilters(ctx context.Context, hook string, value any, args ...any) any {
	r.mu.RLock()
	list := slices.Clone(r.filters[hook])
	r.mu.RUnlock()

	for _, e := range list {
		value = e.fn(ctx, value, capArgs(args, e.key.AcceptedArgs-1)...)
	}
	return value
}

// AddShortcode registers s, replacing any callback already bound to its
// tag.
func (r *Registry) AddShortcode(s Shortcode) error {
	if err := s.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shortcodes[s.Tag] = s
	return nil
}

// RemoveShortcode unbinds tag and reports whether it was bound.
func (r *Registry) RemoveShortcode(tag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.shortcodes[tag]
	delete(r.shortcodes, tag)
	return ok
}

// HasShortcode reports whether tag is bound.
func (r *Registry) HasShortcode(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.shortcodes[tag]
	return ok
}

// DoShortcode renders tag with the given attributes and content. It
// returns a [sserr.CodeNotFound] error if tag is not bound.
func (r *Registry) DoShortcode(ctx context.Context, tag string, attrs map[string]string, content string) (string, error) {
	r.mu.RLock()
	s, ok := r.shortcodes[tag]
	r.mu.RUnlock()
	if !ok {
		return "", sserr.NotFoundf("hooks: shortcode %q is not registered", tag)
	}
	if attrs == nil {
		attrs = map[string]string{}
	}
	return s.Fn(ctx, attrs, content), nil
}
