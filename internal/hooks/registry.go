package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds registered hooks and dispatches the lifecycle callbacks.
// A hook registers once under a unique name and may implement any subset
// of the hook interfaces; callbacks it does not implement are skipped.
//
// Dispatch is fail-open: a hook error or panic is logged under the hook's
// name and dispatch moves on to the next hook.
type Registry struct {
	mu     sync.RWMutex
	names  []string
	hooks  map[string]any
	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger falls back to
// slog.Default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		hooks:  make(map[string]any),
		logger: logger,
	}
}

// Register adds a hook under name. The hook must implement at least one
// of the hook interfaces, and the name must be unused.
func (r *Registry) Register(name string, hook any) error {
	if name == "" {
		return fmt.Errorf("hook name cannot be empty")
	}

	_, isBefore := hook.(BeforeRunHook)
	_, isAfterTask := hook.(AfterTaskHook)
	_, isAfterRun := hook.(AfterRunHook)
	if !isBefore && !isAfterTask && !isAfterRun {
		return fmt.Errorf("hook %q implements no hook interface", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[name]; exists {
		return fmt.Errorf("hook %q is already registered", name)
	}
	r.hooks[name] = hook
	r.names = append(r.names, name)
	return nil
}

// Names returns the registered hook names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// BeforeRun dispatches to every hook implementing BeforeRunHook, in
// registration order.
func (r *Registry) BeforeRun(ctx context.Context, info RunInfo) {
	for _, name := range r.Names() {
		hook := r.get(name)
		h, ok := hook.(BeforeRunHook)
		if !ok {
			continue
		}
		r.invoke(ctx, name, "before_run", func() error {
			return h.BeforeRun(ctx, info)
		})
	}
}

// AfterTask dispatches to every hook implementing AfterTaskHook, in
// registration order.
func (r *Registry) AfterTask(ctx context.Context, info TaskInfo) {
	for _, name := range r.Names() {
		hook := r.get(name)
		h, ok := hook.(AfterTaskHook)
		if !ok {
			continue
		}
		r.invoke(ctx, name, "after_task", func() error {
			return h.AfterTask(ctx, info)
		})
	}
}

// AfterRun dispatches to every hook implementing AfterRunHook, in
// registration order.
func (r *Registry) AfterRun(ctx context.Context, summary RunSummary) {
	for _, name := range r.Names() {
		hook := r.get(name)
		h, ok := hook.(AfterRunHook)
		if !ok {
			continue
		}
		r.invoke(ctx, name, "after_run", func() error {
			return h.AfterRun(ctx, summary)
		})
	}
}

func (r *Registry) get(name string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hooks[name]
}

// invoke runs one hook callback, absorbing errors and panics so a broken
// hook cannot affect the run or the remaining hooks.
func (r *Registry) invoke(ctx context.Context, name, callback string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "hook panicked",
				"hook", name,
				"callback", callback,
				"panic", fmt.Sprintf("%v", rec))
		}
	}()

	if err := fn(); err != nil {
		r.logger.WarnContext(ctx, "hook failed",
			"hook", name,
			"callback", callback,
			"error", err)
	}
}
