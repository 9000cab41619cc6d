package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/pkathuria/comicden/internal/errs"
	"github.com/pkathuria/comicden/internal/fetch"
	"github.com/pkathuria/comicden/internal/provider"
)

// callTimeout bounds a single script call. A plugin stuck in a loop fails
// the operation instead of wedging the worker.
const callTimeout = 30 * time.Second

// requiredExports per baseclass. ManhwaLike plugins carry their whole
// behavior in the manifest, so their script (when present) owes nothing.
var requiredExports = map[string][]string{
	BaseOnline:     {"chapterUrl", "filterPages"},
	BaseManhwaLike: {},
}

// Runtime hosts one plugin script inside a goja VM. The VM is not
// re-entrant; calls serialize on the runtime mutex.
type Runtime struct {
	manifest *Manifest
	dir      string
	vm       *goja.Runtime

	mu   sync.Mutex
	deps provider.Deps
	ctx  context.Context
}

// NewRuntime loads and executes the plugin's entry script, then checks that
// every export the baseclass requires is present and callable.
func NewRuntime(manifest *Manifest, dir string) (*Runtime, error) {
	r := &Runtime{manifest: manifest, dir: dir, vm: goja.New()}
	r.inject()

	script, err := os.ReadFile(filepath.Join(dir, manifest.EntryPoint))
	if err != nil {
		return nil, fmt.Errorf("failed to read entry script: %w", err)
	}

	exports := r.vm.NewObject()
	r.vm.Set("exports", exports)

	// CommonJS-style wrapper so top-level vars stay module-local.
	wrapped := fmt.Sprintf("(function(exports) {\n%s\n})(exports);", script)
	if _, err := r.vm.RunString(wrapped); err != nil {
		return nil, fmt.Errorf("entry script failed: %w", err)
	}

	for _, name := range requiredExports[manifest.Baseclass] {
		if _, ok := goja.AssertFunction(exports.Get(name)); !ok {
			return nil, fmt.Errorf("plugin missing required export: %s", name)
		}
	}
	return r, nil
}

// Manifest returns the parsed plugin.json.
func (r *Runtime) Manifest() *Manifest { return r.manifest }

// Bind hands the runtime the shared app resources. Must happen before the
// first Call; the den.http surface routes through the bound pool.
func (r *Runtime) Bind(deps provider.Deps) {
	r.mu.Lock()
	r.deps = deps
	r.mu.Unlock()
}

func (r *Runtime) pool() *fetch.Pool {
	if r.deps.Pool == nil {
		panic(r.vm.ToValue("plugin runtime has no HTTP pool bound"))
	}
	return r.deps.Pool
}

func (r *Runtime) callCtx() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// Has reports whether the script exports a callable under name.
func (r *Runtime) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	exports := r.vm.Get("exports").ToObject(r.vm)
	_, ok := goja.AssertFunction(exports.Get(name))
	return ok
}

// Call invokes an exported function with panic recovery, cancellation and a
// hard time budget. Script failures come back as permanent errors keyed to
// the plugin id.
func (r *Runtime) Call(ctx context.Context, name string, args ...interface{}) (goja.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = ctx
	defer func() { r.ctx = nil }()

	exports := r.vm.Get("exports").ToObject(r.vm)
	fn, ok := goja.AssertFunction(exports.Get(name))
	if !ok {
		return nil, errs.New(errs.KindPermanent, "plugin %s does not export %s",
			r.manifest.ProviderID, name)
	}

	gojaArgs := make([]goja.Value, len(args))
	for i, a := range args {
		gojaArgs[i] = r.vm.ToValue(a)
	}

	type outcome struct {
		val goja.Value
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: errs.New(errs.KindPermanent,
					"plugin %s: %s panicked: %v", r.manifest.ProviderID, name, rec)}
			}
		}()
		val, err := fn(goja.Undefined(), gojaArgs...)
		if err != nil {
			done <- outcome{err: errs.Wrap(errs.KindPermanent, err,
				"plugin %s: %s failed", r.manifest.ProviderID, name)}
			return
		}
		done <- outcome{val: val}
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-ctx.Done():
		r.vm.Interrupt("cancelled")
		<-done
		r.vm.ClearInterrupt()
		return nil, errs.Wrap(errs.KindCancelled, ctx.Err(),
			"plugin %s: %s cancelled", r.manifest.ProviderID, name)
	case <-time.After(callTimeout):
		r.vm.Interrupt("timeout")
		<-done
		r.vm.ClearInterrupt()
		return nil, errs.New(errs.KindTransient,
			"plugin %s: %s timed out after %s", r.manifest.ProviderID, name, callTimeout)
	}
}

// StringSlice converts a script return value into []string, tolerating
// non-string members by formatting them.
func StringSlice(val goja.Value) []string {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	arr, ok := val.Export().([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if item == nil {
			continue
		}
		if s, ok := item.(string); ok {
			out = append(out, s)
		} else {
			out = append(out, fmt.Sprint(item))
		}
	}
	return out
}
