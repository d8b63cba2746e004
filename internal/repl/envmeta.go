package repl

import "github.com/dop251/goja"

// EnvSnapshot is what the Context Builder shows the model for §4.3 section
// 3: env.* keys and user global bindings, each reduced to a VarDescriptor —
// never the raw value.
type EnvSnapshot struct {
	Env     []VarDescriptor `json:"env"`
	Globals []VarDescriptor `json:"globals"`
}

// EnvMetadata enumerates (a) env.* keys and (b) hoisted user global
// bindings, filtering the closed builtin allowlist (spec.md §4.2).
func (r *REPL) EnvMetadata() EnvSnapshot {
	snap := EnvSnapshot{}

	envVal := r.vm.Get("env")
	if envVal != nil {
		if obj, ok := envVal.(*goja.Object); ok {
			for _, key := range obj.Keys() {
				d := describe(obj.Get(key))
				snap.Env = append(snap.Env, VarDescriptor{Name: key, descriptor: d})
			}
		}
	}

	for name := range r.hoisted {
		if builtinAllowlist[name] {
			continue
		}
		v := r.vm.Get(name)
		if v == nil || goja.IsUndefined(v) {
			continue
		}
		d := describe(v)
		snap.Globals = append(snap.Globals, VarDescriptor{Name: name, descriptor: d})
	}

	return snap
}
