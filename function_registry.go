package settings

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function is a helper callable from field rules.
type Function func(args ...any) (any, error)

// FunctionRegistry stores rule helpers. Lookups through Call ignore case;
// engines bind each helper under the name it was registered with.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]namedFunction
}

type namedFunction struct {
	name string
	fn   Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]namedFunction)}
}

// DefaultFunctions returns a registry holding the built-in rule helpers:
// between(x, lo, hi) and oneOf(x, options...).
func DefaultFunctions() *FunctionRegistry {
	r := NewFunctionRegistry()
	_ = r.Register("between", between)
	_ = r.Register("oneOf", oneOf)
	return r
}

// Register stores fn under name. Names must be unique.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("settings: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("settings: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]namedFunction)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("settings: function %q already registered", name)
	}
	r.functions[key] = namedFunction{name: name, fn: fn}
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]namedFunction, len(r.functions))}
	for key, entry := range r.functions {
		clone.functions[key] = entry
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("settings: function registry is nil")
	}
	r.mu.RLock()
	entry, ok := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("settings: function %q not registered", name)
	}
	return entry.fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for _, entry := range r.functions {
		names = append(names, entry.name)
	}
	sort.Strings(names)
	return names
}

func between(args ...any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("settings: between expects 3 arguments, got %d", len(args))
	}
	nums := make([]float64, 3)
	for i, arg := range args {
		n, ok := toFloat(arg)
		if !ok {
			return false, nil
		}
		nums[i] = n
	}
	return nums[0] >= nums[1] && nums[0] <= nums[2], nil
}

func oneOf(args ...any) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("settings: oneOf expects at least 1 argument")
	}
	target, err := ValueOf(args[0])
	if err != nil {
		return false, nil
	}
	for _, option := range args[1:] {
		candidate, err := ValueOf(option)
		if err != nil {
			continue
		}
		if target.Equal(candidate) {
			return true, nil
		}
	}
	return false, nil
}

func toFloat(x any) (float64, bool) {
	v, err := ValueOf(x)
	if err != nil {
		return 0, false
	}
	return v.AsNumber()
}
