// Package container is a small constructor-injection container used by main
// to wire the pipeline. Providers are plain constructor functions.
package container

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type provider struct {
	fn        reflect.Value
	out       reflect.Type
	singleton bool
}

// Container resolves values by type. A request for an interface type is
// served by the single provider whose output implements it.
type Container struct {
	mu        sync.Mutex
	prov      map[reflect.Type]provider
	instances map[reflect.Type]reflect.Value
	closers   []io.Closer
}

func New() *Container {
	return &Container{
		prov:      make(map[reflect.Type]provider),
		instances: make(map[reflect.Type]reflect.Value),
	}
}

// Provide registers a constructor returning T or (T, error). Its parameters
// are resolved from the container when T is first requested.
func (c *Container) Provide(constructor any, singleton bool) error {
	v := reflect.ValueOf(constructor)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("container: constructor must be a function, got %T", constructor)
	}
	ft := v.Type()
	if ft.NumOut() == 0 || ft.NumOut() > 2 || (ft.NumOut() == 2 && ft.Out(1) != errorType) {
		return fmt.Errorf("container: constructor %v must return (T) or (T, error)", ft)
	}
	out := ft.Out(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.prov[out]; exists {
		return fmt.Errorf("container: provider already exists for %v", out)
	}
	c.prov[out] = provider{fn: v, out: out, singleton: singleton}
	return nil
}

// MustProvide is Provide for static wiring in main, where a bad constructor
// is a programming error.
func (c *Container) MustProvide(constructor any, singleton bool) {
	if err := c.Provide(constructor, singleton); err != nil {
		panic(err)
	}
}

// Resolve builds (or returns the cached) T.
func Resolve[T any](c *Container) (T, error) {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := c.get(t, map[reflect.Type]bool{})
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

// Invoke calls fn with its parameters resolved from the container. A trailing
// error result is returned.
func (c *Container) Invoke(fn any) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("container: Invoke requires a function, got %T", fn)
	}
	c.mu.Lock()
	args, err := c.args(v.Type(), map[reflect.Type]bool{})
	c.mu.Unlock()
	if err != nil {
		return err
	}
	outs := v.Call(args)
	if n := len(outs); n > 0 && outs[n-1].Type() == errorType && !outs[n-1].IsNil() {
		return outs[n-1].Interface().(error)
	}
	return nil
}

// Close closes every built singleton that implements io.Closer, newest
// first, and returns the first error.
func (c *Container) Close() error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// lookup finds the provider for t. Callers hold c.mu.
func (c *Container) lookup(t reflect.Type) (provider, error) {
	if p, ok := c.prov[t]; ok {
		return p, nil
	}
	if t.Kind() != reflect.Interface {
		return provider{}, fmt.Errorf("container: no provider for %v", t)
	}
	var matches []provider
	for pt, p := range c.prov {
		if pt.Implements(t) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return provider{}, fmt.Errorf("container: no provider for %v", t)
	case 1:
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.out.String()
	}
	sort.Strings(names)
	return provider{}, fmt.Errorf("container: %v is ambiguous, implemented by %v", t, names)
}

// get builds t. Callers hold c.mu.
func (c *Container) get(t reflect.Type, seen map[reflect.Type]bool) (reflect.Value, error) {
	p, err := c.lookup(t)
	if err != nil {
		return reflect.Value{}, err
	}
	if v, ok := c.instances[p.out]; ok {
		return v, nil
	}
	if seen[p.out] {
		return reflect.Value{}, fmt.Errorf("container: cyclic dependency for %v", p.out)
	}
	seen[p.out] = true
	defer delete(seen, p.out)

	args, err := c.args(p.fn.Type(), seen)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("container: building %v: %w", p.out, err)
	}
	outs := p.fn.Call(args)
	if len(outs) == 2 && !outs[1].IsNil() {
		return reflect.Value{}, fmt.Errorf("container: building %v: %w", p.out, outs[1].Interface().(error))
	}
	res := outs[0]
	if p.singleton {
		c.instances[p.out] = res
		if cl, ok := res.Interface().(io.Closer); ok && !isNil(res) {
			c.closers = append(c.closers, cl)
		}
	}
	return res, nil
}

func (c *Container) args(ft reflect.Type, seen map[reflect.Type]bool) ([]reflect.Value, error) {
	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		v, err := c.get(ft.In(i), seen)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
