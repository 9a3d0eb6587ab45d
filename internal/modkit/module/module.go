// Package module defines the contract a modkit module satisfies and a small
// registry main uses to look modules up by name after wiring
package module

import (
	"fmt"
	"reflect"
	"sync"
)

// Module is what every service module exposes to main
type Module interface {
	Ports() any
	Name() string
}

// Registry holds wired modules by name
type Registry struct {
	mu   sync.RWMutex
	mods map[string]Module
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry { return &Registry{mods: map[string]Module{}} }

// Default is the process registry used by the package level helpers
var Default = NewRegistry()

// Register adds m under m.Name(). Registering the same name twice is an error
func (r *Registry) Register(m Module) error {
	if m == nil || m.Name() == "" {
		return fmt.Errorf("module: register needs a named module")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.mods[m.Name()]; dup {
		return fmt.Errorf("module: %q already registered", m.Name())
	}
	r.mods[m.Name()] = m
	return nil
}

// Lookup returns the module registered under name
func (r *Registry) Lookup(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mods[name]
	return m, ok
}

// Register adds m to Default
func Register(m Module) error { return Default.Register(m) }

// PortsAs finds the module called name in Default and extracts T from its ports
func PortsAs[T any](name string) (T, bool) {
	m, ok := Default.Lookup(name)
	if !ok {
		var zero T
		return zero, false
	}
	return PortsOf[T](m)
}

// PortsOf extracts T from m.Ports(), either the whole value or the first
// exported struct field that is a T
func PortsOf[T any](m Module) (T, bool) {
	var zero T
	p := m.Ports()
	if p == nil {
		return zero, false
	}
	if v, ok := p.(T); ok {
		return v, true
	}
	rv := reflect.ValueOf(p)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return zero, false
	}
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanInterface() {
			continue
		}
		if v, ok := f.Interface().(T); ok {
			return v, true
		}
	}
	return zero, false
}

// MustPortsOf is PortsOf for wiring code where a missing port is a bug
func MustPortsOf[T any](m Module) T {
	v, ok := PortsOf[T](m)
	if !ok {
		panic(fmt.Sprintf("module %s: no port of type %s", m.Name(), reflect.TypeFor[T]()))
	}
	return v
}
