package message

import (
	"fmt"
	"sort"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/header"
)

// Constructor returns an empty content value for one type name.
type Constructor func() Content

// Kind binds a wire type name to its constructor.
type Kind struct {
	Name string
	New  Constructor
}

// Registry maps type names to constructors. A Registry is never modified
// after construction, so lookups are safe from any goroutine.
type Registry struct {
	kinds map[string]Constructor
}

// NewRegistry builds a registry from kinds.
func NewRegistry(kinds ...Kind) (*Registry, error) {
	r := &Registry{kinds: make(map[string]Constructor, len(kinds))}
	if err := r.add(kinds); err != nil {
		return nil, err
	}
	return r, nil
}

// With returns a new registry holding r's kinds plus kinds. r is unchanged.
func (r *Registry) With(kinds ...Kind) (*Registry, error) {
	next := &Registry{kinds: make(map[string]Constructor, len(r.kinds)+len(kinds))}
	for name, ctor := range r.kinds {
		next.kinds[name] = ctor
	}
	if err := next.add(kinds); err != nil {
		return nil, err
	}
	return next, nil
}

func (r *Registry) add(kinds []Kind) error {
	for _, k := range kinds {
		if err := validateTypeName(k.Name); err != nil {
			return err
		}
		if k.New == nil {
			return fmt.Errorf("registry: kind %q has no constructor", k.Name)
		}
		if _, ok := r.kinds[k.Name]; ok {
			return fmt.Errorf("%w: %q", protocol.ErrDuplicateType, k.Name)
		}
		r.kinds[k.Name] = k.New
	}
	return nil
}

func validateTypeName(name string) error {
	if name == "" || len(name) > header.TypeNameSize {
		return fmt.Errorf("%w: type name %q must be 1-%d bytes", protocol.ErrFormat, name, header.TypeNameSize)
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] > 0x7e {
			return fmt.Errorf("%w: type name %q is not printable ASCII", protocol.ErrFormat, name)
		}
	}
	return nil
}

// Lookup returns the constructor registered for name.
func (r *Registry) Lookup(name string) (Constructor, bool) {
	ctor, ok := r.kinds[name]
	return ctor, ok
}

// Names returns registered type names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a receive-path message for h. A header version other than
// 1 or 2 yields ErrVersion and an unregistered type name ErrUnknownType;
// in both cases the caller can still skip h.BodySize bytes.
func (r *Registry) New(h header.Header) (*Message, error) {
	if h.Version != header.Version1 && h.Version != header.Version2 {
		return nil, fmt.Errorf("%w: %d", protocol.ErrVersion, h.Version)
	}
	ctor, ok := r.kinds[h.TypeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", protocol.ErrUnknownType, h.TypeName)
	}
	m := &Message{content: ctor()}
	if err := m.SetHeader(h); err != nil {
		return nil, err
	}
	return m, nil
}

var defaultRegistry = mustRegistry(builtinKinds()...)

func mustRegistry(kinds ...Kind) *Registry {
	r, err := NewRegistry(kinds...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the registry of built-in kinds. It is populated during
// package initialization and read-only afterwards.
func Default() *Registry {
	return defaultRegistry
}

func builtinKinds() []Kind {
	kinds := []Kind{
		{Name: TypeTransform, New: func() Content { return NewTransform() }},
		{Name: TypePosition, New: func() Content { return &Position{} }},
		{Name: TypeImage, New: func() Content { return &Image{} }},
		{Name: TypeString, New: func() Content { return &String{} }},
		{Name: TypeStatus, New: func() Content { return &Status{} }},
		{Name: TypeCapability, New: func() Content { return &Capability{} }},
		{Name: TypeVideo, New: func() Content { return &Video{} }},
		{Name: TypePolyData, New: func() Content { return &PolyData{} }},
	}
	for _, name := range QueryTypes {
		kinds = append(kinds, Kind{Name: name, New: queryConstructor(name)})
	}
	return kinds
}

func queryConstructor(name string) Constructor {
	return func() Content { return &Query{Name: name} }
}
