package message

import (
	"fmt"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/header"
	"github.com/danmuck/igtl/internal/protocol/wire"
)

// Capability lists the type names a peer supports.
type Capability struct {
	Types []string
}

// CapabilityOf lists every kind registered in reg.
func CapabilityOf(reg *Registry) *Capability {
	return &Capability{Types: reg.Names()}
}

func (c *Capability) TypeName() string { return TypeCapability }
func (c *Capability) ContentSize() int { return header.TypeNameSize * len(c.Types) }

func (c *Capability) PackContent(w *wire.Writer) error {
	for _, name := range c.Types {
		if err := validateTypeName(name); err != nil {
			return err
		}
	}
	for _, name := range c.Types {
		w.FixedString(name, header.TypeNameSize)
	}
	return nil
}

func (c *Capability) UnpackContent(r *wire.Reader) error {
	if r.Len()%header.TypeNameSize != 0 {
		return fmt.Errorf("%w: capability body of %d bytes", protocol.ErrFormat, r.Len())
	}
	types := make([]string, 0, r.Len()/header.TypeNameSize)
	for r.Len() > 0 {
		name, err := r.FixedString(header.TypeNameSize)
		if err != nil {
			return err
		}
		types = append(types, name)
	}
	c.Types = types
	return nil
}
