package message

import (
	"fmt"
	"math"
	"strings"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/wire"
)

// Body layout:
//
//	section header   10 x u32: npoints, nvertices, size_vertices, nlines,
//	                 size_lines, npolygons, size_polygons, ntriangle_strips,
//	                 size_triangle_strips, nattributes
//	points           npoints x 3 x f32
//	cell sections    vertices, lines, polygons, strips; each cell is
//	                 u32 n followed by n x u32 point indices
//	attribute heads  nattributes x {u8 type, u8 ncomponents, u32 n}
//	attribute names  NUL terminated, concatenated, padded to even length
//	attribute data   per attribute n x ncomponents x f32
const (
	polyHeaderSize      = 10 * 4
	polyAttrHeaderSize  = 6
	maxScalarComponents = 128
)

// Point is an x, y, z coordinate.
type Point [3]float32

// Cell is an ordered list of indices into the point array. Indices are not
// checked against the number of points.
type Cell []uint32

// CellArray holds cells of one topology class.
type CellArray []Cell

// TotalIndices is the sum of the cell lengths.
func (a CellArray) TotalIndices() int {
	n := 0
	for _, c := range a {
		n += len(c)
	}
	return n
}

// byteSize is the wire size: one count word plus one word per index.
func (a CellArray) byteSize() uint64 {
	return 4 * uint64(len(a)+a.TotalIndices())
}

// AttributeType combines the value kind (low nibble) with the cell-data
// flag (0x10).
type AttributeType uint8

const (
	PointScalar AttributeType = 0x00
	PointVector AttributeType = 0x01
	PointNormal AttributeType = 0x02
	PointTensor AttributeType = 0x03
	PointRGBA   AttributeType = 0x04
	CellScalar  AttributeType = 0x10
	CellVector  AttributeType = 0x11
	CellNormal  AttributeType = 0x12
	CellTensor  AttributeType = 0x13
	CellRGBA    AttributeType = 0x14

	attributeCellFlag AttributeType = 0x10
)

// Kind strips the cell-data flag.
func (t AttributeType) Kind() AttributeType {
	return t &^ attributeCellFlag
}

// IsCellData reports whether values are per cell rather than per point.
func (t AttributeType) IsCellData() bool {
	return t&attributeCellFlag != 0
}

func (t AttributeType) String() string {
	prefix := "point_"
	if t.IsCellData() {
		prefix = "cell_"
	}
	switch t.Kind() {
	case PointScalar:
		return prefix + "scalar"
	case PointVector:
		return prefix + "vector"
	case PointNormal:
		return prefix + "normal"
	case PointTensor:
		return prefix + "tensor"
	case PointRGBA:
		return prefix + "rgba"
	default:
		return fmt.Sprintf("attribute(%#02x)", uint8(t))
	}
}

// fixedComponents is 0 for scalars, whose component count is free.
func (t AttributeType) fixedComponents() (uint8, bool) {
	switch t.Kind() {
	case PointScalar:
		return 0, true
	case PointVector, PointNormal:
		return 3, true
	case PointTensor:
		return 9, true
	case PointRGBA:
		return 4, true
	default:
		return 0, false
	}
}

// Attribute is a named array of Size elements, each Components float32
// values wide.
type Attribute struct {
	Type AttributeType
	// Components applies to scalars (1-128, zero means 1). Vector and
	// normal are always 3, tensor 9, rgba 4.
	Components uint8
	Size       uint32
	Name       string
	Data       []float32
}

// NumComponents resolves the per-element value count.
func (a *Attribute) NumComponents() (uint8, error) {
	fixed, ok := a.Type.fixedComponents()
	if !ok || a.Type&^(attributeCellFlag|0x0f) != 0 {
		return 0, fmt.Errorf("%w: attribute %q has unknown type %#02x", protocol.ErrFormat, a.Name, uint8(a.Type))
	}
	if fixed != 0 {
		if a.Components != 0 && a.Components != fixed {
			return 0, fmt.Errorf("%w: %s attribute %q needs %d components, has %d",
				protocol.ErrFormat, a.Type, a.Name, fixed, a.Components)
		}
		return fixed, nil
	}
	switch {
	case a.Components == 0:
		return 1, nil
	case a.Components > maxScalarComponents:
		return 0, fmt.Errorf("%w: scalar attribute %q has %d components", protocol.ErrFormat, a.Name, a.Components)
	default:
		return a.Components, nil
	}
}

// Element returns the values of element i.
func (a *Attribute) Element(i int) ([]float32, bool) {
	nc, err := a.NumComponents()
	if err != nil || i < 0 || uint64(i) >= uint64(a.Size) {
		return nil, false
	}
	start := i * int(nc)
	end := start + int(nc)
	if end > len(a.Data) {
		return nil, false
	}
	return a.Data[start:end], true
}

func (a *Attribute) validate() (uint8, error) {
	nc, err := a.NumComponents()
	if err != nil {
		return 0, err
	}
	if strings.IndexByte(a.Name, 0) >= 0 {
		return 0, fmt.Errorf("%w: attribute name %q contains NUL", protocol.ErrFormat, a.Name)
	}
	if want := uint64(a.Size) * uint64(nc); uint64(len(a.Data)) != want {
		return 0, fmt.Errorf("%w: attribute %q declares %d elements x %d components, has %d values",
			protocol.ErrSizeMismatch, a.Name, a.Size, nc, len(a.Data))
	}
	return nc, nil
}

// PolyData is a surface or line model: points, four cell arrays and
// attributes, all kept in insertion order.
type PolyData struct {
	Points         []Point
	Vertices       CellArray
	Lines          CellArray
	Polygons       CellArray
	TriangleStrips CellArray
	Attributes     []Attribute
}

func (p *PolyData) TypeName() string { return TypePolyData }

func (p *PolyData) AddPoint(x, y, z float32) {
	p.Points = append(p.Points, Point{x, y, z})
}

func (p *PolyData) AddAttribute(a Attribute) {
	p.Attributes = append(p.Attributes, a)
}

// Attribute returns the i-th attribute in wire order.
func (p *PolyData) Attribute(i int) (Attribute, bool) {
	if i < 0 || i >= len(p.Attributes) {
		return Attribute{}, false
	}
	return p.Attributes[i], true
}

func (p *PolyData) cellArrays() [4]*CellArray {
	return [4]*CellArray{&p.Vertices, &p.Lines, &p.Polygons, &p.TriangleStrips}
}

func attributeNamesSize(attrs []Attribute) int {
	n := 0
	for _, a := range attrs {
		n += len(a.Name) + 1
	}
	return n + n%2
}

func (p *PolyData) ContentSize() int {
	n := polyHeaderSize + 12*len(p.Points)
	for _, cells := range p.cellArrays() {
		n += int(cells.byteSize())
	}
	n += polyAttrHeaderSize * len(p.Attributes)
	n += attributeNamesSize(p.Attributes)
	for _, a := range p.Attributes {
		n += 4 * len(a.Data)
	}
	return n
}

func (p *PolyData) PackContent(w *wire.Writer) error {
	if uint64(len(p.Points)) > math.MaxUint32 || uint64(len(p.Attributes)) > math.MaxUint32 {
		return fmt.Errorf("%w: polydata counts exceed 32 bits", protocol.ErrFormat)
	}
	components := make([]uint8, len(p.Attributes))
	for i := range p.Attributes {
		nc, err := p.Attributes[i].validate()
		if err != nil {
			return err
		}
		components[i] = nc
	}
	arrays := p.cellArrays()
	for _, cells := range arrays {
		if cells.byteSize() > math.MaxUint32 {
			return fmt.Errorf("%w: cell section of %d bytes exceeds 32 bits", protocol.ErrFormat, cells.byteSize())
		}
	}

	w.Uint32(uint32(len(p.Points)))
	for _, cells := range arrays {
		w.Uint32(uint32(len(*cells)))
		w.Uint32(uint32(cells.byteSize()))
	}
	w.Uint32(uint32(len(p.Attributes)))

	for _, pt := range p.Points {
		w.Float32s(pt[:])
	}
	for _, cells := range arrays {
		for _, c := range *cells {
			w.Uint32(uint32(len(c)))
			w.Uint32s(c)
		}
	}
	for i, a := range p.Attributes {
		w.Uint8(uint8(a.Type))
		w.Uint8(components[i])
		w.Uint32(a.Size)
	}
	names := 0
	for _, a := range p.Attributes {
		w.CString(a.Name)
		names += len(a.Name) + 1
	}
	if names%2 != 0 {
		w.Uint8(0)
	}
	for _, a := range p.Attributes {
		w.Float32s(a.Data)
	}
	return nil
}

// UnpackContent decodes into a fresh value and assigns it to p only after
// the whole body, including trailing-byte checks, has been accepted.
func (p *PolyData) UnpackContent(r *wire.Reader) error {
	counts, err := r.Uint32s(10)
	if err != nil {
		return fmt.Errorf("polydata header: %w", err)
	}
	var out PolyData

	coords, err := r.Float32s(uint64(counts[0]) * 3)
	if err != nil {
		return fmt.Errorf("polydata points: %w", err)
	}
	if len(coords) > 0 {
		out.Points = make([]Point, counts[0])
		for i := range out.Points {
			copy(out.Points[i][:], coords[i*3:i*3+3])
		}
	}

	for i, cells := range out.cellArrays() {
		n, size := counts[1+2*i], counts[2+2*i]
		section, err := r.Sub(uint64(size))
		if err != nil {
			return fmt.Errorf("polydata cell section %d: %w", i, err)
		}
		if *cells, err = readCells(section, n); err != nil {
			return fmt.Errorf("polydata cell section %d: %w", i, err)
		}
	}

	nattr := uint64(counts[9])
	if err := r.NeedN(nattr, polyAttrHeaderSize); err != nil {
		return fmt.Errorf("polydata attribute headers: %w", err)
	}
	if nattr > 0 {
		out.Attributes = make([]Attribute, nattr)
	}
	for i := range out.Attributes {
		t, _ := r.Uint8()
		nc, _ := r.Uint8()
		size, _ := r.Uint32()
		if nc == 0 {
			return fmt.Errorf("%w: polydata attribute %d has zero components", protocol.ErrFormat, i)
		}
		out.Attributes[i] = Attribute{Type: AttributeType(t), Components: nc, Size: size}
	}
	start := r.Offset()
	for i := range out.Attributes {
		if out.Attributes[i].Name, err = r.CString(); err != nil {
			return fmt.Errorf("polydata attribute name %d: %w", i, err)
		}
	}
	if (r.Offset()-start)%2 != 0 {
		if err := r.Skip(1); err != nil {
			return fmt.Errorf("polydata attribute name padding: %w", err)
		}
	}
	for i := range out.Attributes {
		a := &out.Attributes[i]
		nc, err := a.NumComponents()
		if err != nil {
			return err
		}
		if a.Data, err = r.Float32s(uint64(a.Size) * uint64(nc)); err != nil {
			return fmt.Errorf("polydata attribute %q data: %w", a.Name, err)
		}
	}
	if err := r.Done(); err != nil {
		return fmt.Errorf("polydata: %w", err)
	}
	*p = out
	return nil
}

// readCells decodes exactly n cells that must fill section.
func readCells(section *wire.Reader, n uint32) (CellArray, error) {
	if err := section.NeedN(uint64(n), 4); err != nil {
		return nil, err
	}
	var cells CellArray
	if n > 0 {
		cells = make(CellArray, 0, n)
	}
	for i := uint32(0); i < n; i++ {
		count, err := section.Uint32()
		if err != nil {
			return nil, err
		}
		idx, err := section.Uint32s(uint64(count))
		if err != nil {
			return nil, err
		}
		cells = append(cells, Cell(idx))
	}
	if err := section.Done(); err != nil {
		return nil, err
	}
	return cells, nil
}
