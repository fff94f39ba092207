package message

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/crc64"
	"github.com/danmuck/igtl/internal/protocol/header"
)

const cubeBodySize = 300

var cubePoints = []Point{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

var cubeQuads = CellArray{
	{0, 1, 2, 3}, {4, 5, 6, 7}, {0, 1, 5, 4},
	{1, 2, 6, 5}, {2, 3, 7, 6}, {3, 0, 4, 7},
}

var cubeAttribute = []float32{0, 1, 2, 3, 4, 5, 6, 7}

func cubePolyData() *PolyData {
	pd := &PolyData{}
	for _, p := range cubePoints {
		pd.AddPoint(p[0], p[1], p[2])
	}
	for _, c := range cubeQuads {
		pd.Polygons = append(pd.Polygons, append(Cell(nil), c...))
	}
	pd.AddAttribute(Attribute{
		Type: PointScalar,
		Size: 8,
		Name: "attr",
		Data: append([]float32(nil), cubeAttribute...),
	})
	return pd
}

func packedCube(t *testing.T) *Message {
	t.Helper()
	m := New(cubePolyData())
	m.SetDeviceName("DeviceName")
	m.SetTimestamp(header.NewTimestamp(0, 1234567890))
	if err := m.Pack(); err != nil {
		t.Fatalf("pack: %v", err)
	}
	return m
}

// frame builds header bytes plus body with a correct checksum.
func frame(typeName string, body []byte) (header.Header, []byte) {
	h := header.Header{
		Version:  header.Version1,
		TypeName: typeName,
		BodySize: uint64(len(body)),
		CRC:      crc64.Checksum(body),
	}
	return h, body
}

func TestPolyDataCubePacksTo300Bytes(t *testing.T) {
	m := packedCube(t)

	if got := len(m.Body()); got != cubeBodySize {
		t.Fatalf("expected %d byte body, got %d", cubeBodySize, got)
	}
	if m.BodyPackSize() != cubeBodySize {
		t.Fatalf("BodyPackSize=%d", m.BodyPackSize())
	}
	h := m.Header()
	if h.BodySize != cubeBodySize || h.CRC != crc64.Checksum(m.Body()) {
		t.Fatalf("header size/crc not updated: %+v", h)
	}
	if m.State() != StatePacked {
		t.Fatalf("expected packed state, got %s", m.State())
	}

	buf := m.PackBuffer()
	if len(buf) != header.Size+cubeBodySize {
		t.Fatalf("pack buffer length %d", len(buf))
	}
	if binary.BigEndian.Uint16(buf[0:2]) != 1 {
		t.Fatalf("version bytes: %v", buf[0:2])
	}
	wantType := append([]byte("POLYDATA"), 0, 0, 0, 0)
	if !bytes.Equal(buf[2:14], wantType) {
		t.Fatalf("type name bytes: %q", buf[2:14])
	}
	if binary.BigEndian.Uint64(buf[34:42]) != 1234567890 {
		t.Fatalf("timestamp bytes: %v", buf[34:42])
	}
	if binary.BigEndian.Uint64(buf[42:50]) != cubeBodySize {
		t.Fatalf("body size bytes: %v", buf[42:50])
	}

	body := m.Body()
	if binary.BigEndian.Uint32(body[0:4]) != 8 {
		t.Fatalf("npoints: %d", binary.BigEndian.Uint32(body[0:4]))
	}
	if binary.BigEndian.Uint32(body[20:24]) != 6 || binary.BigEndian.Uint32(body[24:28]) != 120 {
		t.Fatalf("polygon counts: n=%d size=%d", binary.BigEndian.Uint32(body[20:24]), binary.BigEndian.Uint32(body[24:28]))
	}
	if binary.BigEndian.Uint32(body[36:40]) != 1 {
		t.Fatalf("nattributes: %d", binary.BigEndian.Uint32(body[36:40]))
	}
	attrHead := body[40+96+120:]
	if attrHead[0] != uint8(PointScalar) || attrHead[1] != 1 || binary.BigEndian.Uint32(attrHead[2:6]) != 8 {
		t.Fatalf("attribute header: %v", attrHead[:6])
	}
	if !bytes.Equal(attrHead[6:12], []byte{'a', 't', 't', 'r', 0, 0}) {
		t.Fatalf("attribute names: %q", attrHead[6:12])
	}
	if math.Float32frombits(binary.BigEndian.Uint32(body[cubeBodySize-4:])) != 7 {
		t.Fatalf("last attribute value mismatch")
	}
}

func TestPolyDataCubeUnpack(t *testing.T) {
	sent := packedCube(t)

	h, err := header.Decode(sent.PackBuffer()[:header.Size])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if h.DeviceName != "DeviceName" || h.TypeName != "POLYDATA" || h.Version != 1 {
		t.Fatalf("header mismatch: %+v", h)
	}
	if h.Timestamp != 1234567890 || h.BodySize != cubeBodySize {
		t.Fatalf("header numbers mismatch: %+v", h)
	}

	recv, err := Default().New(h)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if recv.State() != StateHeaderSet {
		t.Fatalf("expected header_set, got %s", recv.State())
	}
	if err := recv.AllocateBody(); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	copy(recv.Body(), sent.Body())
	if err := recv.Unpack(); err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if recv.State() != StateUnpacked {
		t.Fatalf("expected unpacked, got %s", recv.State())
	}

	pd, ok := As[*PolyData](recv)
	if !ok {
		t.Fatalf("content is %T", recv.Content())
	}
	if !reflect.DeepEqual(pd.Points, cubePoints) {
		t.Fatalf("points mismatch: %v", pd.Points)
	}
	if !reflect.DeepEqual(pd.Polygons, cubeQuads) {
		t.Fatalf("polygons mismatch: %v", pd.Polygons)
	}
	if pd.Vertices != nil || pd.Lines != nil || pd.TriangleStrips != nil {
		t.Fatalf("unexpected cells in empty sections")
	}
	attr, ok := pd.Attribute(0)
	if !ok {
		t.Fatalf("missing attribute 0")
	}
	if attr.Name != "attr" || attr.Type != PointScalar || attr.Size != 8 {
		t.Fatalf("attribute mismatch: %+v", attr)
	}
	for i := 0; i < 8; i++ {
		v, ok := attr.Element(i)
		if !ok || len(v) != 1 || v[0] != float32(i) {
			t.Fatalf("attribute element %d: %v ok=%v", i, v, ok)
		}
	}
}

func TestPolyDataRoundTripAllSections(t *testing.T) {
	in := &PolyData{
		Points:         []Point{{1.5, -2.25, 3}, {4, 5, 6}, {-7, 8, 9.125}},
		Vertices:       CellArray{{0}, {2}},
		Lines:          CellArray{{0, 1, 2}},
		Polygons:       CellArray{{0, 1, 2}},
		TriangleStrips: CellArray{{0, 1, 2}, {2, 1, 0}},
		Attributes: []Attribute{
			{Type: PointVector, Size: 3, Name: "velocity", Data: []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}},
			{Type: CellScalar, Components: 2, Size: 1, Name: "q", Data: []float32{0.5, 0.25}},
			{Type: PointRGBA, Size: 1, Name: "", Data: []float32{1, 0, 0, 1}, Components: 4},
			{Type: CellTensor, Size: 1, Name: "stress", Data: []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}},
		},
	}
	m := New(in)
	if err := m.Pack(); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(m.Body()) != in.ContentSize() {
		t.Fatalf("body %d != content size %d", len(m.Body()), in.ContentSize())
	}

	out, err := Decode(Default(), m.Header(), m.Body())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	pd, _ := As[*PolyData](out)
	if !reflect.DeepEqual(pd.Points, in.Points) ||
		!reflect.DeepEqual(pd.Vertices, in.Vertices) ||
		!reflect.DeepEqual(pd.Lines, in.Lines) ||
		!reflect.DeepEqual(pd.Polygons, in.Polygons) ||
		!reflect.DeepEqual(pd.TriangleStrips, in.TriangleStrips) {
		t.Fatalf("geometry mismatch:\n got=%+v\nwant=%+v", pd, in)
	}
	if len(pd.Attributes) != len(in.Attributes) {
		t.Fatalf("attribute count %d", len(pd.Attributes))
	}
	for i, a := range pd.Attributes {
		want := in.Attributes[i]
		wantNC, _ := want.NumComponents()
		if a.Type != want.Type || a.Size != want.Size || a.Name != want.Name || a.Components != wantNC {
			t.Fatalf("attribute %d mismatch: got=%+v want=%+v", i, a, want)
		}
		if !reflect.DeepEqual(a.Data, want.Data) {
			t.Fatalf("attribute %d data mismatch: %v", i, a.Data)
		}
	}
}

func TestPolyDataEmpty(t *testing.T) {
	m := New(&PolyData{})
	if err := m.Pack(); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(m.Body()) != polyHeaderSize {
		t.Fatalf("empty polydata should be %d bytes, got %d", polyHeaderSize, len(m.Body()))
	}
	out, err := Decode(Default(), m.Header(), m.Body())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	pd, _ := As[*PolyData](out)
	if !reflect.DeepEqual(*pd, PolyData{}) {
		t.Fatalf("expected empty polydata, got %+v", pd)
	}
}

func TestPolyDataPackSizeMismatch(t *testing.T) {
	pd := cubePolyData()
	pd.Attributes[0].Data = pd.Attributes[0].Data[:7]
	m := New(pd)
	if err := m.Pack(); !errors.Is(err, protocol.ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
	if m.PackBuffer() != nil || m.State() != StateEmpty {
		t.Fatalf("failed pack must not produce a buffer")
	}

	pd = cubePolyData()
	pd.Attributes[0] = Attribute{Type: PointNormal, Size: 2, Name: "n", Data: []float32{0, 0, 1}}
	if err := New(pd).Pack(); !errors.Is(err, protocol.ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch for short normal data, got %v", err)
	}
}

func TestPolyDataPackRejectsInvalidAttributes(t *testing.T) {
	cases := []Attribute{
		{Type: PointVector, Components: 4, Size: 1, Name: "v", Data: []float32{1, 2, 3, 4}},
		{Type: PointScalar, Components: 200, Size: 0, Name: "s"},
		{Type: AttributeType(0x07), Size: 0, Name: "x"},
		{Type: PointScalar, Size: 0, Name: "a\x00b"},
	}
	for i, a := range cases {
		pd := &PolyData{Attributes: []Attribute{a}}
		if err := New(pd).Pack(); !errors.Is(err, protocol.ErrFormat) {
			t.Fatalf("case %d: expected ErrFormat, got %v", i, err)
		}
	}
}

func TestPolyDataChecksumDetectsEveryBitFlip(t *testing.T) {
	sent := packedCube(t)
	body := sent.Body()
	for i := range body {
		for bit := 0; bit < 8; bit++ {
			recv, err := Default().New(sent.Header())
			if err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if err := recv.AllocateBody(); err != nil {
				t.Fatalf("allocate: %v", err)
			}
			copy(recv.Body(), body)
			recv.Body()[i] ^= 1 << bit
			if err := recv.Unpack(); !errors.Is(err, protocol.ErrChecksum) {
				t.Fatalf("byte=%d bit=%d: expected ErrChecksum, got %v", i, bit, err)
			}
			pd, _ := As[*PolyData](recv)
			if len(pd.Points) != 0 || len(pd.Attributes) != 0 {
				t.Fatalf("fields mutated after checksum failure")
			}
		}
	}
}

func TestPolyDataUnpackBoundsChecked(t *testing.T) {
	sent := packedCube(t)
	good := sent.Body()

	mutate := func(off int, v uint32) []byte {
		b := append([]byte(nil), good...)
		binary.BigEndian.PutUint32(b[off:off+4], v)
		return b
	}
	cases := map[string][]byte{
		"points beyond body":        mutate(0, 1000),
		"huge point count":          mutate(0, math.MaxUint32),
		"polygon section too large": mutate(24, 10000),
		"polygon count too large":   mutate(20, 7),
		"attribute count too large": mutate(36, 0xFFFFFF),
		"truncated body":            good[:len(good)-3],
		"trailing bytes":            append(append([]byte(nil), good...), 0, 0, 0, 0),
		"short section header":      good[:12],
		"cell index count too large": func() []byte {
			b := append([]byte(nil), good...)
			binary.BigEndian.PutUint32(b[40+96:], 500)
			return b
		}(),
		"attribute data too large": func() []byte {
			b := append([]byte(nil), good...)
			binary.BigEndian.PutUint32(b[40+96+120+2:], 9)
			return b
		}(),
		"unterminated names": func() []byte {
			b := append([]byte(nil), good[:40+96+120+6]...)
			return append(b, 'a', 't', 't', 'r')
		}(),
	}
	for name, body := range cases {
		h, b := frame(TypePolyData, body)
		_, err := Decode(Default(), h, b)
		if !errors.Is(err, protocol.ErrFormat) {
			t.Fatalf("%s: expected ErrFormat, got %v", name, err)
		}
	}
}

func TestPolyDataFormatErrorLeavesFieldsUntouched(t *testing.T) {
	sent := packedCube(t)
	bad := append([]byte(nil), sent.Body()...)
	binary.BigEndian.PutUint32(bad[36:40], 2)
	h, body := frame(TypePolyData, bad)

	existing := cubePolyData()
	existing.Points[0] = Point{42, 42, 42}
	m := New(existing)
	if err := m.SetHeader(h); err != nil {
		t.Fatalf("set header: %v", err)
	}
	if err := m.AllocateBody(); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	copy(m.Body(), body)
	if err := m.Unpack(); !errors.Is(err, protocol.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
	pd, _ := As[*PolyData](m)
	if pd.Points[0] != (Point{42, 42, 42}) || len(pd.Attributes) != 1 || len(pd.Polygons) != 6 {
		t.Fatalf("content mutated by failed unpack: %+v", pd)
	}
	if m.State() == StateUnpacked {
		t.Fatalf("state must not advance on failure")
	}
}

func TestPolyDataCellIndicesNotValidatedAgainstPoints(t *testing.T) {
	pd := &PolyData{Points: []Point{{0, 0, 0}}, Lines: CellArray{{0, 99, 12345}}}
	m := New(pd)
	if err := m.Pack(); err != nil {
		t.Fatalf("pack: %v", err)
	}
	out, err := Decode(Default(), m.Header(), m.Body())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, _ := As[*PolyData](out)
	if !reflect.DeepEqual(got.Lines, pd.Lines) {
		t.Fatalf("lines mismatch: %v", got.Lines)
	}
}

func TestAttributeTypeHelpers(t *testing.T) {
	if !CellNormal.IsCellData() || PointNormal.IsCellData() {
		t.Fatalf("cell flag mismatch")
	}
	if CellTensor.Kind() != PointTensor {
		t.Fatalf("kind mismatch: %v", CellTensor.Kind())
	}
	if CellRGBA.String() != "cell_rgba" || PointScalar.String() != "point_scalar" {
		t.Fatalf("string mismatch: %s %s", CellRGBA, PointScalar)
	}
	if cubeQuads.TotalIndices() != 24 {
		t.Fatalf("total indices: %d", cubeQuads.TotalIndices())
	}
}
