package message

import "github.com/danmuck/igtl/internal/protocol/wire"

const transformSize = 12 * 4

// Matrix4 is a row-major homogeneous transform.
type Matrix4 [4][4]float32

func Identity() Matrix4 {
	return Matrix4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Transform carries the upper 3x4 part of a rigid or affine transform.
type Transform struct {
	Matrix Matrix4
}

func NewTransform() *Transform {
	return &Transform{Matrix: Identity()}
}

func (t *Transform) TypeName() string { return TypeTransform }
func (t *Transform) ContentSize() int { return transformSize }

// PackContent writes the 3x4 block column by column.
func (t *Transform) PackContent(w *wire.Writer) error {
	for col := 0; col < 4; col++ {
		for row := 0; row < 3; row++ {
			w.Float32(t.Matrix[row][col])
		}
	}
	return nil
}

func (t *Transform) UnpackContent(r *wire.Reader) error {
	vals, err := r.Float32s(12)
	if err != nil {
		return err
	}
	if err := r.Done(); err != nil {
		return err
	}
	m := Identity()
	for col := 0; col < 4; col++ {
		for row := 0; row < 3; row++ {
			m[row][col] = vals[col*3+row]
		}
	}
	t.Matrix = m
	return nil
}
