package message

import "github.com/danmuck/igtl/internal/protocol/wire"

// Query is a request kind (GET_*, STT_*, STP_*) with an empty body.
type Query struct {
	Name string
}

func (q *Query) TypeName() string { return q.Name }
func (q *Query) ContentSize() int { return 0 }

func (q *Query) PackContent(w *wire.Writer) error {
	return nil
}

func (q *Query) UnpackContent(r *wire.Reader) error {
	return r.Done()
}
