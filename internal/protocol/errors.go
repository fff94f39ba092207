package protocol

import "errors"

// Error kinds shared by every codec. Callers match with errors.Is; codecs
// wrap them with context.
var (
	ErrFormat        = errors.New("protocol: malformed message")
	ErrVersion       = errors.New("protocol: unsupported version")
	ErrChecksum      = errors.New("protocol: checksum mismatch")
	ErrUnknownType   = errors.New("protocol: unknown message type")
	ErrSizeMismatch  = errors.New("protocol: declared size mismatch")
	ErrDuplicateType = errors.New("protocol: duplicate message type")
	ErrBodyTooLarge  = errors.New("protocol: body too large")
	ErrInvalidState  = errors.New("protocol: invalid message state")
)

// Recoverable reports whether a stream can continue after err once the
// frame body has been consumed.
func Recoverable(err error) bool {
	return errors.Is(err, ErrUnknownType) ||
		errors.Is(err, ErrChecksum) ||
		errors.Is(err, ErrVersion)
}
