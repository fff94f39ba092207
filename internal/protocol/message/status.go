package message

import (
	"fmt"
	"strings"

	"github.com/danmuck/igtl/internal/protocol"
	"github.com/danmuck/igtl/internal/protocol/wire"
)

const (
	statusErrorNameSize = 20
	statusFixedSize     = 2 + 8 + statusErrorNameSize
)

type StatusCode uint16

const (
	StatusInvalid StatusCode = iota
	StatusOK
	StatusUnknownError
	StatusPanicMode
	StatusNotFound
	StatusAccessDenied
	StatusBusy
	StatusTimeOut
	StatusOverflow
	StatusChecksumError
	StatusConfigError
	StatusResourceError
	StatusUnknownInstruction
	StatusNotReady
	StatusManualMode
	StatusDisabled
	StatusNotPresent
	StatusUnknownVersion
	StatusHardwareFailure
	StatusShuttingDown
)

var statusNames = [...]string{
	"invalid", "ok", "unknown_error", "panic_mode", "not_found",
	"access_denied", "busy", "time_out", "overflow", "checksum_error",
	"config_error", "resource_error", "unknown_instruction", "not_ready",
	"manual_mode", "disabled", "not_present", "unknown_version",
	"hardware_failure", "shutting_down",
}

func (c StatusCode) String() string {
	if int(c) < len(statusNames) {
		return statusNames[c]
	}
	return fmt.Sprintf("status(%d)", uint16(c))
}

// Status reports device state. ErrorName is limited to 20 bytes on the
// wire; Message is sent NUL terminated.
type Status struct {
	Code      StatusCode
	SubCode   int64
	ErrorName string
	Message   string
}

func (s *Status) TypeName() string { return TypeStatus }
func (s *Status) ContentSize() int { return statusFixedSize + len(s.Message) + 1 }

func (s *Status) PackContent(w *wire.Writer) error {
	if strings.IndexByte(s.Message, 0) >= 0 {
		return fmt.Errorf("%w: status message contains NUL", protocol.ErrFormat)
	}
	w.Uint16(uint16(s.Code))
	w.Int64(s.SubCode)
	w.FixedString(s.ErrorName, statusErrorNameSize)
	w.CString(s.Message)
	return nil
}

func (s *Status) UnpackContent(r *wire.Reader) error {
	if err := r.Need(statusFixedSize); err != nil {
		return err
	}
	code, _ := r.Uint16()
	sub, _ := r.Int64()
	name, _ := r.FixedString(statusErrorNameSize)
	msg := wire.TrimNUL(r.Rest())
	*s = Status{Code: StatusCode(code), SubCode: sub, ErrorName: name, Message: msg}
	return nil
}
