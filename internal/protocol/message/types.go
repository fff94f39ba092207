package message

// Built-in wire type names.
const (
	TypeTransform  = "TRANSFORM"
	TypePosition   = "POSITION"
	TypeImage      = "IMAGE"
	TypeString     = "STRING"
	TypeStatus     = "STATUS"
	TypeCapability = "CAPABILITY"
	TypeVideo      = "VIDEO"
	TypePolyData   = "POLYDATA"
)

// QueryTypes are the built-in request kinds that carry no body.
var QueryTypes = []string{
	"GET_TRANS",
	"GET_POSITION",
	"GET_IMAGE",
	"GET_STATUS",
	"GET_CAPABIL",
	"GET_POLYDATA",
	"STP_POLYDATA",
	"STT_VIDEO",
	"STP_VIDEO",
}

// Endian values used by IMAGE and VIDEO sub-headers.
type Endian uint8

const (
	EndianBig    Endian = 1
	EndianLittle Endian = 2
)
