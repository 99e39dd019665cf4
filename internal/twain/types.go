package twain

import (
	"fmt"
	"math"
	"strconv"
)

// Fix32 is the protocol's fixed-point rational: a signed whole part and
// a 1/65536 fractional part.
type Fix32 struct {
	Whole int16
	Frac  uint16
}

// Fix32FromFloat converts a float to the nearest Fix32.
func Fix32FromFloat(f float64) Fix32 {
	v := int32(math.Round(f * 65536.0))
	return Fix32{Whole: int16(v >> 16), Frac: uint16(v & 0xFFFF)}
}

// Float returns the value as a float64.
func (f Fix32) Float() float64 {
	return float64(f.Whole) + float64(f.Frac)/65536.0
}

// Whole32 returns the value rounded to the nearest whole number.
func (f Fix32) Whole32() int {
	return int(math.Round(f.Float()))
}

func (f Fix32) String() string {
	return strconv.FormatFloat(f.Float(), 'f', -1, 64)
}

// ParseFix32 parses the decimal form produced by String.
func ParseFix32(s string) (Fix32, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Fix32{}, fmt.Errorf("bad fix32 %q: %w", s, err)
	}
	return Fix32FromFloat(v), nil
}

// Version describes a component version inside an Identity.
type Version struct {
	Major    uint16
	Minor    uint16
	Language uint16
	Country  uint16
	Info     string
}

// Identity names an application or data source to the manager.
type Identity struct {
	ID              uint32
	Version         Version
	ProtocolMajor   uint16
	ProtocolMinor   uint16
	SupportedGroups DataGroup
	Manufacturer    string
	ProductFamily   string
	ProductName     string
}

// SupportsDSM2 reports whether the identity negotiated the newer
// entry-point calling style.
func (id Identity) SupportsDSM2() bool {
	return id.ProtocolMajor >= 2 && id.SupportedGroups&DFDSM2 != 0
}

// Status carries the condition code behind an RCFailure.
type Status struct {
	ConditionCode ConditionCode
	Data          uint16
}

// Capability is a one-value capability container in its textual form.
type Capability struct {
	Cap      CapID
	ConType  ContainerType
	ItemType ItemType
	Value    string
}

// ImageInfo is the per-image metadata fetched after each transfer.
// BitsPerPixel of zero means the metadata has not been fetched yet.
type ImageInfo struct {
	XResolution     Fix32
	YResolution     Fix32
	ImageWidth      int32
	ImageLength     int32
	SamplesPerPixel int16
	BitsPerPixel    int16
	Planar          bool
	PixelType       PixelType
	Compression     Compression
}

// ImageLayout describes the frame on the scanner bed plus the document
// bookkeeping counters.
type ImageLayout struct {
	Left           Fix32
	Top            Fix32
	Right          Fix32
	Bottom         Fix32
	DocumentNumber uint32
	PageNumber     uint32
	FrameNumber    uint32
}

// SetupMemXfer reports the driver's strip size preferences.
type SetupMemXfer struct {
	MinBufSize uint32
	MaxBufSize uint32
	Preferred  uint32
}

// SetupFileXfer names the destination of a file transfer.
type SetupFileXfer struct {
	FileName string
	Format   FileFormat
	VRefNum  int16
}

// ImageMemXfer is one strip request/response of a memory transfer.
// Memory is caller-allocated; the driver reports BytesWritten into it.
type ImageMemXfer struct {
	Compression  Compression
	BytesPerRow  uint32
	Columns      uint32
	Rows         uint32
	XOffset      uint32
	YOffset      uint32
	BytesWritten uint32
	Memory       []byte
}

// PendingXfers is the end-of-transfer acknowledgement payload.
type PendingXfers struct {
	Count uint16
	EOJ   uint32
}

// UserInterface enables or disables the source.
type UserInterface struct {
	ShowUI  bool
	ModalUI bool
}

// Event is one pumped platform event forwarded to the driver.
type Event struct {
	Message Message
}

// EntryPoint is the table fetched with DAT_ENTRYPOINT when the manager
// negotiated the newer calling style. Memory management is modeled as
// plain byte-slice hooks.
type EntryPoint struct {
	Size        uint32
	MemAllocate func(n uint32) []byte
	MemFree     func([]byte)
}

// Callback registers the image-ready notification with the manager.
type Callback struct {
	Notify func(Message)
}

// ExtImageInfoValue is one answered extended-info query.
type ExtImageInfoValue struct {
	InfoID ExtInfoID
	RC     ReturnCode
	Value  uint32
}

// ExtImageInfo is the best-effort per-image enrichment request.
type ExtImageInfo struct {
	Values []ExtImageInfoValue
}

// CondError is a scanner-level condition reported as an error.
type CondError struct {
	RC   ReturnCode
	Code ConditionCode
	Msg  string
}

func (e *CondError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s (%s/%s)", e.Msg, e.RC, e.Code)
	}
	return fmt.Sprintf("device condition %s/%s", e.RC, e.Code)
}
