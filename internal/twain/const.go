package twain

import "fmt"

// DataGroup selects the protocol facility a triplet is addressed to.
type DataGroup uint32

const (
	DGControl DataGroup = 0x0001
	DGImage   DataGroup = 0x0002
	DGAudio   DataGroup = 0x0004

	// DSM feature bits carried alongside the groups in SupportedGroups.
	DFDSM2 DataGroup = 0x10000000
	DFApp2 DataGroup = 0x20000000
	DFDS2  DataGroup = 0x40000000
	DGMask DataGroup = 0x0000FFFF
)

// DataArgType identifies the structure a triplet operates on.
type DataArgType uint16

const (
	DATNull             DataArgType = 0x0000
	DATCapability       DataArgType = 0x0001
	DATEvent            DataArgType = 0x0002
	DATIdentity         DataArgType = 0x0003
	DATParent           DataArgType = 0x0004
	DATPendingXfers     DataArgType = 0x0005
	DATSetupMemXfer     DataArgType = 0x0006
	DATSetupFileXfer    DataArgType = 0x0007
	DATStatus           DataArgType = 0x0008
	DATUserInterface    DataArgType = 0x0009
	DATXferGroup        DataArgType = 0x000A
	DATCustomDSData     DataArgType = 0x000C
	DATDeviceEvent      DataArgType = 0x000D
	DATCallback         DataArgType = 0x0010
	DATStatusUTF8       DataArgType = 0x0011
	DATCallback2        DataArgType = 0x0012
	DATImageInfo        DataArgType = 0x0101
	DATImageLayout      DataArgType = 0x0102
	DATImageMemXfer     DataArgType = 0x0103
	DATImageNativeXfer  DataArgType = 0x0104
	DATImageFileXfer    DataArgType = 0x0105
	DATJPEGCompression  DataArgType = 0x0109
	DATExtImageInfo     DataArgType = 0x010B
	DATImageMemFileXfer DataArgType = 0x010E
	DATEntryPoint       DataArgType = 0x0403
)

// Message is the operation of a triplet.
type Message uint16

const (
	MsgNull             Message = 0x0000
	MsgGet              Message = 0x0001
	MsgGetCurrent       Message = 0x0002
	MsgGetDefault       Message = 0x0003
	MsgGetFirst         Message = 0x0004
	MsgGetNext          Message = 0x0005
	MsgSet              Message = 0x0006
	MsgReset            Message = 0x0007
	MsgQuerySupport     Message = 0x0008
	MsgXferReady        Message = 0x0101
	MsgCloseDSReq       Message = 0x0102
	MsgCloseDSOK        Message = 0x0103
	MsgDeviceEvent      Message = 0x0104
	MsgOpenDSM          Message = 0x0301
	MsgCloseDSM         Message = 0x0302
	MsgOpenDS           Message = 0x0401
	MsgCloseDS          Message = 0x0402
	MsgUserSelect       Message = 0x0403
	MsgDisableDS        Message = 0x0501
	MsgEnableDS         Message = 0x0502
	MsgEnableDSUIOnly   Message = 0x0503
	MsgProcessEvent     Message = 0x0601
	MsgEndXfer          Message = 0x0701
	MsgStopFeeder       Message = 0x0702
	MsgRegisterCallback Message = 0x0902
)

// ReturnCode is the immediate status of a triplet call.
type ReturnCode uint16

const (
	RCSuccess          ReturnCode = 0
	RCFailure          ReturnCode = 1
	RCCheckStatus      ReturnCode = 2
	RCCancel           ReturnCode = 3
	RCDSEvent          ReturnCode = 4
	RCNotDSEvent       ReturnCode = 5
	RCXferDone         ReturnCode = 6
	RCEndOfList        ReturnCode = 7
	RCInfoNotSupported ReturnCode = 8
	RCDataNotAvailable ReturnCode = 9
	RCBusy             ReturnCode = 10
	RCScannerLocked    ReturnCode = 11
)

// ConditionCode refines RCFailure, fetched with DAT_STATUS/MSG_GET.
type ConditionCode uint16

const (
	CCSuccess           ConditionCode = 0
	CCBummer            ConditionCode = 1
	CCLowMemory         ConditionCode = 2
	CCNoDS              ConditionCode = 3
	CCMaxConnections    ConditionCode = 4
	CCOperationError    ConditionCode = 5
	CCBadCap            ConditionCode = 6
	CCBadProtocol       ConditionCode = 9
	CCBadValue          ConditionCode = 10
	CCSeqError          ConditionCode = 11
	CCBadDest           ConditionCode = 12
	CCCapUnsupported    ConditionCode = 13
	CCCapBadOperation   ConditionCode = 14
	CCCapSeqError       ConditionCode = 15
	CCDenied            ConditionCode = 16
	CCFileExists        ConditionCode = 17
	CCFileNotFound      ConditionCode = 18
	CCNotEmpty          ConditionCode = 19
	CCPaperJam          ConditionCode = 20
	CCPaperDoubleFeed   ConditionCode = 21
	CCFileWriteError    ConditionCode = 22
	CCCheckDeviceOnline ConditionCode = 23
	CCInterlock         ConditionCode = 24
	CCDamagedCorner     ConditionCode = 25
	CCFocusError        ConditionCode = 26
	CCDocTooLight       ConditionCode = 27
	CCDocTooDark        ConditionCode = 28
	CCNoMedia           ConditionCode = 29
)

// State is the numbered session state, S1 through S7.
type State int

const (
	StatePreSession State = 1 // S1: nothing loaded
	StateLoaded     State = 2 // S2: manager loaded, not open
	StateOpen       State = 3 // S3: manager open
	StateSourceOpen State = 4 // S4: data source open
	StateEnabled    State = 5 // S5: data source enabled
	StateXferReady  State = 6 // S6: image ready for transfer
	StateXferring   State = 7 // S7: transfer in progress
)

func (s State) String() string { return fmt.Sprintf("S%d", int(s)) }

// XferMech is the negotiated transfer mechanism (ICAP_XFERMECH values).
type XferMech uint16

const (
	XferNative  XferMech = 0
	XferFile    XferMech = 1
	XferMemory  XferMech = 2
	XferMemFile XferMech = 4
)

// PixelType values (ICAP_PIXELTYPE).
type PixelType int16

const (
	PixelBW      PixelType = 0
	PixelGray    PixelType = 1
	PixelRGB     PixelType = 2
	PixelPalette PixelType = 3
	PixelCMY     PixelType = 4
	PixelCMYK    PixelType = 5
)

// Compression values (ICAP_COMPRESSION / TW_IMAGEINFO.Compression).
type Compression uint16

const (
	CompressionNone      Compression = 0
	CompressionPackBits  Compression = 1
	CompressionGroup31D  Compression = 2
	CompressionGroup31DEOL Compression = 3
	CompressionGroup32D  Compression = 4
	CompressionGroup4    Compression = 5
	CompressionJPEG      Compression = 6
	CompressionLZW       Compression = 7
	CompressionJBIG      Compression = 8
	CompressionPNG       Compression = 9
	CompressionZIP       Compression = 13
)

// FileFormat values (ICAP_IMAGEFILEFORMAT / TW_SETUPFILEXFER.Format).
type FileFormat uint16

const (
	FormatTIFF      FileFormat = 0
	FormatPICT      FileFormat = 1
	FormatBMP       FileFormat = 2
	FormatXBM       FileFormat = 3
	FormatJFIF      FileFormat = 4
	FormatFPX       FileFormat = 5
	FormatTIFFMulti FileFormat = 6
	FormatPNG       FileFormat = 7
	FormatSPIFF     FileFormat = 8
	FormatEXIF      FileFormat = 9
	FormatPDF       FileFormat = 10
)

// Ext returns the file extension conventionally used for the format.
func (f FileFormat) Ext() string {
	switch f {
	case FormatTIFF, FormatTIFFMulti:
		return "tif"
	case FormatJFIF, FormatSPIFF, FormatEXIF:
		return "jpg"
	case FormatBMP:
		return "bmp"
	case FormatPNG:
		return "png"
	case FormatPDF:
		return "pdf"
	default:
		return "tif"
	}
}

// Capability identifiers referenced by the toolkit.
type CapID uint16

const (
	CapXferCount        CapID = 0x0001
	ICapCompression     CapID = 0x0100
	ICapPixelType       CapID = 0x0101
	ICapUnits           CapID = 0x0102
	ICapXferMech        CapID = 0x0103
	CapFeederEnabled    CapID = 0x1002
	CapAutoFeed         CapID = 0x1007
	CapPaperDetectable  CapID = 0x100D
	CapUIControllable   CapID = 0x100E
	CapDeviceOnline     CapID = 0x100F
	ICapImageFileFormat CapID = 0x110C
	ICapXResolution     CapID = 0x1118
	ICapYResolution     CapID = 0x1119
	ICapBitDepth        CapID = 0x112B
)

// Container kinds for capability payloads.
type ContainerType uint16

const (
	ConArray       ContainerType = 3
	ConEnumeration ContainerType = 4
	ConOneValue    ContainerType = 5
	ConRange       ContainerType = 6
)

// Item types inside capability containers.
type ItemType uint16

const (
	TypeInt8   ItemType = 0
	TypeInt16  ItemType = 1
	TypeInt32  ItemType = 2
	TypeUint8  ItemType = 3
	TypeUint16 ItemType = 4
	TypeUint32 ItemType = 5
	TypeBool   ItemType = 6
	TypeFix32  ItemType = 7
	TypeFrame  ItemType = 8
	TypeStr32  ItemType = 9
	TypeStr64  ItemType = 10
	TypeStr128 ItemType = 11
	TypeStr255 ItemType = 12
)

// Extended image info identifiers queried after each transfer.
type ExtInfoID uint16

const (
	ExtInfoDocumentNumber ExtInfoID = 0x1237
	ExtInfoPageNumber     ExtInfoID = 0x1238
	ExtInfoPageSide       ExtInfoID = 0x123B
)

// PendingUnknown is the PendingXfers count reported when the feeder
// cannot predict how many images remain.
const PendingUnknown uint16 = 0xFFFF
