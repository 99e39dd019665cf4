package twain

import (
	"fmt"
	"strconv"
	"strings"
)

// Triplet token resolution. Each token is either a well-known symbolic
// name ("DG_IMAGE", "DAT_IMAGEMEMXFER", "MSG_GET") or a raw hexadecimal
// literal ("0x0103"). Lookups are case-insensitive on the symbolic form.

var dataGroupNames = map[string]DataGroup{
	"DG_CONTROL": DGControl,
	"DG_IMAGE":   DGImage,
	"DG_AUDIO":   DGAudio,
}

var dataArgTypeNames = map[string]DataArgType{
	"DAT_NULL":             DATNull,
	"DAT_CAPABILITY":       DATCapability,
	"DAT_EVENT":            DATEvent,
	"DAT_IDENTITY":         DATIdentity,
	"DAT_PARENT":           DATParent,
	"DAT_PENDINGXFERS":     DATPendingXfers,
	"DAT_SETUPMEMXFER":     DATSetupMemXfer,
	"DAT_SETUPFILEXFER":    DATSetupFileXfer,
	"DAT_STATUS":           DATStatus,
	"DAT_USERINTERFACE":    DATUserInterface,
	"DAT_XFERGROUP":        DATXferGroup,
	"DAT_CUSTOMDSDATA":     DATCustomDSData,
	"DAT_DEVICEEVENT":      DATDeviceEvent,
	"DAT_CALLBACK":         DATCallback,
	"DAT_STATUSUTF8":       DATStatusUTF8,
	"DAT_CALLBACK2":        DATCallback2,
	"DAT_IMAGEINFO":        DATImageInfo,
	"DAT_IMAGELAYOUT":      DATImageLayout,
	"DAT_IMAGEMEMXFER":     DATImageMemXfer,
	"DAT_IMAGENATIVEXFER":  DATImageNativeXfer,
	"DAT_IMAGEFILEXFER":    DATImageFileXfer,
	"DAT_JPEGCOMPRESSION":  DATJPEGCompression,
	"DAT_EXTIMAGEINFO":     DATExtImageInfo,
	"DAT_IMAGEMEMFILEXFER": DATImageMemFileXfer,
	"DAT_ENTRYPOINT":       DATEntryPoint,
}

var messageNames = map[string]Message{
	"MSG_NULL":              MsgNull,
	"MSG_GET":               MsgGet,
	"MSG_GETCURRENT":        MsgGetCurrent,
	"MSG_GETDEFAULT":        MsgGetDefault,
	"MSG_GETFIRST":          MsgGetFirst,
	"MSG_GETNEXT":           MsgGetNext,
	"MSG_SET":               MsgSet,
	"MSG_RESET":             MsgReset,
	"MSG_QUERYSUPPORT":      MsgQuerySupport,
	"MSG_XFERREADY":         MsgXferReady,
	"MSG_CLOSEDSREQ":        MsgCloseDSReq,
	"MSG_CLOSEDSOK":         MsgCloseDSOK,
	"MSG_DEVICEEVENT":       MsgDeviceEvent,
	"MSG_OPENDSM":           MsgOpenDSM,
	"MSG_CLOSEDSM":          MsgCloseDSM,
	"MSG_OPENDS":            MsgOpenDS,
	"MSG_CLOSEDS":           MsgCloseDS,
	"MSG_USERSELECT":        MsgUserSelect,
	"MSG_DISABLEDS":         MsgDisableDS,
	"MSG_ENABLEDS":          MsgEnableDS,
	"MSG_ENABLEDSUIONLY":    MsgEnableDSUIOnly,
	"MSG_PROCESSEVENT":      MsgProcessEvent,
	"MSG_ENDXFER":           MsgEndXfer,
	"MSG_STOPFEEDER":        MsgStopFeeder,
	"MSG_REGISTER_CALLBACK": MsgRegisterCallback,
}

var capNames = map[string]CapID{
	"CAP_XFERCOUNT":        CapXferCount,
	"ICAP_COMPRESSION":     ICapCompression,
	"ICAP_PIXELTYPE":       ICapPixelType,
	"ICAP_UNITS":           ICapUnits,
	"ICAP_XFERMECH":        ICapXferMech,
	"CAP_FEEDERENABLED":    CapFeederEnabled,
	"CAP_AUTOFEED":         CapAutoFeed,
	"CAP_PAPERDETECTABLE":  CapPaperDetectable,
	"CAP_UICONTROLLABLE":   CapUIControllable,
	"CAP_DEVICEONLINE":     CapDeviceOnline,
	"ICAP_IMAGEFILEFORMAT": ICapImageFileFormat,
	"ICAP_XRESOLUTION":     ICapXResolution,
	"ICAP_YRESOLUTION":     ICapYResolution,
	"ICAP_BITDEPTH":        ICapBitDepth,
}

var (
	dataGroupValues   = invert(dataGroupNames)
	dataArgTypeValues = invert(dataArgTypeNames)
	messageValues     = invert(messageNames)
	capValues         = invert(capNames)
)

func invert[K comparable, V comparable](m map[V]K) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func parseToken(tok string) (uint64, bool) {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		v, err := strconv.ParseUint(tok[2:], 16, 32)
		return v, err == nil
	}
	return 0, false
}

// ParseDataGroup resolves a DG token ("DG_IMAGE" or "0x2").
func ParseDataGroup(tok string) (DataGroup, error) {
	if dg, ok := dataGroupNames[strings.ToUpper(strings.TrimSpace(tok))]; ok {
		return dg, nil
	}
	if v, ok := parseToken(tok); ok {
		return DataGroup(v), nil
	}
	return 0, fmt.Errorf("unrecognized data group %q", tok)
}

// ParseDataArgType resolves a DAT token ("DAT_IMAGEINFO" or "0x0101").
func ParseDataArgType(tok string) (DataArgType, error) {
	if dat, ok := dataArgTypeNames[strings.ToUpper(strings.TrimSpace(tok))]; ok {
		return dat, nil
	}
	if v, ok := parseToken(tok); ok {
		return DataArgType(v), nil
	}
	return 0, fmt.Errorf("unrecognized data argument type %q", tok)
}

// ParseMessage resolves a MSG token ("MSG_GET" or "0x1").
func ParseMessage(tok string) (Message, error) {
	if msg, ok := messageNames[strings.ToUpper(strings.TrimSpace(tok))]; ok {
		return msg, nil
	}
	if v, ok := parseToken(tok); ok {
		return Message(v), nil
	}
	return 0, fmt.Errorf("unrecognized message %q", tok)
}

// ParseCapID resolves a CAP_/ICAP_ token or hex literal.
func ParseCapID(tok string) (CapID, error) {
	if id, ok := capNames[strings.ToUpper(strings.TrimSpace(tok))]; ok {
		return id, nil
	}
	if v, ok := parseToken(tok); ok {
		return CapID(v), nil
	}
	return 0, fmt.Errorf("unrecognized capability %q", tok)
}

func (dg DataGroup) String() string {
	if s, ok := dataGroupValues[dg]; ok {
		return s
	}
	return fmt.Sprintf("0x%X", uint32(dg))
}

func (dat DataArgType) String() string {
	if s, ok := dataArgTypeValues[dat]; ok {
		return s
	}
	return fmt.Sprintf("0x%04X", uint16(dat))
}

func (msg Message) String() string {
	if s, ok := messageValues[msg]; ok {
		return s
	}
	return fmt.Sprintf("0x%04X", uint16(msg))
}

func (c CapID) String() string {
	if s, ok := capValues[c]; ok {
		return s
	}
	return fmt.Sprintf("0x%04X", uint16(c))
}

var returnCodeValues = map[ReturnCode]string{
	RCSuccess:          "TWRC_SUCCESS",
	RCFailure:          "TWRC_FAILURE",
	RCCheckStatus:      "TWRC_CHECKSTATUS",
	RCCancel:           "TWRC_CANCEL",
	RCDSEvent:          "TWRC_DSEVENT",
	RCNotDSEvent:       "TWRC_NOTDSEVENT",
	RCXferDone:         "TWRC_XFERDONE",
	RCEndOfList:        "TWRC_ENDOFLIST",
	RCInfoNotSupported: "TWRC_INFONOTSUPPORTED",
	RCDataNotAvailable: "TWRC_DATANOTAVAILABLE",
	RCBusy:             "TWRC_BUSY",
	RCScannerLocked:    "TWRC_SCANNERLOCKED",
}

var conditionCodeValues = map[ConditionCode]string{
	CCSuccess:           "TWCC_SUCCESS",
	CCBummer:            "TWCC_BUMMER",
	CCLowMemory:         "TWCC_LOWMEMORY",
	CCNoDS:              "TWCC_NODS",
	CCMaxConnections:    "TWCC_MAXCONNECTIONS",
	CCOperationError:    "TWCC_OPERATIONERROR",
	CCBadCap:            "TWCC_BADCAP",
	CCBadProtocol:       "TWCC_BADPROTOCOL",
	CCBadValue:          "TWCC_BADVALUE",
	CCSeqError:          "TWCC_SEQERROR",
	CCBadDest:           "TWCC_BADDEST",
	CCCapUnsupported:    "TWCC_CAPUNSUPPORTED",
	CCCapBadOperation:   "TWCC_CAPBADOPERATION",
	CCCapSeqError:       "TWCC_CAPSEQERROR",
	CCDenied:            "TWCC_DENIED",
	CCFileExists:        "TWCC_FILEEXISTS",
	CCFileNotFound:      "TWCC_FILENOTFOUND",
	CCNotEmpty:          "TWCC_NOTEMPTY",
	CCPaperJam:          "TWCC_PAPERJAM",
	CCPaperDoubleFeed:   "TWCC_PAPERDOUBLEFEED",
	CCFileWriteError:    "TWCC_FILEWRITEERROR",
	CCCheckDeviceOnline: "TWCC_CHECKDEVICEONLINE",
	CCInterlock:         "TWCC_INTERLOCK",
	CCDamagedCorner:     "TWCC_DAMAGEDCORNER",
	CCFocusError:        "TWCC_FOCUSERROR",
	CCDocTooLight:       "TWCC_DOCTOOLIGHT",
	CCDocTooDark:        "TWCC_DOCTOODARK",
	CCNoMedia:           "TWCC_NOMEDIA",
}

func (rc ReturnCode) String() string {
	if s, ok := returnCodeValues[rc]; ok {
		return s
	}
	return fmt.Sprintf("0x%04X", uint16(rc))
}

func (cc ConditionCode) String() string {
	if s, ok := conditionCodeValues[cc]; ok {
		return s
	}
	return fmt.Sprintf("0x%04X", uint16(cc))
}

// Triplet is the printable form used in delivery callbacks and logs.
func Triplet(dg DataGroup, dat DataArgType, msg Message) string {
	return dg.String() + "/" + dat.String() + "/" + msg.String()
}
