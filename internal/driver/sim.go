package driver

import (
	"bytes"
	"image/jpeg"
	"log/slog"
	"os"
	"strconv"

	"golang.org/x/image/tiff"

	"github.com/twainkit/twainkit/internal/twain"
)

// Page describes one sheet the simulated feeder will produce.
type Page struct {
	PixelType    twain.PixelType
	BitsPerPixel int
	Width        int
	Height       int
	ResX         int
	ResY         int
	Compression  twain.Compression
}

// Simulator is an in-process scanner driver implementing Entry. It honors
// the numbered session protocol, produces deterministic image payloads for
// all four transfer mechanisms, and can inject mid-strip failures and
// paper jams for failure-path testing.
type Simulator struct {
	// DSM2 requires the entry-point table to be fetched before a source
	// open will succeed, mirroring the newer manager calling style.
	DSM2 bool
	// ReportUnknownCount makes end-of-transfer acknowledgements report
	// the unknown-length feeder value while images remain.
	ReportUnknownCount bool
	// PreferredStrip is the strip size advertised by SETUPMEMXFER.
	PreferredStrip uint32
	// StripSizes optionally overrides the size of each delivered strip,
	// cycled in order, to exercise varying-size accumulation.
	StripSizes []uint32
	// FailImage/FailStrip inject a transport failure: the given strip
	// (0-based) of the given image (1-based) returns a hard failure.
	FailImage int
	FailStrip int
	// JamImage makes the end-of-transfer acknowledgement of the given
	// image (1-based) report a paper jam.
	JamImage int

	pages []Page

	dsmOpen      bool
	dsOpen       bool
	enabled      bool
	entryFetched bool
	cc           twain.ConditionCode

	notify func(twain.Message)
	events []twain.Message

	xferMech twain.XferMech
	fileXfer twain.SetupFileXfer

	cur     int
	payload []byte
	off     int
	strip   int
}

// NewSimulator creates a simulator that will feed the given pages.
func NewSimulator(pages ...Page) *Simulator {
	return &Simulator{
		PreferredStrip: 32 * 1024,
		pages:          pages,
		xferMech:       twain.XferNative,
	}
}

// Identity returns the simulated source identity.
func (s *Simulator) Identity() twain.Identity {
	groups := twain.DGControl | twain.DGImage
	if s.DSM2 {
		groups |= twain.DFDSM2
	}
	return twain.Identity{
		ID:              1,
		Version:         twain.Version{Major: 1, Minor: 0, Info: "Simulated Scanner 1.0"},
		ProtocolMajor:   2,
		ProtocolMinor:   4,
		SupportedGroups: groups,
		Manufacturer:    "TwainKit",
		ProductFamily:   "Virtual",
		ProductName:     "TwainKit Simulator",
	}
}

func (s *Simulator) fail(cc twain.ConditionCode) twain.ReturnCode {
	s.cc = cc
	return twain.RCFailure
}

func (s *Simulator) queueEvent(msg twain.Message) {
	s.events = append(s.events, msg)
	if s.notify != nil {
		s.notify(msg)
	}
}

func (s *Simulator) page() *Page {
	if s.cur < 0 || s.cur >= len(s.pages) {
		return nil
	}
	return &s.pages[s.cur]
}

// Call implements Entry.
func (s *Simulator) Call(dest *twain.Identity, dg twain.DataGroup, dat twain.DataArgType, msg twain.Message, data any) twain.ReturnCode {
	switch dat {
	case twain.DATParent:
		return s.parent(msg)
	case twain.DATIdentity:
		return s.identity(msg, data)
	case twain.DATEntryPoint:
		return s.entryPoint(msg, data)
	case twain.DATCallback2:
		return s.callback(msg, data)
	case twain.DATStatus:
		return s.statusGet(msg, data)
	case twain.DATCapability:
		return s.capability(msg, data)
	case twain.DATUserInterface:
		return s.userInterface(msg, data)
	case twain.DATEvent:
		return s.processEvent(msg, data)
	case twain.DATPendingXfers:
		return s.pendingXfers(msg, data)
	case twain.DATSetupMemXfer:
		return s.setupMemXfer(msg, data)
	case twain.DATSetupFileXfer:
		return s.setupFileXfer(msg, data)
	case twain.DATImageInfo:
		return s.imageInfo(msg, data)
	case twain.DATImageLayout:
		return s.imageLayout(msg, data)
	case twain.DATImageMemXfer, twain.DATImageMemFileXfer:
		return s.imageMemXfer(dat, msg, data)
	case twain.DATImageNativeXfer:
		return s.imageNativeXfer(msg, data)
	case twain.DATImageFileXfer:
		return s.imageFileXfer(msg)
	case twain.DATExtImageInfo:
		return s.extImageInfo(msg, data)
	default:
		return s.fail(twain.CCBadProtocol)
	}
}

func (s *Simulator) parent(msg twain.Message) twain.ReturnCode {
	switch msg {
	case twain.MsgOpenDSM:
		s.dsmOpen = true
		return twain.RCSuccess
	case twain.MsgCloseDSM:
		if s.dsOpen {
			return s.fail(twain.CCSeqError)
		}
		s.dsmOpen = false
		return twain.RCSuccess
	}
	return s.fail(twain.CCBadProtocol)
}

func (s *Simulator) identity(msg twain.Message, data any) twain.ReturnCode {
	id, ok := data.(*twain.Identity)
	if !ok {
		return s.fail(twain.CCBadValue)
	}
	switch msg {
	case twain.MsgGetDefault, twain.MsgGetFirst:
		*id = s.Identity()
		return twain.RCSuccess
	case twain.MsgGetNext:
		return twain.RCEndOfList
	case twain.MsgOpenDS:
		if !s.dsmOpen {
			return s.fail(twain.CCSeqError)
		}
		if s.DSM2 && !s.entryFetched {
			return s.fail(twain.CCSeqError)
		}
		s.dsOpen = true
		*id = s.Identity()
		return twain.RCSuccess
	case twain.MsgCloseDS:
		if s.enabled {
			return s.fail(twain.CCSeqError)
		}
		s.dsOpen = false
		return twain.RCSuccess
	}
	return s.fail(twain.CCBadProtocol)
}

func (s *Simulator) entryPoint(msg twain.Message, data any) twain.ReturnCode {
	ep, ok := data.(*twain.EntryPoint)
	if !ok || msg != twain.MsgGet {
		return s.fail(twain.CCBadValue)
	}
	ep.Size = 40
	ep.MemAllocate = func(n uint32) []byte { return make([]byte, n) }
	ep.MemFree = func([]byte) {}
	s.entryFetched = true
	return twain.RCSuccess
}

func (s *Simulator) callback(msg twain.Message, data any) twain.ReturnCode {
	cb, ok := data.(*twain.Callback)
	if !ok || msg != twain.MsgRegisterCallback {
		return s.fail(twain.CCBadValue)
	}
	s.notify = cb.Notify
	return twain.RCSuccess
}

func (s *Simulator) statusGet(msg twain.Message, data any) twain.ReturnCode {
	st, ok := data.(*twain.Status)
	if !ok || msg != twain.MsgGet {
		return s.fail(twain.CCBadValue)
	}
	st.ConditionCode = s.cc
	s.cc = twain.CCSuccess // cleared on read
	return twain.RCSuccess
}

func (s *Simulator) capability(msg twain.Message, data any) twain.ReturnCode {
	cap, ok := data.(*twain.Capability)
	if !ok {
		return s.fail(twain.CCBadValue)
	}
	switch msg {
	case twain.MsgGet, twain.MsgGetCurrent, twain.MsgGetDefault:
		switch cap.Cap {
		case twain.ICapXferMech:
			*cap = twain.Capability{Cap: twain.ICapXferMech, ConType: twain.ConOneValue,
				ItemType: twain.TypeUint16, Value: strconv.Itoa(int(s.xferMech))}
		case twain.ICapPixelType:
			pt := twain.PixelBW
			if p := s.page(); p != nil {
				pt = p.PixelType
			} else if len(s.pages) > 0 {
				pt = s.pages[0].PixelType
			}
			*cap = twain.Capability{Cap: twain.ICapPixelType, ConType: twain.ConOneValue,
				ItemType: twain.TypeUint16, Value: strconv.Itoa(int(pt))}
		case twain.CapXferCount:
			*cap = twain.Capability{Cap: twain.CapXferCount, ConType: twain.ConOneValue,
				ItemType: twain.TypeInt16, Value: strconv.Itoa(len(s.pages))}
		case twain.CapDeviceOnline, twain.CapUIControllable, twain.CapPaperDetectable:
			*cap = twain.Capability{Cap: cap.Cap, ConType: twain.ConOneValue,
				ItemType: twain.TypeBool, Value: "TRUE"}
		default:
			return s.fail(twain.CCCapUnsupported)
		}
		return twain.RCSuccess
	case twain.MsgSet:
		switch cap.Cap {
		case twain.ICapXferMech:
			v, err := strconv.Atoi(cap.Value)
			if err != nil {
				return s.fail(twain.CCBadValue)
			}
			switch twain.XferMech(v) {
			case twain.XferNative, twain.XferFile, twain.XferMemory, twain.XferMemFile:
				s.xferMech = twain.XferMech(v)
				return twain.RCSuccess
			}
			return s.fail(twain.CCBadValue)
		default:
			// Other sets are accepted and ignored; the page list fixes
			// the produced formats.
			return twain.RCSuccess
		}
	}
	return s.fail(twain.CCCapBadOperation)
}

func (s *Simulator) userInterface(msg twain.Message, data any) twain.ReturnCode {
	if _, ok := data.(*twain.UserInterface); !ok {
		return s.fail(twain.CCBadValue)
	}
	switch msg {
	case twain.MsgEnableDS, twain.MsgEnableDSUIOnly:
		if !s.dsOpen || s.enabled {
			return s.fail(twain.CCSeqError)
		}
		s.enabled = true
		s.cur = 0
		s.resetImage()
		if len(s.pages) > 0 {
			s.queueEvent(twain.MsgXferReady)
		}
		return twain.RCSuccess
	case twain.MsgDisableDS:
		if !s.enabled {
			return s.fail(twain.CCSeqError)
		}
		s.enabled = false
		return twain.RCSuccess
	}
	return s.fail(twain.CCBadProtocol)
}

func (s *Simulator) processEvent(msg twain.Message, data any) twain.ReturnCode {
	ev, ok := data.(*twain.Event)
	if !ok || msg != twain.MsgProcessEvent {
		return s.fail(twain.CCBadValue)
	}
	if len(s.events) > 0 {
		ev.Message = s.events[0]
		s.events = s.events[1:]
		return twain.RCDSEvent
	}
	ev.Message = twain.MsgNull
	return twain.RCNotDSEvent
}

func (s *Simulator) pendingXfers(msg twain.Message, data any) twain.ReturnCode {
	px, ok := data.(*twain.PendingXfers)
	if !ok {
		return s.fail(twain.CCBadValue)
	}
	remaining := func() uint16 {
		n := len(s.pages) - s.cur
		if n <= 0 {
			return 0
		}
		if s.ReportUnknownCount {
			return twain.PendingUnknown
		}
		return uint16(n)
	}
	switch msg {
	case twain.MsgGet:
		px.Count = remaining()
		return twain.RCSuccess
	case twain.MsgEndXfer:
		if !s.enabled {
			return s.fail(twain.CCSeqError)
		}
		if s.JamImage > 0 && s.cur+1 == s.JamImage {
			return s.fail(twain.CCPaperJam)
		}
		s.cur++
		s.resetImage()
		px.Count = remaining()
		if px.Count != 0 {
			s.queueEvent(twain.MsgXferReady)
		}
		return twain.RCSuccess
	case twain.MsgStopFeeder:
		if !s.enabled {
			return s.fail(twain.CCSeqError)
		}
		s.cur = len(s.pages)
		s.resetImage()
		px.Count = 0
		return twain.RCSuccess
	case twain.MsgReset:
		s.cur = len(s.pages)
		s.resetImage()
		px.Count = 0
		return twain.RCSuccess
	}
	return s.fail(twain.CCBadProtocol)
}

func (s *Simulator) setupMemXfer(msg twain.Message, data any) twain.ReturnCode {
	m, ok := data.(*twain.SetupMemXfer)
	if !ok || msg != twain.MsgGet {
		return s.fail(twain.CCBadValue)
	}
	m.MinBufSize = 4096
	m.MaxBufSize = 1 << 20
	m.Preferred = s.PreferredStrip
	return twain.RCSuccess
}

func (s *Simulator) setupFileXfer(msg twain.Message, data any) twain.ReturnCode {
	x, ok := data.(*twain.SetupFileXfer)
	if !ok {
		return s.fail(twain.CCBadValue)
	}
	switch msg {
	case twain.MsgGet, twain.MsgGetDefault:
		*x = s.fileXfer
		return twain.RCSuccess
	case twain.MsgSet:
		switch x.Format {
		case twain.FormatTIFF, twain.FormatJFIF, twain.FormatPNG:
			s.fileXfer = *x
			return twain.RCSuccess
		}
		return s.fail(twain.CCBadValue)
	}
	return s.fail(twain.CCBadProtocol)
}

func (s *Simulator) imageInfo(msg twain.Message, data any) twain.ReturnCode {
	info, ok := data.(*twain.ImageInfo)
	if !ok || msg != twain.MsgGet {
		return s.fail(twain.CCBadValue)
	}
	p := s.page()
	if p == nil || !s.enabled {
		return s.fail(twain.CCSeqError)
	}
	samples := int16(1)
	if p.PixelType == twain.PixelRGB {
		samples = 3
	}
	*info = twain.ImageInfo{
		XResolution:     twain.Fix32FromFloat(float64(p.ResX)),
		YResolution:     twain.Fix32FromFloat(float64(p.ResY)),
		ImageWidth:      int32(p.Width),
		ImageLength:     int32(p.Height),
		SamplesPerPixel: samples,
		BitsPerPixel:    int16(p.BitsPerPixel),
		PixelType:       p.PixelType,
		Compression:     p.Compression,
	}
	return twain.RCSuccess
}

func (s *Simulator) imageLayout(msg twain.Message, data any) twain.ReturnCode {
	l, ok := data.(*twain.ImageLayout)
	if !ok || msg != twain.MsgGet {
		return s.fail(twain.CCBadValue)
	}
	p := s.page()
	if p == nil {
		return s.fail(twain.CCSeqError)
	}
	*l = twain.ImageLayout{
		Right:          twain.Fix32FromFloat(float64(p.Width) / float64(max(p.ResX, 1))),
		Bottom:         twain.Fix32FromFloat(float64(p.Height) / float64(max(p.ResY, 1))),
		DocumentNumber: 1,
		PageNumber:     uint32(s.cur + 1),
		FrameNumber:    1,
	}
	return twain.RCSuccess
}

func (s *Simulator) imageMemXfer(dat twain.DataArgType, msg twain.Message, data any) twain.ReturnCode {
	mx, ok := data.(*twain.ImageMemXfer)
	if !ok || msg != twain.MsgGet {
		return s.fail(twain.CCBadValue)
	}
	p := s.page()
	if p == nil || !s.enabled {
		return s.fail(twain.CCSeqError)
	}
	if s.payload == nil {
		var err error
		if dat == twain.DATImageMemFileXfer {
			s.payload, err = s.containerPayload(p)
		} else {
			s.payload, err = s.stripPayload(p)
		}
		if err != nil {
			slog.Error("simulator payload generation failed", "err", err)
			return s.fail(twain.CCBummer)
		}
	}

	if s.FailImage > 0 && s.cur+1 == s.FailImage && s.strip == s.FailStrip {
		return s.fail(twain.CCBummer)
	}

	n := int(s.PreferredStrip)
	if len(s.StripSizes) > 0 {
		n = int(s.StripSizes[s.strip%len(s.StripSizes)])
	}
	if n > len(mx.Memory) {
		n = len(mx.Memory)
	}
	if rest := len(s.payload) - s.off; n > rest {
		n = rest
	}
	copy(mx.Memory, s.payload[s.off:s.off+n])
	mx.BytesWritten = uint32(n)
	mx.Compression = p.Compression
	mx.Columns = uint32(p.Width)
	mx.Rows = uint32(p.Height)
	mx.YOffset = uint32(s.off)
	s.off += n
	s.strip++

	if s.off >= len(s.payload) {
		return twain.RCXferDone
	}
	return twain.RCSuccess
}

func (s *Simulator) imageNativeXfer(msg twain.Message, data any) twain.ReturnCode {
	h, ok := data.(*NativeImage)
	if !ok || msg != twain.MsgGet {
		return s.fail(twain.CCBadValue)
	}
	p := s.page()
	if p == nil || !s.enabled {
		return s.fail(twain.CCSeqError)
	}
	*h = &simNative{img: genImage(p)}
	return twain.RCXferDone
}

func (s *Simulator) imageFileXfer(msg twain.Message) twain.ReturnCode {
	if msg != twain.MsgGet {
		return s.fail(twain.CCBadValue)
	}
	p := s.page()
	if p == nil || !s.enabled {
		return s.fail(twain.CCSeqError)
	}
	if s.fileXfer.FileName == "" {
		return s.fail(twain.CCBadValue)
	}
	img := genImage(p)
	var buf bytes.Buffer
	var err error
	switch s.fileXfer.Format {
	case twain.FormatJFIF:
		err = jpeg.Encode(&buf, img, nil)
	default:
		err = tiff.Encode(&buf, img, nil)
	}
	if err != nil {
		return s.fail(twain.CCBummer)
	}
	if err := os.WriteFile(s.fileXfer.FileName, buf.Bytes(), 0644); err != nil {
		return s.fail(twain.CCFileWriteError)
	}
	return twain.RCXferDone
}

func (s *Simulator) extImageInfo(msg twain.Message, data any) twain.ReturnCode {
	ext, ok := data.(*twain.ExtImageInfo)
	if !ok || msg != twain.MsgGet {
		return s.fail(twain.CCBadValue)
	}
	for i := range ext.Values {
		v := &ext.Values[i]
		switch v.InfoID {
		case twain.ExtInfoDocumentNumber:
			v.RC, v.Value = twain.RCSuccess, 1
		case twain.ExtInfoPageNumber:
			v.RC, v.Value = twain.RCSuccess, uint32(s.cur+1)
		case twain.ExtInfoPageSide:
			v.RC, v.Value = twain.RCSuccess, 1
		default:
			v.RC = twain.RCInfoNotSupported
		}
	}
	return twain.RCSuccess
}

func (s *Simulator) resetImage() {
	s.payload = nil
	s.off = 0
	s.strip = 0
}
