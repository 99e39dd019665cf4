// Package engine drives a scan session over a driver-interface boundary:
// triplet dispatch, the numbered session state machine, the per-image scan
// callback loop, and the four image transfer strategies.
package engine

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/twainkit/twainkit/internal/driver"
	"github.com/twainkit/twainkit/internal/twain"
)

// PendingSignal is the per-image early-termination request set by the
// delivery callback. It is consumed exactly once per image, when the
// end-of-transfer is acknowledged.
type PendingSignal int

const (
	SignalContinue PendingSignal = iota
	SignalStopFeeder
	SignalReset
)

// XferCommand is the delivery callback's verdict for batch continuation.
type XferCommand int

const (
	CmdContinue XferCommand = iota
	CmdStopFeeder
	CmdReset
)

// ImageResult is the payload of one delivery callback invocation: a
// resolved image or a terminal error for the current image.
type ImageResult struct {
	Tag         string
	Triplet     string
	RC          twain.ReturnCode
	Err         error
	Image       image.Image
	Path        string
	Info        twain.ImageInfo
	InfoSummary string
	Raw         []byte
	// PixelOffset is the byte offset into Raw where pixel data begins;
	// nonzero when a container header was prefixed in place.
	PixelOffset int
}

// ImageDelivery receives each resolved image (or terminal error) and
// returns how the batch should continue.
type ImageDelivery func(ImageResult) XferCommand

// Config carries the session's construction-time options.
type Config struct {
	// AppIdentity names this application to the manager. A default is
	// supplied when zero.
	AppIdentity twain.Identity
	// ImageDir receives container files. Empty means the platform temp
	// directory, in which case memory-transfer files are deleted after
	// decoding.
	ImageDir string
	// FileFormat is the negotiated container format for file transfers.
	FileFormat twain.FileFormat
	// AutoFormatOverride opts in to re-choosing the file format from the
	// compression the driver reports once metadata is known. Unreliable
	// with drivers that do not report final values early; off by default.
	AutoFormatOverride bool
	// Deliver is the upward image-delivery callback.
	Deliver ImageDelivery
	// RunOnThread, when set, is registered with drivers that must run
	// their callbacks on a host-owned thread. The engine never calls it.
	RunOnThread func(func())
	Log         *slog.Logger
}

// Session owns all per-session and per-batch state. It is mutated only by
// the orchestrator; transfer engines receive it for the duration of one
// image and must not retain it.
type Session struct {
	entry driver.Entry
	cfg   Config
	log   *slog.Logger

	appID twain.Identity
	dsID  twain.Identity
	state twain.State

	// Per-batch state. scanStarted true means the next callback
	// reinitializes the batch.
	scanStarted   bool
	mech          twain.XferMech
	pending       PendingSignal
	postScanState twain.State
	devMessage    twain.Message

	// Per-image state, reset at end-of-transfer.
	info          twain.ImageInfo
	imagesSeen    int
	imagesXferred int
	fileSeq       int
}

func defaultIdentity() twain.Identity {
	return twain.Identity{
		Version:         twain.Version{Major: 1, Minor: 0, Language: 13, Country: 1, Info: "1.0.0"},
		ProtocolMajor:   2,
		ProtocolMinor:   4,
		SupportedGroups: twain.DGControl | twain.DGImage | twain.DFApp2,
		Manufacturer:    "TwainKit",
		ProductFamily:   "Toolkit",
		ProductName:     "TwainKit Engine",
	}
}

// NewSession constructs a session and opens the protocol manager. Failure
// to open the manager is the one fatal condition: no session is returned.
func NewSession(entry driver.Entry, cfg Config) (*Session, error) {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.AppIdentity == (twain.Identity{}) {
		cfg.AppIdentity = defaultIdentity()
	}
	s := &Session{
		entry:       entry,
		cfg:         cfg,
		log:         cfg.Log,
		appID:       cfg.AppIdentity,
		state:       twain.StateLoaded,
		scanStarted: true,
		mech:        twain.XferNative,
	}
	if tm, ok := entry.(driver.ThreadMarshaler); ok && cfg.RunOnThread != nil {
		tm.SetRunOnThread(cfg.RunOnThread)
	}
	if rc := s.call(twain.DGControl, twain.DATParent, twain.MsgOpenDSM, nil); rc != twain.RCSuccess {
		return nil, s.condErr("open manager", rc)
	}
	s.state = twain.StateOpen
	s.log.Debug("manager opened", "state", s.state)
	return s, nil
}

// State reports the current session state.
func (s *Session) State() twain.State { return s.state }

// Counters reports images seen and successfully transferred this batch.
func (s *Session) Counters() (seen, transferred int) {
	return s.imagesSeen, s.imagesXferred
}

// call issues one triplet. The destination follows the session state:
// below S4 there is no open destination, at or above S4 the open source
// is addressed.
func (s *Session) call(dg twain.DataGroup, dat twain.DataArgType, msg twain.Message, data any) twain.ReturnCode {
	var dest *twain.Identity
	if s.state >= twain.StateSourceOpen {
		dest = &s.dsID
	}
	rc := s.entry.Call(dest, dg, dat, msg, data)
	s.log.Debug("triplet", "triplet", twain.Triplet(dg, dat, msg), "rc", rc)
	return rc
}

// condition fetches the condition code behind the last failure.
func (s *Session) condition() twain.ConditionCode {
	var st twain.Status
	if rc := s.call(twain.DGControl, twain.DATStatus, twain.MsgGet, &st); rc != twain.RCSuccess {
		return twain.CCBummer
	}
	return st.ConditionCode
}

func (s *Session) condErr(op string, rc twain.ReturnCode) error {
	cc := twain.CCSuccess
	if rc == twain.RCFailure {
		cc = s.condition()
	}
	return &twain.CondError{RC: rc, Code: cc, Msg: op + " failed"}
}

// OpenDefaultSource opens the manager's default data source and advances
// to S4. With a manager that negotiated the newer entry-point style, the
// entry-point table is fetched before the open completes; the layer will
// not respond correctly to later calls otherwise.
func (s *Session) OpenDefaultSource() error {
	if s.state != twain.StateOpen {
		return &twain.CondError{RC: twain.RCFailure, Code: twain.CCSeqError, Msg: "open source in " + s.state.String()}
	}
	var id twain.Identity
	if rc := s.call(twain.DGControl, twain.DATIdentity, twain.MsgGetDefault, &id); rc != twain.RCSuccess {
		return s.condErr("get default source", rc)
	}
	return s.openSource(id)
}

func (s *Session) openSource(id twain.Identity) error {
	if id.SupportsDSM2() {
		var ep twain.EntryPoint
		if rc := s.call(twain.DGControl, twain.DATEntryPoint, twain.MsgGet, &ep); rc != twain.RCSuccess {
			return s.condErr("fetch entry points", rc)
		}
		s.log.Debug("entry points fetched", "size", ep.Size)
	}
	if rc := s.call(twain.DGControl, twain.DATIdentity, twain.MsgOpenDS, &id); rc != twain.RCSuccess {
		return s.condErr("open source", rc)
	}
	s.dsID = id
	s.state = twain.StateSourceOpen

	// Best effort: the image-ready notification callback. Managers that
	// predate it fall back to event pumping.
	cb := twain.Callback{Notify: s.onDeviceMessage}
	if rc := s.call(twain.DGControl, twain.DATCallback2, twain.MsgRegisterCallback, &cb); rc != twain.RCSuccess {
		s.log.Debug("callback registration unavailable, relying on event pump")
	}
	s.log.Info("source opened", "product", id.ProductName, "state", s.state)
	return nil
}

func (s *Session) onDeviceMessage(msg twain.Message) {
	switch msg {
	case twain.MsgXferReady, twain.MsgCloseDSReq, twain.MsgCloseDSOK:
		s.devMessage = msg
	}
}

// Enable enables the source and starts a batch. The state the session
// settles to after the batch is chosen here: UI-driven batches return to
// S5, programmatic ones to S4.
func (s *Session) Enable(showUI bool) error {
	if s.state != twain.StateSourceOpen {
		return &twain.CondError{RC: twain.RCFailure, Code: twain.CCSeqError, Msg: "enable in " + s.state.String()}
	}
	ui := twain.UserInterface{ShowUI: showUI}
	if rc := s.call(twain.DGControl, twain.DATUserInterface, twain.MsgEnableDS, &ui); rc != twain.RCSuccess {
		return s.condErr("enable source", rc)
	}
	s.state = twain.StateEnabled
	if showUI {
		s.postScanState = twain.StateEnabled
	} else {
		s.postScanState = twain.StateSourceOpen
	}
	s.scanStarted = true
	s.log.Info("source enabled", "showUI", showUI, "postScanState", s.postScanState)
	return nil
}

// Rollback forces the session down to the target state, releasing the
// resources of every state above it. It never raises the state and
// swallows intermediate failures: its purpose is recovery.
func (s *Session) Rollback(target twain.State) {
	if target < twain.StateLoaded {
		target = twain.StateLoaded
	}
	for s.state > target {
		switch s.state {
		case twain.StateXferring, twain.StateXferReady:
			var px twain.PendingXfers
			if rc := s.call(twain.DGControl, twain.DATPendingXfers, twain.MsgEndXfer, &px); rc == twain.RCSuccess && px.Count != 0 {
				s.call(twain.DGControl, twain.DATPendingXfers, twain.MsgReset, &px)
			}
			s.state = twain.StateEnabled
		case twain.StateEnabled:
			ui := twain.UserInterface{}
			s.call(twain.DGControl, twain.DATUserInterface, twain.MsgDisableDS, &ui)
			s.state = twain.StateSourceOpen
		case twain.StateSourceOpen:
			// Demote before the call: close triplets address the manager.
			s.state = twain.StateOpen
			s.call(twain.DGControl, twain.DATIdentity, twain.MsgCloseDS, &s.dsID)
		case twain.StateOpen:
			s.call(twain.DGControl, twain.DATParent, twain.MsgCloseDSM, nil)
			s.state = twain.StateLoaded
		default:
			s.state = target
		}
	}
	s.devMessage = twain.MsgNull
	s.log.Debug("rolled back", "state", s.state)
}

// Close tears the whole session down.
func (s *Session) Close() {
	s.Rollback(twain.StateLoaded)
}

// queryXferMech fetches the negotiated transfer mechanism. It is queried
// once per batch; failure defaults to the native mechanism.
func (s *Session) queryXferMech() twain.XferMech {
	cap := twain.Capability{Cap: twain.ICapXferMech}
	if rc := s.call(twain.DGControl, twain.DATCapability, twain.MsgGetCurrent, &cap); rc != twain.RCSuccess {
		s.log.Warn("transfer mechanism query failed, defaulting to native")
		return twain.XferNative
	}
	var v int
	if _, err := fmt.Sscanf(cap.Value, "%d", &v); err != nil {
		s.log.Warn("transfer mechanism value malformed, defaulting to native", "value", cap.Value)
		return twain.XferNative
	}
	return twain.XferMech(v)
}

// SetXferMech negotiates the transfer mechanism before a batch.
func (s *Session) SetXferMech(mech twain.XferMech) error {
	cap := twain.Capability{
		Cap: twain.ICapXferMech, ConType: twain.ConOneValue,
		ItemType: twain.TypeUint16, Value: fmt.Sprintf("%d", mech),
	}
	if rc := s.call(twain.DGControl, twain.DATCapability, twain.MsgSet, &cap); rc != twain.RCSuccess {
		return s.condErr("set transfer mechanism", rc)
	}
	return nil
}

// fetchImageInfoOnce queries per-image metadata unless it is already
// known for the current image. BitsPerPixel zero means not yet fetched.
func (s *Session) fetchImageInfoOnce() error {
	if s.info.BitsPerPixel != 0 {
		return nil
	}
	var info twain.ImageInfo
	if rc := s.call(twain.DGImage, twain.DATImageInfo, twain.MsgGet, &info); rc != twain.RCSuccess {
		return s.condErr("image info", rc)
	}
	s.info = info
	return nil
}
