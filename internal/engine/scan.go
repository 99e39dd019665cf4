package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/twainkit/twainkit/internal/twain"
)

// errNoProgress reports a batch that stopped producing image-ready
// signals without reaching its end.
var errNoProgress = errors.New("scan stalled: no image ready")

// ScanCallback performs one step of the per-batch state machine. It is
// invoked once per image-ready event (or pumped call) and runs strictly
// synchronously; the protocol guarantees one image is fully resolved,
// acknowledged and counted before the next ready signal is evaluated.
func (s *Session) ScanCallback() error {
	if s.state < twain.StateEnabled {
		return &twain.CondError{RC: twain.RCFailure, Code: twain.CCSeqError, Msg: "scan callback in " + s.state.String()}
	}

	// Batch start: consume the signal slot and cache the negotiated
	// mechanism for the whole batch. It must not be re-queried per image.
	if s.scanStarted {
		s.pending = SignalContinue
		s.mech = s.queryXferMech()
		s.imagesSeen, s.imagesXferred, s.fileSeq = 0, 0, 0
		s.info = twain.ImageInfo{}
		s.scanStarted = false
		s.log.Info("batch started", "mech", s.mech)
	}

	// Not ready yet: pump one device event and return without
	// transferring, so the host's event loop is never starved.
	if s.devMessage != twain.MsgXferReady {
		var ev twain.Event
		if rc := s.call(twain.DGControl, twain.DATEvent, twain.MsgProcessEvent, &ev); rc == twain.RCDSEvent {
			s.onDeviceMessage(ev.Message)
		}
		if s.devMessage == twain.MsgCloseDSReq {
			s.log.Info("source requested close")
			s.endBatch()
			return nil
		}
		if s.devMessage != twain.MsgXferReady {
			return nil
		}
	}
	s.devMessage = twain.MsgNull
	s.state = twain.StateXferReady
	s.imagesSeen++

	res := ImageResult{Tag: "ScanCallback"}
	err := s.transferOne(&res)
	if err != nil {
		// Terminal for the batch: roll back to the post-scan state and
		// report the failure exactly once. Counters do not advance.
		s.log.Error("image transfer failed", "tag", res.Tag, "image", s.imagesSeen, "err", err)
		s.Rollback(s.postScanState)
		s.scanStarted = true
		res.Err = err
		if s.cfg.Deliver != nil {
			s.cfg.Deliver(res)
		}
		return err
	}

	// Post-transfer metadata, plus best-effort enrichment whose failure
	// is silently ignored.
	if ierr := s.fetchImageInfoOnce(); ierr == nil {
		res.Info = s.info
	}
	res.InfoSummary = s.extInfoSummary()

	if s.cfg.Deliver != nil {
		switch s.cfg.Deliver(res) {
		case CmdStopFeeder:
			s.pending = SignalStopFeeder
		case CmdReset:
			s.pending = SignalReset
		}
	}

	return s.acknowledge()
}

// acknowledge signals end-of-transfer for the current image, honoring the
// pending-transfer signal, and closes the batch when no images remain.
// The signal is consumed here, exactly once per image.
func (s *Session) acknowledge() error {
	signal := s.pending
	s.pending = SignalContinue
	s.info = twain.ImageInfo{}

	if signal == SignalReset {
		s.log.Info("reset requested by consumer")
		s.endBatch()
		return nil
	}

	var px twain.PendingXfers
	msg := twain.MsgEndXfer
	if signal == SignalStopFeeder {
		msg = twain.MsgStopFeeder
		s.log.Info("feeder stop requested by consumer")
	}
	rc := s.call(twain.DGControl, twain.DATPendingXfers, msg, &px)
	if rc != twain.RCSuccess {
		err := s.condErr("end of transfer", rc)
		s.log.Error("end-of-transfer acknowledgement failed", "err", err)
		s.Rollback(s.postScanState)
		s.scanStarted = true
		if s.cfg.Deliver != nil {
			s.cfg.Deliver(ImageResult{
				Tag:     "EndXfer",
				Triplet: twain.Triplet(twain.DGControl, twain.DATPendingXfers, msg),
				RC:      rc,
				Err:     err,
			})
		}
		return err
	}

	s.imagesXferred++
	s.log.Info("image acknowledged", "transferred", s.imagesXferred, "remaining", px.Count)

	if px.Count == 0 {
		// A zero count already settled the source to enabled-idle; the
		// rollback below must not acknowledge again.
		s.state = twain.StateEnabled
		s.endBatch()
		return nil
	}
	s.state = twain.StateXferReady
	return nil
}

// endBatch settles to the mechanism-appropriate post-scan state and arms
// the next callback to reinitialize.
func (s *Session) endBatch() {
	s.Rollback(s.postScanState)
	s.scanStarted = true
	s.log.Info("batch ended", "state", s.state, "transferred", s.imagesXferred)
}

// transferOne dispatches to the engine matching the batch's cached
// mechanism.
func (s *Session) transferOne(res *ImageResult) error {
	s.state = twain.StateXferring
	switch s.mech {
	case twain.XferNative:
		return s.xferNative(res)
	case twain.XferFile:
		return s.xferFile(res)
	case twain.XferMemory:
		return s.xferMemory(res)
	case twain.XferMemFile:
		return s.xferMemFile(res)
	default:
		return &twain.CondError{RC: twain.RCFailure, Code: twain.CCBadValue,
			Msg: fmt.Sprintf("unknown transfer mechanism %d", s.mech)}
	}
}

// extInfoSummary fetches a small set of extended per-image attributes.
// Purely an enrichment: any failure yields an empty summary.
func (s *Session) extInfoSummary() string {
	ext := twain.ExtImageInfo{Values: []twain.ExtImageInfoValue{
		{InfoID: twain.ExtInfoDocumentNumber},
		{InfoID: twain.ExtInfoPageNumber},
		{InfoID: twain.ExtInfoPageSide},
	}}
	if rc := s.call(twain.DGImage, twain.DATExtImageInfo, twain.MsgGet, &ext); rc != twain.RCSuccess {
		return ""
	}
	out := ""
	for _, v := range ext.Values {
		if v.RC != twain.RCSuccess {
			continue
		}
		switch v.InfoID {
		case twain.ExtInfoDocumentNumber:
			out += fmt.Sprintf("doc=%d ", v.Value)
		case twain.ExtInfoPageNumber:
			out += fmt.Sprintf("page=%d ", v.Value)
		case twain.ExtInfoPageSide:
			side := "front"
			if v.Value == 2 {
				side = "back"
			}
			out += "side=" + side + " "
		}
	}
	if len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out
}

// BatchDone reports whether the next callback would start a new batch.
func (s *Session) BatchDone() bool { return s.scanStarted }

// RunBatch drives scan callbacks until the current batch completes. The
// source must already be enabled. Cancellation is cooperative: the context
// is consulted between callbacks, never mid-transfer.
func (s *Session) RunBatch(ctx context.Context) error {
	if s.state < twain.StateEnabled {
		return &twain.CondError{RC: twain.RCFailure, Code: twain.CCSeqError, Msg: "batch in " + s.state.String()}
	}
	idle := 0
	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			s.Rollback(s.postScanState)
			s.scanStarted = true
			return err
		}
		if !first && s.scanStarted {
			return nil
		}
		seen := s.imagesSeen
		if err := s.ScanCallback(); err != nil {
			return err
		}
		if s.imagesSeen == seen && !s.scanStarted {
			idle++
			if idle > 1000 {
				s.Rollback(s.postScanState)
				s.scanStarted = true
				return errNoProgress
			}
		} else {
			idle = 0
		}
	}
}
