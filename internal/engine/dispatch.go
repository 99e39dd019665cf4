package engine

import (
	"strings"

	"github.com/twainkit/twainkit/internal/twain"
)

// Send dispatches one textual triplet: symbolic or hex tokens in, CSV
// payload in and out. Unrecognized tokens and malformed payloads are
// rejected before anything reaches the driver. The returned string is the
// CSV form of the operation's result payload, empty when the operation
// carries none.
func (s *Session) Send(dgTok, datTok, msgTok, payload string) (twain.ReturnCode, string, error) {
	dg, err := twain.ParseDataGroup(dgTok)
	if err != nil {
		return twain.RCFailure, "", &twain.CondError{RC: twain.RCFailure, Code: twain.CCBadValue, Msg: err.Error()}
	}
	dat, err := twain.ParseDataArgType(datTok)
	if err != nil {
		return twain.RCFailure, "", &twain.CondError{RC: twain.RCFailure, Code: twain.CCBadValue, Msg: err.Error()}
	}
	msg, err := twain.ParseMessage(msgTok)
	if err != nil {
		return twain.RCFailure, "", &twain.CondError{RC: twain.RCFailure, Code: twain.CCBadValue, Msg: err.Error()}
	}

	if err := s.checkSequence(dg, dat); err != nil {
		return twain.RCFailure, "", err
	}

	switch dat {
	case twain.DATIdentity:
		var id twain.Identity
		if payload != "" {
			if id, err = twain.ParseIdentity(payload); err != nil {
				return twain.RCFailure, "", badPayload(err)
			}
		}
		if msg == twain.MsgOpenDS {
			if err := s.openSource(id); err != nil {
				return twain.RCFailure, "", err
			}
			return twain.RCSuccess, s.dsID.CSV(), nil
		}
		rc := s.call(dg, dat, msg, &id)
		if rc != twain.RCSuccess {
			return rc, "", s.condErr("identity", rc)
		}
		if msg == twain.MsgCloseDS {
			s.state = twain.StateOpen
			return rc, "", nil
		}
		return rc, id.CSV(), nil

	case twain.DATCapability:
		// GETs need only the capability token; SETs carry the full
		// one-value container form.
		var cap twain.Capability
		if strings.Contains(payload, ",") {
			if cap, err = twain.ParseCapability(payload); err != nil {
				return twain.RCFailure, "", badPayload(err)
			}
		} else {
			id, err := twain.ParseCapID(payload)
			if err != nil {
				return twain.RCFailure, "", badPayload(err)
			}
			cap.Cap = id
		}
		rc := s.call(dg, dat, msg, &cap)
		if rc != twain.RCSuccess {
			return rc, "", s.condErr("capability", rc)
		}
		return rc, cap.CSV(), nil

	case twain.DATImageInfo:
		var info twain.ImageInfo
		rc := s.call(dg, dat, msg, &info)
		if rc != twain.RCSuccess {
			return rc, "", s.condErr("image info", rc)
		}
		return rc, info.CSV(), nil

	case twain.DATImageLayout:
		var l twain.ImageLayout
		if payload != "" {
			if l, err = twain.ParseImageLayout(payload); err != nil {
				return twain.RCFailure, "", badPayload(err)
			}
		}
		rc := s.call(dg, dat, msg, &l)
		if rc != twain.RCSuccess {
			return rc, "", s.condErr("image layout", rc)
		}
		return rc, l.CSV(), nil

	case twain.DATSetupMemXfer:
		var m twain.SetupMemXfer
		rc := s.call(dg, dat, msg, &m)
		if rc != twain.RCSuccess {
			return rc, "", s.condErr("setup memory transfer", rc)
		}
		return rc, m.CSV(), nil

	case twain.DATSetupFileXfer:
		var x twain.SetupFileXfer
		if payload != "" {
			if x, err = twain.ParseSetupFileXfer(payload); err != nil {
				return twain.RCFailure, "", badPayload(err)
			}
		}
		rc := s.call(dg, dat, msg, &x)
		if rc != twain.RCSuccess {
			return rc, "", s.condErr("setup file transfer", rc)
		}
		return rc, x.CSV(), nil

	case twain.DATPendingXfers:
		var px twain.PendingXfers
		rc := s.call(dg, dat, msg, &px)
		if rc != twain.RCSuccess {
			return rc, "", s.condErr("pending transfers", rc)
		}
		return rc, px.CSV(), nil

	case twain.DATUserInterface:
		var ui twain.UserInterface
		if payload != "" {
			if ui, err = twain.ParseUserInterface(payload); err != nil {
				return twain.RCFailure, "", badPayload(err)
			}
		}
		if msg == twain.MsgEnableDS {
			if err := s.Enable(ui.ShowUI); err != nil {
				return twain.RCFailure, "", err
			}
			return twain.RCSuccess, ui.CSV(), nil
		}
		rc := s.call(dg, dat, msg, &ui)
		if rc != twain.RCSuccess {
			return rc, "", s.condErr("user interface", rc)
		}
		if msg == twain.MsgDisableDS {
			s.state = twain.StateSourceOpen
		}
		return rc, ui.CSV(), nil

	case twain.DATStatus:
		var st twain.Status
		rc := s.call(dg, dat, msg, &st)
		if rc != twain.RCSuccess {
			return rc, "", s.condErr("status", rc)
		}
		return rc, st.ConditionCode.String(), nil

	case twain.DATParent:
		rc := s.call(dg, dat, msg, nil)
		if rc != twain.RCSuccess {
			return rc, "", s.condErr("parent", rc)
		}
		switch msg {
		case twain.MsgOpenDSM:
			s.state = twain.StateOpen
		case twain.MsgCloseDSM:
			s.state = twain.StateLoaded
		}
		return rc, "", nil

	default:
		// Structurally valid but not handled here: pass through with no
		// payload so drivers with private argument types stay reachable.
		rc := s.call(dg, dat, msg, nil)
		if rc != twain.RCSuccess && rc != twain.RCXferDone {
			return rc, "", s.condErr("passthrough", rc)
		}
		return rc, "", nil
	}
}

// checkSequence rejects triplets that cannot be legal in the current state
// before the driver sees them. Only lower bounds are enforced here; the
// driver remains the authority on everything finer.
func (s *Session) checkSequence(dg twain.DataGroup, dat twain.DataArgType) error {
	var min twain.State
	switch {
	case dg == twain.DGImage:
		min = twain.StateXferReady
	case dat == twain.DATCapability, dat == twain.DATUserInterface,
		dat == twain.DATSetupMemXfer, dat == twain.DATSetupFileXfer,
		dat == twain.DATPendingXfers:
		min = twain.StateSourceOpen
	case dat == twain.DATIdentity, dat == twain.DATEntryPoint:
		min = twain.StateOpen
	default:
		return nil
	}
	if s.state < min {
		return &twain.CondError{RC: twain.RCFailure, Code: twain.CCSeqError,
			Msg: dat.String() + " requires " + min.String() + ", session is in " + s.state.String()}
	}
	return nil
}

func badPayload(err error) error {
	return &twain.CondError{RC: twain.RCFailure, Code: twain.CCBadValue, Msg: "payload: " + err.Error()}
}
