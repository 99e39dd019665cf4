package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/twainkit/twainkit/internal/driver"
	"github.com/twainkit/twainkit/internal/twain"
)

func newDispatchSession(t *testing.T) (*Session, *recordingEntry) {
	t.Helper()
	rec := &recordingEntry{Entry: driver.NewSimulator(grayPage(64, 64))}
	s, err := NewSession(rec, Config{Log: quietLog()})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, rec
}

func TestSendRejectsUnknownTokensBeforeDriver(t *testing.T) {
	s, rec := newDispatchSession(t)
	before := len(rec.calls)

	for _, tokens := range [][3]string{
		{"DG_BOGUS", "DAT_STATUS", "MSG_GET"},
		{"DG_CONTROL", "DAT_NOPE", "MSG_GET"},
		{"DG_CONTROL", "DAT_STATUS", "MSG_FROB"},
	} {
		rc, _, err := s.Send(tokens[0], tokens[1], tokens[2], "")
		require.Equal(t, twain.RCFailure, rc)
		var ce *twain.CondError
		require.ErrorAs(t, err, &ce)
		require.Equal(t, twain.CCBadValue, ce.Code)
	}
	require.Equal(t, before, len(rec.calls))
}

func TestSendEnforcesSequence(t *testing.T) {
	s, rec := newDispatchSession(t)
	before := len(rec.calls)

	// Image operations need a ready image; the session is barely open.
	_, _, err := s.Send("DG_IMAGE", "DAT_IMAGEINFO", "MSG_GET", "")
	var ce *twain.CondError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, twain.CCSeqError, ce.Code)

	_, _, err = s.Send("DG_CONTROL", "DAT_CAPABILITY", "MSG_GETCURRENT", "ICAP_XFERMECH")
	require.ErrorAs(t, err, &ce)
	require.Equal(t, twain.CCSeqError, ce.Code)

	require.Equal(t, before, len(rec.calls))
}

func TestSendIdentityAndOpen(t *testing.T) {
	s, _ := newDispatchSession(t)

	rc, out, err := s.Send("DG_CONTROL", "DAT_IDENTITY", "MSG_GETDEFAULT", "")
	require.NoError(t, err)
	require.Equal(t, twain.RCSuccess, rc)
	require.Contains(t, out, "TwainKit Simulator")

	rc, out, err = s.Send("DG_CONTROL", "DAT_IDENTITY", "MSG_OPENDS", out)
	require.NoError(t, err)
	require.Equal(t, twain.RCSuccess, rc)
	require.Contains(t, out, "TwainKit Simulator")
	require.Equal(t, twain.StateSourceOpen, s.State())
}

func TestSendCapabilityRoundTrip(t *testing.T) {
	s, _ := newDispatchSession(t)
	require.NoError(t, s.OpenDefaultSource())

	rc, out, err := s.Send("DG_CONTROL", "DAT_CAPABILITY", "MSG_GETCURRENT", "ICAP_XFERMECH")
	require.NoError(t, err)
	require.Equal(t, twain.RCSuccess, rc)
	require.Equal(t, "ICAP_XFERMECH,TWON_ONEVALUE,4,0", out)

	_, _, err = s.Send("DG_CONTROL", "DAT_CAPABILITY", "MSG_SET", "ICAP_XFERMECH,TWON_ONEVALUE,4,2")
	require.NoError(t, err)

	_, out, err = s.Send("DG_CONTROL", "DAT_CAPABILITY", "MSG_GETCURRENT", "ICAP_XFERMECH")
	require.NoError(t, err)
	require.Equal(t, "ICAP_XFERMECH,TWON_ONEVALUE,4,2", out)
}

func TestSendHexTokens(t *testing.T) {
	s, _ := newDispatchSession(t)
	require.NoError(t, s.OpenDefaultSource())

	// 0x0001/0x0001/0x0002 is DG_CONTROL/DAT_CAPABILITY/MSG_GETCURRENT.
	rc, out, err := s.Send("0x0001", "0x0001", "0x0002", "ICAP_PIXELTYPE")
	require.NoError(t, err)
	require.Equal(t, twain.RCSuccess, rc)
	require.Contains(t, out, "ICAP_PIXELTYPE")
}

func TestSendCapabilityFailureCarriesCondition(t *testing.T) {
	s, _ := newDispatchSession(t)
	require.NoError(t, s.OpenDefaultSource())

	rc, _, err := s.Send("DG_CONTROL", "DAT_CAPABILITY", "MSG_GETCURRENT", "CAP_AUTOFEED")
	require.Equal(t, twain.RCFailure, rc)
	var ce *twain.CondError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, twain.CCCapUnsupported, ce.Code)
}

func TestSendStatus(t *testing.T) {
	s, _ := newDispatchSession(t)

	rc, out, err := s.Send("DG_CONTROL", "DAT_STATUS", "MSG_GET", "")
	require.NoError(t, err)
	require.Equal(t, twain.RCSuccess, rc)
	require.Equal(t, "TWCC_SUCCESS", out)
}
