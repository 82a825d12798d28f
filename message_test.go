package janusproxy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	t.Parallel()

	m, err := DecodeMessage([]byte(`{"janus":"message","transaction":"t1","session_id":123,"handle_id":456,"body":{"request":"create","id":1234,"channel_data":{"a":1}}}`))
	require.NoError(t, err)

	require.Equal(t, KindMessage, m.Janus())
	require.Equal(t, "t1", m.Transaction())
	require.Equal(t, "create", m.Request())
	require.Equal(t, uint64(123), m.SessionID())
	require.Equal(t, uint64(456), m.HandleID())
	require.Equal(t, "1234", m.BodyString("id"))
	require.Equal(t, map[string]interface{}{"a": float64(1)}, m.BodyValue("channel_data"))
	require.Zero(t, m.Sender())

	_, err = DecodeMessage([]byte(`not json`))
	require.ErrorIs(t, err, ErrDecodingMessage)

	_, err = DecodeMessage([]byte(`null`))
	require.ErrorIs(t, err, ErrDecodingMessage)
}

func TestMessageEncodeKeepsFields(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"body":{"channel_data":"cfg","id":"room1","request":"create"},"janus":"message","transaction":"t1"}`)
	m, err := DecodeMessage(raw)
	require.NoError(t, err)

	encoded, err := m.Encode()
	require.NoError(t, err)
	require.JSONEq(t, string(raw), string(encoded))
}

func TestMessageIsSuccess(t *testing.T) {
	t.Parallel()

	require.True(t, Message{"janus": KindSuccess}.IsSuccess())
	require.True(t, pluginResponse(KindEvent, "t1", map[string]interface{}{"audioroom": "joined"}).IsSuccess())
	require.False(t, pluginResponse(KindEvent, "t1", map[string]interface{}{"audioroom": "event", "error_code": float64(485), "error": "No such room"}).IsSuccess())
	require.False(t, Message{"janus": KindEvent}.IsSuccess())

	// synchronous plugin answers report failures inside plugindata
	require.True(t, pluginResponse(KindSuccess, "t1", map[string]interface{}{"audioroom": "created"}).IsSuccess())
	require.False(t, pluginResponse(KindSuccess, "t1", map[string]interface{}{"audioroom": "event", "error_code": float64(486), "error": "Room exists"}).IsSuccess())
	require.False(t, pluginResponse(KindSuccess, "t1", map[string]interface{}{"error": "Missing element (id)"}).IsSuccess())

	require.False(t, Message{"janus": KindError}.IsSuccess())
	require.False(t, Message{"janus": KindAck}.IsSuccess())
}

func TestMessageAccessorsOnMissingFields(t *testing.T) {
	t.Parallel()

	m := Message{"janus": KindWebrtcUp, "sender": float64(99)}

	require.Nil(t, m.Body())
	require.Empty(t, m.Request())
	require.Empty(t, m.BodyString("id"))
	require.Nil(t, m.PluginData())
	require.Nil(t, m.Jsep())
	require.Equal(t, uint64(99), m.Sender())
	require.Zero(t, Message{"handle_id": float64(-1)}.HandleID())
}
