package janusproxy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestVideoPlugin(t *testing.T, api *fakeAPI) (*videoPlugin, *fakeConn, PluginDeps) {
	t.Helper()

	conn := newFakeConn()
	deps := newTestDeps(api)
	plugin, ok := conn.attach(NewPlugin(7, TypeVideo, conn, deps)).(*videoPlugin)
	require.True(t, ok)

	return plugin, conn, deps
}

func videoCreate(transaction, name string) Message {
	m := messageRequest(transaction, "create", map[string]interface{}{"id": name})
	m["jsep"] = map[string]interface{}{"type": "offer", "sdp": testOffer}

	return m
}

func TestVideoCreatePublishes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := &fakeAPI{}
	plugin, conn, deps := newTestVideoPlugin(t, api)

	result, err := plugin.ProcessMessage(ctx, videoCreate("t1", "cam1"))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Nil(t, plugin.Stream())

	response := Message{"janus": KindSuccess, "transaction": "t1"}
	relayed, handled, err := conn.Transactions().Execute(ctx, response)
	require.NoError(t, err)
	require.True(t, handled)
	require.Nil(t, relayed)

	stream := plugin.Stream()
	require.NotNil(t, stream)
	require.Equal(t, "cam1", stream.ChannelName())
	require.Equal(t, []string{"audio", "video"}, stream.Media())
	require.True(t, deps.Registry.Streams.Has(stream.ID))
	require.Equal(t, 0, deps.Registry.Channels.Len(), "video channels are not registered")
	require.Equal(t, []string{stream.ID}, api.published)
	require.Equal(t, 0, conn.Closed())
}

func TestVideoCreatePublishFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	plugin, conn, deps := newTestVideoPlugin(t, &fakeAPI{publishErr: errFakeAPI})

	_, err := plugin.ProcessMessage(ctx, videoCreate("t1", "cam1"))
	require.NoError(t, err)

	_, handled, err := conn.Transactions().Execute(ctx, Message{"janus": KindSuccess, "transaction": "t1"})
	require.True(t, handled)

	var janusErr *Error
	require.ErrorAs(t, err, &janusErr)
	require.Equal(t, CodeUnknown, janusErr.Code)
	require.Equal(t, "t1", janusErr.Transaction)
	require.Contains(t, janusErr.Reason, "Cannot publish: ")
	require.ErrorIs(t, err, errFakeAPI)

	require.Equal(t, 1, conn.Closed())
	require.Equal(t, 0, deps.Registry.Streams.Len())
}

func TestVideoWatchThenWebrtcup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := &fakeAPI{}
	plugin, conn, deps := newTestVideoPlugin(t, api)

	_, err := plugin.ProcessMessage(ctx, messageRequest("t2", "watch", map[string]interface{}{"id": "cam1"}))
	require.NoError(t, err)

	answer := Message{
		"janus":       KindEvent,
		"transaction": "t2",
		"jsep":        map[string]interface{}{"type": "offer", "sdp": testOffer},
	}
	_, handled, err := conn.Transactions().Execute(ctx, answer)
	require.NoError(t, err)
	require.True(t, handled)

	stream := plugin.Stream()
	require.NotNil(t, stream)
	require.Equal(t, []string{"audio", "video"}, stream.Media())
	require.False(t, deps.Registry.Streams.Has(stream.ID))

	_, err = plugin.ProcessMessage(ctx, Message{"janus": KindWebrtcUp, "sender": float64(7)})
	require.NoError(t, err)
	require.True(t, deps.Registry.Streams.Has(stream.ID))
	require.Equal(t, []string{stream.ID}, api.subscribed)
	require.Equal(t, 0, conn.Closed())
}

func TestVideoWebrtcupSubscribeFailureClosesSilently(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	plugin, conn, deps := newTestVideoPlugin(t, &fakeAPI{subscribeErr: errFakeAPI})

	_, err := plugin.ProcessMessage(ctx, messageRequest("t2", "watch", map[string]interface{}{"id": "cam1"}))
	require.NoError(t, err)
	_, _, err = conn.Transactions().Execute(ctx, Message{"janus": KindEvent, "transaction": "t2"})
	require.NoError(t, err)

	result, err := plugin.ProcessMessage(ctx, Message{"janus": KindWebrtcUp})
	require.NoError(t, err)
	require.Nil(t, result)
	require.Equal(t, 1, conn.Closed())
	require.Equal(t, 0, deps.Registry.Streams.Len())
}

func TestVideoWebrtcupWithoutStream(t *testing.T) {
	t.Parallel()

	plugin, conn, deps := newTestVideoPlugin(t, &fakeAPI{})

	result, err := plugin.ProcessMessage(context.Background(), Message{"janus": KindWebrtcUp})
	require.NoError(t, err)
	require.Nil(t, result)
	require.Equal(t, 0, conn.Closed())
	require.Equal(t, 0, deps.Registry.Streams.Len())
}

func TestVideoHangupRemovesAndCloses(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{KindHangup, KindDetach} {
		kind := kind
		t.Run(kind, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			api := &fakeAPI{}
			plugin, conn, deps := newTestVideoPlugin(t, api)

			_, err := plugin.ProcessMessage(ctx, videoCreate("t1", "cam1"))
			require.NoError(t, err)
			_, _, err = conn.Transactions().Execute(ctx, Message{"janus": KindSuccess, "transaction": "t1"})
			require.NoError(t, err)

			stream := plugin.Stream()
			require.True(t, deps.Registry.Streams.Has(stream.ID))

			message := Message{"janus": kind, "sender": float64(7)}
			result, err := plugin.ProcessMessage(ctx, message)
			require.NoError(t, err)
			require.Equal(t, message, result)

			require.Equal(t, []uint64{7}, conn.removed)
			require.Equal(t, 1, conn.Closed())
			require.Nil(t, plugin.Stream())
			require.False(t, deps.Registry.Streams.Has(stream.ID))
			require.Equal(t, []string{stream.ID}, api.Removed())
		})
	}
}

func TestVideoOnRemoveSkipsUnregisteredStream(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := &fakeAPI{}
	plugin, conn, _ := newTestVideoPlugin(t, api)

	_, err := plugin.ProcessMessage(ctx, messageRequest("t2", "watch", map[string]interface{}{"id": "cam1"}))
	require.NoError(t, err)
	_, _, err = conn.Transactions().Execute(ctx, Message{"janus": KindEvent, "transaction": "t2"})
	require.NoError(t, err)
	require.NotNil(t, plugin.Stream())

	plugin.OnRemove(ctx)

	require.Nil(t, plugin.Stream())
	require.Empty(t, api.Removed())
}

func TestVideoOnRemoveKeepsAudioChannel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	plugin, conn, deps := newTestVideoPlugin(t, &fakeAPI{})

	// an audio room that happens to share the video stream's identity
	audioChannel := deps.Registry.ResolveChannel("cam1", nil)
	deps.Registry.AddStream(NewStream(audioChannel, nil, nil))

	_, err := plugin.ProcessMessage(ctx, videoCreate("t1", "cam1"))
	require.NoError(t, err)
	_, _, err = conn.Transactions().Execute(ctx, Message{"janus": KindSuccess, "transaction": "t1"})
	require.NoError(t, err)

	plugin.OnRemove(ctx)

	require.True(t, deps.Registry.Channels.Contains(audioChannel))
	require.Equal(t, 1, deps.Registry.Streams.Len())
}

func TestVideoIgnoresOtherMessages(t *testing.T) {
	t.Parallel()

	plugin, conn, _ := newTestVideoPlugin(t, &fakeAPI{})

	result, err := plugin.ProcessMessage(context.Background(), messageRequest("t1", "list", nil))
	require.NoError(t, err)
	require.Nil(t, result)
	require.Equal(t, 0, conn.Transactions().Len())
	require.True(t, plugin.IsAllowedMessage(messageRequest("t1", "list", nil)))
}
