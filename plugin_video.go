package janusproxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// videoPlugin tracks a publisher or a watcher of the streaming plugin. It talks to the
// media API directly instead of going through streamingPlugin.
type videoPlugin struct {
	*basePlugin
	mu     sync.Mutex
	stream *Stream
}

func newVideoPlugin(base *basePlugin) *videoPlugin {
	return &videoPlugin{basePlugin: base}
}

func (p *videoPlugin) Stream() *Stream {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stream
}

func (p *videoPlugin) setStream(stream *Stream) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stream = stream
}

func (p *videoPlugin) ProcessMessage(ctx context.Context, message Message) (Message, error) {
	switch message.Janus() {
	case KindMessage:
		switch message.Request() {
		case "create":
			return p.onCreate(ctx, message)
		case "watch":
			return p.onWatch(ctx, message)
		}
	case KindWebrtcUp:
		return p.onWebrtcup(ctx, message)
	case KindHangup, KindDetach:
		return p.onHangup(ctx, message)
	}

	return nil, nil
}

// onCreate publishes a stream once the gateway answers the create request. The answer
// is not checked for success.
func (p *videoPlugin) onCreate(ctx context.Context, message Message) (Message, error) {
	name := message.BodyString("id")

	err := p.conn.Transactions().Add(message.Transaction(), func(ctx context.Context, response Message) (Message, error) {
		stream := NewStream(NewChannel(name, nil), p, p.conn)
		stream.SetMedia(jsepMediaKinds(message))
		p.setStream(stream)

		if err := p.api.Publish(ctx, stream.ChannelName(), stream.ID, stream.Start, p.conn.SessionData()); err != nil {
			_ = p.conn.Close()
			return nil, &Error{
				Code:        CodeUnknown,
				Reason:      fmt.Sprintf("Cannot publish: %s error: %s", stream, err),
				Transaction: response.Transaction(),
				Err:         err,
			}
		}

		p.registry.AddStream(stream)
		glog.Info("plugin: adding ", stream)

		return nil, nil
	})
	if err != nil {
		return nil, AsError(err, message.Transaction())
	}

	return message, nil
}

func (p *videoPlugin) onWatch(ctx context.Context, message Message) (Message, error) {
	name := message.BodyString("id")

	err := p.conn.Transactions().Add(message.Transaction(), func(ctx context.Context, response Message) (Message, error) {
		stream := NewStream(NewChannel(name, nil), p, p.conn)
		stream.SetMedia(jsepMediaKinds(response))
		p.setStream(stream)

		return nil, nil
	})
	if err != nil {
		return nil, AsError(err, message.Transaction())
	}

	return message, nil
}

// onWebrtcup subscribes the watched stream. A failure closes the connection and is
// not reported to the client.
func (p *videoPlugin) onWebrtcup(ctx context.Context, message Message) (Message, error) {
	stream := p.Stream()
	if stream == nil {
		glog.Warning("plugin: webrtcup without stream on ", p)
		return nil, nil
	}

	if err := p.api.Subscribe(ctx, stream.ChannelName(), stream.ID, stream.Start, p.conn.SessionData()); err != nil {
		glog.Info("plugin: cannot subscribe: ", err)
		_ = p.conn.Close()
		return nil, nil
	}

	glog.Info("plugin: adding ", stream)
	p.registry.AddStream(stream)

	return nil, nil
}

func (p *videoPlugin) onHangup(ctx context.Context, message Message) (Message, error) {
	p.conn.RemovePlugin(ctx, p.id)
	_ = p.conn.Close()

	return message, nil
}

func (p *videoPlugin) OnRemove(ctx context.Context) {
	p.mu.Lock()
	stream := p.stream
	p.stream = nil
	p.mu.Unlock()

	// video channels are never registered, only the stream is dropped
	if stream != nil && p.registry.RemoveStream(stream) {
		if err := p.api.RemoveStream(ctx, stream.ChannelName(), stream.ID); err != nil {
			glog.Warning("plugin: cannot remove ", stream, " from media api: ", err)
		}
	}

	p.basePlugin.OnRemove(ctx)
}
