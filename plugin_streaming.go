package janusproxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// streamingPlugin adds a single stream to the default plugin: subscribed once media is
// up, removed together with its channel reference when the plugin goes away.
type streamingPlugin struct {
	*basePlugin
	mu     sync.Mutex
	stream *Stream
	// self is the outermost variant, handed to Detach so the connection removes the
	// plugin it actually holds.
	self Plugin
}

func newStreamingPlugin(base *basePlugin) *streamingPlugin {
	p := &streamingPlugin{basePlugin: base}
	p.self = p

	return p
}

func (p *streamingPlugin) Stream() *Stream {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stream
}

func (p *streamingPlugin) setStream(stream *Stream) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stream = stream
}

func (p *streamingPlugin) takeStream() *Stream {
	p.mu.Lock()
	defer p.mu.Unlock()

	stream := p.stream
	p.stream = nil

	return stream
}

func (p *streamingPlugin) ProcessMessage(ctx context.Context, message Message) (Message, error) {
	if message.Janus() == KindWebrtcUp {
		return p.subscribe(ctx, message)
	}

	if stream := p.Stream(); stream != nil {
		if kinds := jsepMediaKinds(message); kinds != nil {
			stream.SetMedia(kinds)
		}
	}

	return p.basePlugin.ProcessMessage(ctx, message)
}

// subscribe registers the current stream with the media API and then in Streams.
// On failure the handle is detached and a CodeUnknown error for the message's
// transaction is returned.
func (p *streamingPlugin) subscribe(ctx context.Context, message Message) (Message, error) {
	stream := p.Stream()
	if stream == nil {
		return nil, &Error{
			Code:        CodeUnknown,
			Reason:      fmt.Sprintf("Cannot subscribe: %s error: %s", p, ErrNoStream),
			Transaction: message.Transaction(),
			Err:         ErrNoStream,
		}
	}

	err := p.api.Subscribe(ctx, stream.ChannelName(), stream.ID, stream.Start, p.conn.SessionData())
	if err != nil {
		if detachErr := p.conn.Detach(ctx, p.self); detachErr != nil {
			glog.Warning("plugin: cannot detach ", p, ": ", detachErr)
		}

		return nil, &Error{
			Code:        CodeUnknown,
			Reason:      fmt.Sprintf("Cannot subscribe: %s error: %s", stream, err),
			Transaction: message.Transaction(),
			Err:         err,
		}
	}

	p.registry.AddStream(stream)
	glog.Info("plugin: storing ", stream, " for ", p)

	return message, nil
}

// removeStream drops the current stream from the media API and the registry, and the
// stream's channel when it was the last reference. No-op without a stream.
func (p *streamingPlugin) removeStream(ctx context.Context) {
	stream := p.takeStream()
	if stream == nil {
		return
	}

	if err := p.api.RemoveStream(ctx, stream.ChannelName(), stream.ID); err != nil {
		glog.Warning("plugin: cannot remove ", stream, " from media api: ", err)
	}

	p.registry.ReleaseStream(stream)
}

func (p *streamingPlugin) OnRemove(ctx context.Context) {
	p.removeStream(ctx)
	p.basePlugin.OnRemove(ctx)
}
