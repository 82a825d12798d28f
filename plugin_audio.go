package janusproxy

import (
	"context"

	"github.com/golang/glog"
	"golang.org/x/exp/slices"
)

// read-only audioroom requests that never change proxy state
var audioDisallowedRequests = []string{"list", "exists", "resetdecoder", "listparticipants"}

type audioPlugin struct {
	*streamingPlugin
}

func newAudioPlugin(base *basePlugin) *audioPlugin {
	p := &audioPlugin{streamingPlugin: newStreamingPlugin(base)}
	p.self = p

	return p
}

func (p *audioPlugin) ProcessMessage(ctx context.Context, message Message) (Message, error) {
	switch message.Janus() {
	case KindMessage:
		switch message.Request() {
		case "create":
			return p.onCreate(ctx, message)
		case "join":
			return p.onJoin(ctx, message)
		case "changeroom":
			return p.onChangeroom(ctx, message)
		}
	case KindEvent:
		if data := message.PluginData(); data != nil && data["audioroom"] == "destroyed" {
			return p.onDestroyed(ctx, message)
		}
	}

	return p.streamingPlugin.ProcessMessage(ctx, message)
}

func (p *audioPlugin) IsAllowedMessage(message Message) bool {
	if !p.streamingPlugin.IsAllowedMessage(message) {
		return false
	}

	isDisallowed := message.Janus() == KindMessage && slices.Contains(audioDisallowedRequests, message.Request())

	return !isDisallowed
}

func (p *audioPlugin) onCreate(ctx context.Context, message Message) (Message, error) {
	name, data := message.BodyString("id"), message.BodyValue("channel_data")

	err := p.conn.Transactions().Add(message.Transaction(), func(ctx context.Context, response Message) (Message, error) {
		if response.IsSuccess() {
			channel := NewChannel(name, data)
			if p.registry.AddChannel(channel) {
				glog.Info("plugin: added ", channel, " for ", p)
			}
		}

		return response, nil
	})
	if err != nil {
		return nil, AsError(err, message.Transaction())
	}

	return message, nil
}

func (p *audioPlugin) onJoin(ctx context.Context, message Message) (Message, error) {
	name, data := message.BodyString("id"), message.BodyValue("channel_data")

	err := p.conn.Transactions().Add(message.Transaction(), func(ctx context.Context, response Message) (Message, error) {
		if response.IsSuccess() && response.PluginData()["audioroom"] == "joined" {
			// a second join replaces the previous stream
			p.removeStream(ctx)

			channel := p.getChannel(name, data)
			stream := NewStream(channel, p, p.conn)
			p.setStream(stream)
			glog.Info("plugin: added ", stream, " for ", p)
		}

		return response, nil
	})
	if err != nil {
		return nil, AsError(err, message.Transaction())
	}

	return message, nil
}

// onChangeroom switches to the new room before the gateway confirms it; the new stream
// is subscribed once the gateway reports roomchanged.
func (p *audioPlugin) onChangeroom(ctx context.Context, message Message) (Message, error) {
	p.removeStream(ctx)

	channel := p.getChannel(message.BodyString("id"), message.BodyValue("channel_data"))
	stream := NewStream(channel, p, p.conn)
	p.setStream(stream)
	glog.Info("plugin: added ", stream, " for ", p)

	err := p.conn.Transactions().Add(message.Transaction(), func(ctx context.Context, response Message) (Message, error) {
		if response.IsSuccess() && response.PluginData()["audioroom"] == "roomchanged" {
			return p.subscribe(ctx, response)
		}

		return response, nil
	})
	if err != nil {
		return nil, AsError(err, message.Transaction())
	}

	return message, nil
}

func (p *audioPlugin) onDestroyed(ctx context.Context, message Message) (Message, error) {
	p.removeStream(ctx)

	return message, nil
}

func (p *audioPlugin) getChannel(name string, data interface{}) *Channel {
	return p.registry.ResolveChannel(name, data)
}
