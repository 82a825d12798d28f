package janusproxy

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
)

const (
	TypeAudio = "janus.plugin.cm.audioroom"
	TypeVideo = "janus.plugin.streaming"
)

// Plugin handles gateway messages for one attached plugin handle.
type Plugin interface {
	ID() uint64
	Type() string
	// ProcessMessage inspects a message flowing through the handle. A nil message
	// means the plugin has nothing to add and the original is relayed.
	ProcessMessage(ctx context.Context, message Message) (Message, error)
	// IsAllowedMessage gates client requests before they reach ProcessMessage.
	IsAllowedMessage(message Message) bool
	// OnRemove is called once when the handle is detached.
	OnRemove(ctx context.Context)
}

// Conn is what plugins need from the connection that owns them.
type Conn interface {
	Transactions() *Transactions
	Close() error
	RemovePlugin(ctx context.Context, id uint64)
	// Detach asks the gateway to detach the plugin's handle and removes the plugin.
	Detach(ctx context.Context, plugin Plugin) error
	SessionData() string
}

// MediaAPI is the external media-control service streams are published to and
// subscribed from.
type MediaAPI interface {
	Publish(ctx context.Context, channelName, streamID string, start time.Time, sessionData string) error
	Subscribe(ctx context.Context, channelName, streamID string, start time.Time, sessionData string) error
	RemoveStream(ctx context.Context, channelName, streamID string) error
}

type PluginDeps struct {
	Registry *Registry
	API      MediaAPI
}

// NewPlugin builds the plugin variant for pluginType. Unknown types get the pass-through
// default.
func NewPlugin(id uint64, pluginType string, conn Conn, deps PluginDeps) Plugin {
	base := newBasePlugin(id, pluginType, conn, deps)

	switch pluginType {
	case TypeAudio:
		return newAudioPlugin(base)
	case TypeVideo:
		return newVideoPlugin(base)
	default:
		return base
	}
}

type basePlugin struct {
	id       uint64
	typ      string
	conn     Conn
	registry *Registry
	api      MediaAPI
}

func newBasePlugin(id uint64, pluginType string, conn Conn, deps PluginDeps) *basePlugin {
	return &basePlugin{
		id:       id,
		typ:      pluginType,
		conn:     conn,
		registry: deps.Registry,
		api:      deps.API,
	}
}

func (p *basePlugin) ID() uint64 {
	return p.id
}

func (p *basePlugin) Type() string {
	return p.typ
}

func (p *basePlugin) ProcessMessage(ctx context.Context, message Message) (Message, error) {
	return message, nil
}

func (p *basePlugin) IsAllowedMessage(message Message) bool {
	return message.Janus() != ""
}

func (p *basePlugin) OnRemove(ctx context.Context) {
	glog.Info("plugin: removed ", p)
}

func (p *basePlugin) String() string {
	return fmt.Sprintf("plugin %s (%d)", p.typ, p.id)
}
