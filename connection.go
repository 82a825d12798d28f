package janusproxy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"golang.org/x/exp/slices"
)

const (
	KindDetached = "detached"

	internalTransactionPrefix = "proxy-"
	cleanupTimeout            = 10 * time.Second
)

type ConnectionOptions struct {
	Deps               PluginDeps
	TransactionTimeout time.Duration
	SessionData        string
	RemoteAddr         string
	Extensions         []IConnectionExtension
	// OnClose runs once after the connection is torn down.
	OnClose func(*Connection)
}

type inbound struct {
	message Message
	err     error
}

// Connection relays one client websocket to its own gateway websocket. Messages from
// both sides are handled one at a time on the goroutine running Run, so plugin code
// for a connection never runs concurrently with itself.
type Connection struct {
	id           string
	context      context.Context
	cancel       context.CancelFunc
	client       Transport
	backend      Transport
	transactions *Transactions
	meta         *Metadata
	deps         PluginDeps
	extensions   []IConnectionExtension
	onClose      func(*Connection)
	sessionID    atomic.Uint64
	mu           sync.RWMutex
	plugins      map[uint64]Plugin
	closeOnce    sync.Once
	closed       atomic.Bool
}

func NewConnection(ctx context.Context, id string, client, backend Transport, opts ConnectionOptions) *Connection {
	localCtx, cancel := context.WithCancel(ctx)

	c := &Connection{
		id:           id,
		context:      localCtx,
		cancel:       cancel,
		client:       client,
		backend:      backend,
		transactions: NewTransactions(opts.TransactionTimeout),
		meta:         NewMetadata(),
		deps:         opts.Deps,
		extensions:   opts.Extensions,
		onClose:      opts.OnClose,
		plugins:      make(map[uint64]Plugin),
	}

	if opts.SessionData != "" {
		c.meta.Set(MetaSessionData, opts.SessionData)
	}

	if opts.RemoteAddr != "" {
		c.meta.Set(MetaRemoteAddr, opts.RemoteAddr)
	}

	c.transactions.OnTimeout(func(transaction string) {
		glog.Warning("connection: ", c.id, " transaction ", transaction, ": ", ErrTransactionTimeout)
		for _, ext := range c.extensions {
			ext.OnTransactionTimeout(c, transaction)
		}

		// proxy-originated requests have no client waiting on them
		if !strings.HasPrefix(transaction, internalTransactionPrefix) {
			c.replyError(c.context, AsError(ErrTransactionTimeout, transaction))
		}
	})

	return c
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Context() context.Context {
	return c.context
}

func (c *Connection) Meta() *Metadata {
	return c.meta
}

func (c *Connection) Transactions() *Transactions {
	return c.transactions
}

func (c *Connection) SessionData() string {
	return c.meta.GetString(MetaSessionData)
}

func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

func (c *Connection) AddPlugin(plugin Plugin) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.plugins[plugin.ID()] = plugin
}

// Plugin returns the plugin attached as handle id, or nil.
func (c *Connection) Plugin(id uint64) Plugin {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.plugins[id]
}

// Plugins returns the attached plugins ordered by handle id.
func (c *Connection) Plugins() []Plugin {
	c.mu.RLock()
	plugins := make([]Plugin, 0, len(c.plugins))
	for _, plugin := range c.plugins {
		plugins = append(plugins, plugin)
	}
	c.mu.RUnlock()

	slices.SortFunc(plugins, func(a, b Plugin) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		default:
			return 0
		}
	})

	return plugins
}

// RemovePlugin detaches the plugin locally and runs its OnRemove. Unknown ids are
// ignored, so OnRemove runs at most once per plugin.
func (c *Connection) RemovePlugin(ctx context.Context, id uint64) {
	c.mu.Lock()
	plugin, ok := c.plugins[id]
	delete(c.plugins, id)
	c.mu.Unlock()

	if !ok {
		return
	}

	plugin.OnRemove(ctx)
}

// Detach asks the gateway to detach plugin's handle, then removes the plugin.
func (c *Connection) Detach(ctx context.Context, plugin Plugin) error {
	transaction := internalTransactionPrefix + GenerateUUID()

	err := c.transactions.Add(transaction, func(ctx context.Context, response Message) (Message, error) {
		if response.Janus() == KindError {
			glog.Warningf("connection: %s detach of handle %d rejected", c.id, plugin.ID())
		}
		return nil, nil
	})
	if err != nil {
		glog.Warning("connection: ", c.id, " cannot track detach: ", err)
	}

	sendErr := c.sendBackend(ctx, Message{
		"janus":       KindDetach,
		"session_id":  c.sessionID.Load(),
		"handle_id":   plugin.ID(),
		"transaction": transaction,
	})

	c.RemovePlugin(ctx, plugin.ID())

	if sendErr != nil {
		return fmt.Errorf("connection: detach handle %d: %w", plugin.ID(), sendErr)
	}

	return nil
}

// Run relays messages until either side goes away or the connection is closed.
func (c *Connection) Run() {
	defer c.Close()

	clientIn := make(chan inbound)
	backendIn := make(chan inbound)

	go c.read(c.client, clientIn)
	go c.read(c.backend, backendIn)

	for {
		select {
		case <-c.context.Done():
			return
		case in, ok := <-clientIn:
			if !ok {
				return
			}
			if in.err != nil {
				c.replyError(c.context, NewError(in.err.Error(), CodeInvalidJSON, ""))
				continue
			}
			c.handleClientMessage(c.context, in.message)
		case in, ok := <-backendIn:
			if !ok {
				return
			}
			if in.err != nil {
				glog.Warning("connection: ", c.id, " invalid gateway message: ", in.err)
				continue
			}
			c.handleBackendMessage(c.context, in.message)
		}
	}
}

func (c *Connection) read(t Transport, out chan<- inbound) {
	defer close(out)

	for {
		message, err := t.Receive(c.context)
		if err != nil && !errors.Is(err, ErrDecodingMessage) {
			if !c.IsClosed() {
				glog.Info("connection: ", c.id, " receive: ", err)
			}
			return
		}

		select {
		case out <- inbound{message: message, err: err}:
		case <-c.context.Done():
			return
		}
	}
}

func (c *Connection) handleClientMessage(ctx context.Context, message Message) {
	if sessionID := message.SessionID(); sessionID != 0 {
		c.sessionID.Store(sessionID)
	}

	if message.Janus() == KindAttach {
		if err := c.trackAttach(message); err != nil {
			c.replyError(ctx, AsError(err, message.Transaction()))
			return
		}
	}

	var plugin Plugin
	if handleID := message.HandleID(); handleID != 0 {
		plugin = c.Plugin(handleID)
	}

	if plugin != nil {
		if !plugin.IsAllowedMessage(message) {
			c.replyError(ctx, NewError(fmt.Sprintf("Message not allowed for %s", plugin.Type()), CodeUnauthorized, message.Transaction()))
			return
		}

		if _, err := plugin.ProcessMessage(ctx, message); err != nil {
			c.replyError(ctx, AsError(err, message.Transaction()))
			return
		}
	}

	if c.IsClosed() {
		return
	}

	if err := c.sendBackend(ctx, message); err != nil {
		glog.Warning("connection: ", c.id, " forward to gateway: ", err)
	}

	if plugin != nil && message.Janus() == KindDetach {
		c.RemovePlugin(ctx, plugin.ID())
	}
}

// trackAttach instantiates the plugin once the gateway confirms the attach.
func (c *Connection) trackAttach(message Message) error {
	pluginType, _ := message["plugin"].(string)

	return c.transactions.Add(message.Transaction(), func(ctx context.Context, response Message) (Message, error) {
		if response.Janus() != KindSuccess {
			return nil, nil
		}

		id := idValue(response.Data()["id"])
		if id == 0 {
			return nil, nil
		}

		c.AddPlugin(NewPlugin(id, pluginType, c, c.deps))
		glog.Infof("connection: %s attached %s handle %d", c.id, pluginType, id)

		return nil, nil
	})
}

func (c *Connection) handleBackendMessage(ctx context.Context, message Message) {
	transaction := message.Transaction()

	if message.Janus() != KindAck && transaction != "" {
		result, handled, err := c.transactions.Execute(ctx, message)
		if handled {
			if strings.HasPrefix(transaction, internalTransactionPrefix) {
				return
			}

			if err != nil {
				c.replyError(ctx, AsError(err, transaction))
				return
			}

			if result == nil {
				result = message
			}

			c.relay(ctx, result)
			return
		}
	}

	if sender := message.Sender(); sender != 0 {
		if plugin := c.Plugin(sender); plugin != nil {
			if _, err := plugin.ProcessMessage(ctx, message); err != nil {
				c.replyError(ctx, AsError(err, transaction))
				return
			}

			if message.Janus() == KindDetached {
				c.RemovePlugin(ctx, sender)
			}
		}
	}

	c.relay(ctx, message)
}

func (c *Connection) relay(ctx context.Context, message Message) {
	if c.IsClosed() {
		return
	}

	if err := c.sendClient(ctx, message); err != nil {
		glog.Warning("connection: ", c.id, " forward to client: ", err)
	}
}

func (c *Connection) replyError(ctx context.Context, err *Error) {
	glog.Info("connection: ", c.id, " replying ", err)

	for _, ext := range c.extensions {
		ext.OnErrorReply(c, err)
	}

	if sendErr := c.sendClient(ctx, err.Reply()); sendErr != nil {
		glog.Warning("connection: ", c.id, " cannot send error reply: ", sendErr)
	}
}

func (c *Connection) sendClient(ctx context.Context, message Message) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	return c.client.Send(ctx, message)
}

func (c *Connection) sendBackend(ctx context.Context, message Message) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	return c.backend.Send(ctx, message)
}

// Close removes every plugin and closes both transports. Only the first call has an
// effect.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()

		c.mu.Lock()
		plugins := make([]Plugin, 0, len(c.plugins))
		for id, plugin := range c.plugins {
			plugins = append(plugins, plugin)
			delete(c.plugins, id)
		}
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()

		for _, plugin := range plugins {
			plugin.OnRemove(ctx)
		}

		c.transactions.Close()

		if err := c.client.Close(); err != nil {
			glog.Warning("connection: ", c.id, " close client: ", err)
		}

		if err := c.backend.Close(); err != nil {
			glog.Warning("connection: ", c.id, " close gateway: ", err)
		}

		glog.Info("connection: ", c.id, " closed")

		if c.onClose != nil {
			c.onClose(c)
		}
	})

	return nil
}
