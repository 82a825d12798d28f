package janusproxy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/exp/slices"
)

var (
	ErrConnectionNotFound = errors.New("proxy: connection not found")
	ErrNoDialer           = errors.New("proxy: no gateway dialer configured")
	ErrProxyClosed        = errors.New("proxy: closed")
)

type Options struct {
	// Dial opens the gateway side of every new client connection.
	Dial               Dialer
	API                MediaAPI
	TransactionTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		TransactionTimeout: DefaultTransactionTimeout,
	}
}

// Proxy owns the shared registries and every client connection.
type Proxy struct {
	context     context.Context
	cancel      context.CancelFunc
	name        string
	registry    *Registry
	options     Options
	mutex       sync.RWMutex
	connections map[string]*Connection
	extensions  []IConnectionExtension
}

func NewProxy(ctx context.Context, name string, options Options) *Proxy {
	localCtx, cancel := context.WithCancel(ctx)

	return &Proxy{
		context:     localCtx,
		cancel:      cancel,
		name:        name,
		registry:    NewRegistry(),
		options:     options,
		connections: make(map[string]*Connection),
		extensions:  make([]IConnectionExtension, 0),
	}
}

func (p *Proxy) Name() string {
	return p.name
}

func (p *Proxy) Registry() *Registry {
	return p.registry
}

func (p *Proxy) Context() context.Context {
	return p.context
}

// AddExtension registers extension for registry and/or connection events, depending on
// the interfaces it implements.
func (p *Proxy) AddExtension(extension interface{}) {
	if ext, ok := extension.(IRegistryExtension); ok {
		p.registry.AddExtension(ext)
	}

	if ext, ok := extension.(IConnectionExtension); ok {
		p.mutex.Lock()
		p.extensions = append(p.extensions, ext)
		p.mutex.Unlock()
	}
}

// HandleClient dials the gateway for client and relays between them until either side
// closes. It blocks for the lifetime of the connection.
func (p *Proxy) HandleClient(ctx context.Context, client Transport, sessionData, remoteAddr string) error {
	if p.context.Err() != nil {
		_ = client.Close()
		return ErrProxyClosed
	}

	if p.options.Dial == nil {
		_ = client.Close()
		return ErrNoDialer
	}

	backend, err := p.options.Dial(ctx)
	if err != nil {
		glog.Error("proxy: cannot dial gateway for ", remoteAddr, ": ", err)
		reply := NewError("Cannot connect to gateway", CodeUnknown, "").Reply()
		_ = client.Send(ctx, reply)
		_ = client.Close()
		return fmt.Errorf("proxy: dial gateway: %w", err)
	}

	conn := p.newConnection(client, backend, sessionData, remoteAddr)
	conn.Run()

	return nil
}

func (p *Proxy) newConnection(client, backend Transport, sessionData, remoteAddr string) *Connection {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	extensions := append([]IConnectionExtension(nil), p.extensions...)

	conn := NewConnection(p.context, GenerateConnectionID(), client, backend, ConnectionOptions{
		Deps: PluginDeps{
			Registry: p.registry,
			API:      p.options.API,
		},
		TransactionTimeout: p.options.TransactionTimeout,
		SessionData:        sessionData,
		RemoteAddr:         remoteAddr,
		Extensions:         extensions,
		OnClose:            p.onConnectionClosed,
	})

	p.connections[conn.ID()] = conn

	for _, ext := range extensions {
		ext.OnConnectionOpened(p, conn)
	}

	glog.Info("proxy: connection ", conn.ID(), " opened from ", remoteAddr)

	return conn
}

func (p *Proxy) onConnectionClosed(conn *Connection) {
	p.mutex.Lock()
	delete(p.connections, conn.ID())
	extensions := append([]IConnectionExtension(nil), p.extensions...)
	p.mutex.Unlock()

	for _, ext := range extensions {
		ext.OnConnectionClosed(p, conn)
	}

	glog.Info("proxy: connection ", conn.ID(), " closed")
}

func (p *Proxy) GetConnection(id string) (*Connection, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	conn, ok := p.connections[id]
	if !ok {
		return nil, ErrConnectionNotFound
	}

	return conn, nil
}

// Connections returns the open connections ordered by id.
func (p *Proxy) Connections() []*Connection {
	p.mutex.RLock()
	conns := make([]*Connection, 0, len(p.connections))
	for _, conn := range p.connections {
		conns = append(conns, conn)
	}
	p.mutex.RUnlock()

	slices.SortFunc(conns, func(a, b *Connection) int {
		return strings.Compare(a.ID(), b.ID())
	})

	return conns
}

func (p *Proxy) ConnectionsCount() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return len(p.connections)
}

// Close closes every connection and cancels the proxy context.
func (p *Proxy) Close() {
	defer p.cancel()

	for _, conn := range p.Connections() {
		_ = conn.Close()
	}
}
