package janusproxy

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/require"
)

var errFakeAPI = errors.New("fake api failure")

type fakeAPI struct {
	mu           sync.Mutex
	publishErr   error
	subscribeErr error
	removeErr    error
	published    []string
	subscribed   []string
	removed      []string
	sessionData  []string
}

func (a *fakeAPI) Publish(ctx context.Context, channelName, streamID string, start time.Time, sessionData string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.published = append(a.published, streamID)
	a.sessionData = append(a.sessionData, sessionData)

	return a.publishErr
}

func (a *fakeAPI) Subscribe(ctx context.Context, channelName, streamID string, start time.Time, sessionData string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.subscribed = append(a.subscribed, streamID)
	a.sessionData = append(a.sessionData, sessionData)

	return a.subscribeErr
}

func (a *fakeAPI) RemoveStream(ctx context.Context, channelName, streamID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.removed = append(a.removed, streamID)

	return a.removeErr
}

func (a *fakeAPI) Removed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]string(nil), a.removed...)
}

// fakeConn stands in for Connection when plugins are tested on their own.
type fakeConn struct {
	mu           sync.Mutex
	transactions *Transactions
	plugins      map[uint64]Plugin
	sessionData  string
	closed       int
	removed      []uint64
	detached     []uint64
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		transactions: NewTransactions(0),
		plugins:      make(map[uint64]Plugin),
		sessionData:  "session-data",
	}
}

func (c *fakeConn) attach(plugin Plugin) Plugin {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.plugins[plugin.ID()] = plugin

	return plugin
}

func (c *fakeConn) Transactions() *Transactions {
	return c.transactions
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed++

	return nil
}

func (c *fakeConn) RemovePlugin(ctx context.Context, id uint64) {
	c.mu.Lock()
	plugin, ok := c.plugins[id]
	delete(c.plugins, id)
	c.removed = append(c.removed, id)
	c.mu.Unlock()

	if ok {
		plugin.OnRemove(ctx)
	}
}

func (c *fakeConn) Detach(ctx context.Context, plugin Plugin) error {
	c.mu.Lock()
	c.detached = append(c.detached, plugin.ID())
	c.mu.Unlock()

	c.RemovePlugin(ctx, plugin.ID())

	return nil
}

func (c *fakeConn) SessionData() string {
	return c.sessionData
}

func (c *fakeConn) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func newTestDeps(api MediaAPI) PluginDeps {
	return PluginDeps{
		Registry: NewRegistry(),
		API:      api,
	}
}

// fakeTransport is one side of a connection; tests push into in and read from out.
type fakeTransport struct {
	in        chan inbound
	out       chan Message
	done      chan struct{}
	closeOnce sync.Once
	log       logging.LeveledLogger
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:   make(chan inbound),
		out:  make(chan Message, 64),
		done: make(chan struct{}),
		log:  TestLogger,
	}
}

func (t *fakeTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case in := <-t.in:
		return in.message, in.err
	case <-t.done:
		return nil, io.EOF
	}
}

func (t *fakeTransport) Send(ctx context.Context, message Message) error {
	select {
	case <-t.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case t.out <- message:
		t.log.Tracef("fake transport sent %v", message)
		return nil
	case <-t.done:
		return ErrConnectionClosed
	}
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() {
		t.log.Debugf("fake transport closed")
		close(t.done)
	})

	return nil
}

func (t *fakeTransport) push(tb testing.TB, message Message) {
	tb.Helper()

	t.pushInbound(tb, inbound{message: message})
}

// pushErr makes the next Receive fail with err.
func (t *fakeTransport) pushErr(tb testing.TB, err error) {
	tb.Helper()

	t.pushInbound(tb, inbound{err: err})
}

func (t *fakeTransport) pushInbound(tb testing.TB, in inbound) {
	tb.Helper()

	select {
	case t.in <- in:
	case <-time.After(5 * time.Second):
		tb.Fatal("timeout pushing message")
	}
}

func (t *fakeTransport) next(tb testing.TB) Message {
	tb.Helper()

	select {
	case m := <-t.out:
		return m
	case <-time.After(5 * time.Second):
		tb.Fatal("timeout waiting for message")
		return nil
	}
}

func (t *fakeTransport) isClosed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func requireEventually(t *testing.T, condition func() bool, msg string) {
	t.Helper()

	require.Eventually(t, condition, 5*time.Second, 10*time.Millisecond, msg)
}

func messageRequest(transaction, request string, body map[string]interface{}) Message {
	b := map[string]interface{}{"request": request}
	for k, v := range body {
		b[k] = v
	}

	return Message{
		"janus":       KindMessage,
		"transaction": transaction,
		"body":        b,
	}
}

func pluginResponse(kind, transaction string, data map[string]interface{}) Message {
	m := Message{
		"janus": kind,
		"plugindata": map[string]interface{}{
			"plugin": TypeAudio,
			"data":   data,
		},
	}

	if transaction != "" {
		m["transaction"] = transaction
	}

	return m
}
