package janusproxy

import (
	"context"
	"sync"

	"golang.org/x/net/websocket"
)

// JanusProtocol is the websocket subprotocol spoken by the gateway and its clients.
const JanusProtocol = "janus-protocol"

// Transport carries whole gateway messages in both directions.
type Transport interface {
	Receive(ctx context.Context) (Message, error)
	Send(ctx context.Context, message Message) error
	Close() error
}

// Dialer opens a transport to the gateway.
type Dialer func(ctx context.Context) (Transport, error)

type websocketTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewWebsocketTransport wraps an open websocket.
func NewWebsocketTransport(conn *websocket.Conn) Transport {
	return &websocketTransport{conn: conn}
}

// WebsocketDialer dials the gateway websocket at url with the janus subprotocol.
func WebsocketDialer(url, origin string) Dialer {
	return func(ctx context.Context) (Transport, error) {
		config, err := websocket.NewConfig(url, origin)
		if err != nil {
			return nil, err
		}
		config.Protocol = []string{JanusProtocol}

		conn, err := config.DialContext(ctx)
		if err != nil {
			return nil, err
		}

		return NewWebsocketTransport(conn), nil
	}
}

func (t *websocketTransport) Receive(ctx context.Context) (Message, error) {
	var data []byte
	if err := websocket.Message.Receive(t.conn, &data); err != nil {
		return nil, err
	}

	return DecodeMessage(data)
}

func (t *websocketTransport) Send(ctx context.Context, message Message) error {
	data, err := message.Encode()
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	return websocket.Message.Send(t.conn, string(data))
}

func (t *websocketTransport) Close() error {
	return t.conn.Close()
}
