package janusproxy

type IRegistryExtension interface {
	// called after a channel is effectively added, never for an idempotent re-add
	OnChannelAdded(registry *Registry, channel *Channel)
	OnChannelRemoved(registry *Registry, channel *Channel)
	OnStreamAdded(registry *Registry, stream *Stream)
	OnStreamRemoved(registry *Registry, stream *Stream)
}

type IConnectionExtension interface {
	OnConnectionOpened(proxy *Proxy, conn *Connection)
	OnConnectionClosed(proxy *Proxy, conn *Connection)
	// a pending transaction expired before the gateway answered it
	OnTransactionTimeout(conn *Connection, transaction string)
	// an error reply was synthesized by the proxy and sent to the client
	OnErrorReply(conn *Connection, err *Error)
}
