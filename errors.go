package janusproxy

import "errors"

var (
	ErrChannelNotFound = errors.New("registry: channel not found")
	ErrStreamNotFound  = errors.New("registry: stream not found")
	ErrNoStream        = errors.New("plugin: no active stream")

	ErrTransactionExists  = errors.New("transactions: transaction already pending")
	ErrTransactionTimeout = errors.New("transactions: response timeout")
	ErrTransactionsClosed = errors.New("transactions: closed")
	ErrMissingTransaction = errors.New("transactions: missing transaction id")

	ErrConnectionClosed = errors.New("connection: closed")
	ErrDecodingMessage  = errors.New("error decoding message")
	ErrEncodingMessage  = errors.New("error encoding message")
)
