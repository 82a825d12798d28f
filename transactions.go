package janusproxy

import (
	"context"
	"sync"
	"time"
)

const DefaultTransactionTimeout = 30 * time.Second

// TransactionHandler consumes the gateway response to a transaction. The message it
// returns is relayed to the client in place of the response; nil relays the response.
type TransactionHandler func(ctx context.Context, response Message) (Message, error)

type pendingTransaction struct {
	handler TransactionHandler
	timer   *time.Timer
}

// Transactions correlates outgoing transaction ids with single-use response handlers.
// An entry is consumed exactly once, either by the first matching response or by its
// timeout.
type Transactions struct {
	mu        sync.Mutex
	pending   map[string]*pendingTransaction
	timeout   time.Duration
	closed    bool
	onTimeout func(transaction string)
}

// NewTransactions creates a correlator. A zero timeout keeps entries until they are
// answered or the correlator is closed.
func NewTransactions(timeout time.Duration) *Transactions {
	return &Transactions{
		mu:      sync.Mutex{},
		pending: make(map[string]*pendingTransaction),
		timeout: timeout,
	}
}

// OnTimeout sets the callback run after an entry expires.
func (t *Transactions) OnTimeout(f func(transaction string)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.onTimeout = f
}

func (t *Transactions) Add(transaction string, handler TransactionHandler) error {
	if transaction == "" {
		return ErrMissingTransaction
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransactionsClosed
	}

	if _, ok := t.pending[transaction]; ok {
		return ErrTransactionExists
	}

	entry := &pendingTransaction{handler: handler}
	if t.timeout > 0 {
		entry.timer = time.AfterFunc(t.timeout, func() {
			t.expire(transaction, entry)
		})
	}

	t.pending[transaction] = entry

	return nil
}

func (t *Transactions) expire(transaction string, entry *pendingTransaction) {
	t.mu.Lock()
	current, ok := t.pending[transaction]
	if !ok || current != entry {
		t.mu.Unlock()
		return
	}

	delete(t.pending, transaction)
	onTimeout := t.onTimeout
	t.mu.Unlock()

	if onTimeout != nil {
		onTimeout(transaction)
	}
}

// take removes and returns the handler for transaction.
func (t *Transactions) take(transaction string) (TransactionHandler, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.pending[transaction]
	if !ok {
		return nil, false
	}

	delete(t.pending, transaction)
	if entry.timer != nil {
		entry.timer.Stop()
	}

	return entry.handler, true
}

// Execute runs the handler registered for the response's transaction. It reports
// false when no handler was pending, in which case the response is untouched.
func (t *Transactions) Execute(ctx context.Context, response Message) (Message, bool, error) {
	handler, ok := t.take(response.Transaction())
	if !ok {
		return nil, false, nil
	}

	result, err := handler(ctx, response)
	if err != nil {
		return nil, true, err
	}

	return result, true, nil
}

func (t *Transactions) Has(transaction string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.pending[transaction]

	return ok
}

func (t *Transactions) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.pending)
}

// Close drops every pending entry without running it and rejects further additions.
func (t *Transactions) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, entry := range t.pending {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(t.pending, id)
	}

	t.closed = true
}
