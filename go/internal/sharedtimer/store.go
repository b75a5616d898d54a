package sharedtimer

import "context"

// Notification is one delivery from a store subscription. Data is nil when
// the key holds no record; Err is set when the feed itself failed.
type Notification struct {
	Data []byte
	Err  error
}

// Store is the remote key-value store holding the canonical timer. Writes
// are last-write-wins and every write, including the caller's own, comes
// back through Subscribe.
type Store interface {
	// Available reports whether the store can be used at all.
	Available() bool
	// Subscribe calls fn with the current value of key and then with every
	// change, until the subscription is closed or ctx is done.
	Subscribe(ctx context.Context, key string, fn func(Notification)) (Subscription, error)
	Write(ctx context.Context, key string, data []byte) error
}

type Subscription interface {
	Unsubscribe() error
}
