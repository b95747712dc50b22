package workspace

import (
	"context"
	"sync"
)

// Pending tracks one asynchronous operation. The stores already hold the
// outcome once Done is closed; Wait only reports it.
type Pending struct {
	key  string
	done chan struct{}
	once sync.Once
	err  error
}

func newPending(key string) *Pending {
	return &Pending{key: key, done: make(chan struct{})}
}

// resolved returns a Pending that is already finished with err.
func resolved(key string, err error) *Pending {
	p := newPending(key)
	p.finish(err)
	return p
}

// Key is the executor key the operation ran under, e.g. "chat:42".
func (p *Pending) Key() string { return p.key }

// Done is closed when the operation has been resolved into the stores.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the outcome. It is nil until Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the operation is resolved or ctx is done. Cancelling ctx
// does not cancel the operation.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pending) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// follow finishes p after next, reporting err first when set.
func (p *Pending) follow(next *Pending, err error) {
	go func() {
		<-next.Done()
		if err == nil {
			err = next.err
		}
		p.finish(err)
	}()
}
