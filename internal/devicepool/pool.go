package devicepool

import (
	"context"
	"fmt"
	"sync"
)

// Token identifies one exclusive compute device (a CUDA device ordinal).
type Token int

// Pool is a fixed set of device tokens handed out one holder at a time.
// Acquire blocks until a token frees up; the buffered channel gives an
// atomic hand-off, so two callers can never observe the same token as
// available simultaneously.
type Pool struct {
	free chan Token

	mu   sync.Mutex
	held map[Token]bool
}

// New builds a pool over the given device tokens. The token list is fixed
// for the lifetime of the pool.
func New(tokens []Token) *Pool {
	free := make(chan Token, len(tokens))
	held := make(map[Token]bool, len(tokens))
	for _, t := range tokens {
		free <- t
		held[t] = false
	}
	return &Pool{free: free, held: held}
}

// Acquire blocks until a device token is available or ctx is done. Waiting
// for a device is not an error condition; only cancellation surfaces one.
func (p *Pool) Acquire(ctx context.Context) (Token, error) {
	select {
	case t := <-p.free:
		p.mu.Lock()
		p.held[t] = true
		p.mu.Unlock()
		return t, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Release returns a token to the pool. Releasing a token that is not
// currently held is an internal invariant violation and panics: a double
// release means two holders could be handed the same device.
func (p *Pool) Release(t Token) {
	p.mu.Lock()
	holding, ok := p.held[t]
	if !ok || !holding {
		p.mu.Unlock()
		panic(fmt.Sprintf("devicepool: release of device %d that is not held", t))
	}
	p.held[t] = false
	p.mu.Unlock()

	p.free <- t
}

// Size returns the pool capacity.
func (p *Pool) Size() int {
	return cap(p.free)
}

// Available returns how many tokens are currently free.
func (p *Pool) Available() int {
	return len(p.free)
}
