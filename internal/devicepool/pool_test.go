package devicepool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquireRelease_Exclusivity(t *testing.T) {
	tokens := []Token{0, 1, 2}
	p := New(tokens)

	// One flag per token; CAS failing means two concurrent holders saw
	// the same token.
	holders := make(map[Token]*int32, len(tokens))
	for _, tok := range tokens {
		holders[tok] = new(int32)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				tok, err := p.Acquire(context.Background())
				if err != nil {
					t.Errorf("Acquire: %v", err)
					return
				}
				if !atomic.CompareAndSwapInt32(holders[tok], 0, 1) {
					t.Errorf("token %d held by two goroutines at once", tok)
					return
				}
				time.Sleep(time.Microsecond)
				atomic.StoreInt32(holders[tok], 0)
				p.Release(tok)
			}
		}()
	}
	wg.Wait()

	if p.Available() != len(tokens) {
		t.Fatalf("pool leaked: %d of %d tokens available", p.Available(), len(tokens))
	}
}

func TestAcquire_BlocksUntilRelease(t *testing.T) {
	p := New([]Token{7})

	tok, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan Token)
	go func() {
		tok2, err := p.Acquire(context.Background())
		if err != nil {
			t.Errorf("second Acquire: %v", err)
			return
		}
		acquired <- tok2
	}()

	select {
	case tok2 := <-acquired:
		t.Fatalf("second Acquire returned %d while token was held", tok2)
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(tok)

	select {
	case tok2 := <-acquired:
		if tok2 != 7 {
			t.Fatalf("got token %d, want 7", tok2)
		}
	case <-time.After(time.Second):
		t.Fatal("second Acquire still blocked after release")
	}
	p.Release(7)
}

func TestAcquire_ContextCanceled(t *testing.T) {
	p := New([]Token{0})
	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got err %v, want deadline exceeded", err)
	}
}

func TestRelease_NotHeldPanics(t *testing.T) {
	p := New([]Token{0, 1})

	defer func() {
		if recover() == nil {
			t.Fatal("Release of unheld token did not panic")
		}
	}()
	p.Release(1)
}

func TestRelease_UnknownTokenPanics(t *testing.T) {
	p := New([]Token{0})

	defer func() {
		if recover() == nil {
			t.Fatal("Release of unknown token did not panic")
		}
	}()
	p.Release(42)
}

func TestLeakFreedom_UnderFaultInjection(t *testing.T) {
	p := New([]Token{0, 1})

	session := func(fail bool) (err error) {
		tok, err := p.Acquire(context.Background())
		if err != nil {
			return err
		}
		defer p.Release(tok)

		if fail {
			return fmt.Errorf("injected session failure on device %d", tok)
		}
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = session(i%3 == 0)
		}()
	}
	wg.Wait()

	if p.Available() != 2 {
		t.Fatalf("pool leaked under faults: %d of 2 tokens available", p.Available())
	}
}
