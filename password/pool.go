package password

import (
	"context"
	"runtime"
)

// Pool serializes access to a Hasher through a counting semaphore so at most
// size hash computations run concurrently. Acquisition respects context
// cancellation: a caller that gives up while queued never occupies a slot.
type Pool struct {
	hasher *Hasher
	slots  chan struct{}
}

// NewPool wraps hasher with a concurrency cap. size <= 0 means GOMAXPROCS.
func NewPool(hasher *Hasher, size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}

	return &Pool{
		hasher: hasher,
		slots:  make(chan struct{}, size),
	}
}

// Hash computes the salted digest of secret within the pool's budget.
func (p *Pool) Hash(ctx context.Context, secret string) (string, error) {
	if err := p.acquire(ctx); err != nil {
		return "", err
	}
	defer p.release()

	return p.hasher.Hash(secret)
}

// Verify checks secret against digest within the pool's budget.
func (p *Pool) Verify(ctx context.Context, secret, digest string) (bool, error) {
	if err := p.acquire(ctx); err != nil {
		return false, err
	}
	defer p.release()

	return p.hasher.Verify(secret, digest)
}

func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release() {
	<-p.slots
}
