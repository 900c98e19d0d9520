package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("ocr engine pool closed")

// Factory creates one engine instance.
type Factory func() (Engine, error)

// Pool hands out engines that are not safe for concurrent use, one caller at
// a time. It implements Engine itself, so callers do not need to know whether
// they share a reentrant engine or check instances out of a pool.
type Pool struct {
	idle chan Engine
	all  []Engine
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewPool creates size engines with factory.
func NewPool(size int, factory Factory) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	if factory == nil {
		return nil, errors.New("nil engine factory")
	}
	p := &Pool{idle: make(chan Engine, size), done: make(chan struct{})}
	for i := range size {
		e, err := factory()
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("create engine %d/%d: %w", i+1, size, err)
		}
		p.all = append(p.all, e)
		p.idle <- e
	}
	return p, nil
}

// Size returns the number of engines in the pool.
func (p *Pool) Size() int { return len(p.all) }

// Name reports the name of the pooled engines.
func (p *Pool) Name() string {
	if len(p.all) == 0 {
		return "pool"
	}
	return EngineName(p.all[0])
}

func (p *Pool) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Acquire checks an engine out, blocking until one is idle, the pool is
// closed or ctx is done. A closed engine is never handed out.
func (p *Pool) Acquire(ctx context.Context) (Engine, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	select {
	case e := <-p.idle:
		if p.isClosed() {
			return nil, ErrPoolClosed
		}
		return e, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns an engine obtained from Acquire. Engines released after
// Close are dropped.
func (p *Pool) Release(e Engine) {
	if e == nil || p.isClosed() {
		return
	}
	select {
	case p.idle <- e:
	default:
	}
}

// Recognize runs one recognition on a checked-out engine.
func (p *Pool) Recognize(ctx context.Context, img image.Image) (Result, error) {
	e, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(e)
	return e.Recognize(ctx, img)
}

// Close closes every engine. Further Acquire calls fail with ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	var errs []error
	for _, e := range p.all {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
