package ocr_test

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/crbook/internal/ocr"
	"github.com/MeKo-Tech/crbook/internal/ocr/ocrtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_Validation(t *testing.T) {
	_, err := ocr.NewPool(0, func() (ocr.Engine, error) { return ocrtest.New(), nil })
	assert.Error(t, err)

	_, err = ocr.NewPool(2, nil)
	assert.Error(t, err)
}

func TestNewPool_FactoryFailureClosesCreatedEngines(t *testing.T) {
	var created []*ocrtest.Engine
	factory := func() (ocr.Engine, error) {
		if len(created) == 2 {
			return nil, errors.New("model missing")
		}
		e := ocrtest.New()
		created = append(created, e)
		return e, nil
	}

	_, err := ocr.NewPool(3, factory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create engine 3/3")
	for _, e := range created {
		assert.True(t, e.Closed())
	}
}

func TestPool_OneCallerPerEngine(t *testing.T) {
	var active, peak atomic.Int32
	factory := func() (ocr.Engine, error) {
		e := ocrtest.New()
		e.OnRecognize = func(image.Rectangle) {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
		}
		return e, nil
	}
	pool, err := ocr.NewPool(2, factory)
	require.NoError(t, err)
	defer pool.Close()

	img := image.NewGray(image.Rect(0, 0, 4, 4))
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Recognize(context.Background(), img)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 2, pool.Size())
	assert.Equal(t, "fake", pool.Name())
}

func TestPool_AcquireHonoursContext(t *testing.T) {
	pool, err := ocr.NewPool(1, func() (ocr.Engine, error) { return ocrtest.New(), nil })
	require.NoError(t, err)
	defer pool.Close()

	e, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Release(e)
	again, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, e, again)
}

func TestPool_Close(t *testing.T) {
	engines := []*ocrtest.Engine{}
	pool, err := ocr.NewPool(2, func() (ocr.Engine, error) {
		e := ocrtest.New()
		engines = append(engines, e)
		return e, nil
	})
	require.NoError(t, err)

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())
	for _, e := range engines {
		assert.True(t, e.Closed())
	}

	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ocr.ErrPoolClosed)
}

func TestPool_CloseWhileWaiting(t *testing.T) {
	pool, err := ocr.NewPool(1, func() (ocr.Engine, error) { return ocrtest.New(), nil })
	require.NoError(t, err)

	e, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	got := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(context.Background())
		got <- err
	}()

	require.NoError(t, pool.Close())
	pool.Release(e)

	select {
	case err := <-got:
		assert.ErrorIs(t, err, ocr.ErrPoolClosed, "a closed engine must not be handed out")
	case <-time.After(time.Second):
		t.Fatal("waiter not released by Close")
	}

	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ocr.ErrPoolClosed)
}
