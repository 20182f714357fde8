package closer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClose_LIFO(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) Func {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	c := NewCloser(0)
	c.Add("postgres", record("postgres"))
	c.Add("redis", record("redis"))
	c.Add("http", record("http"))

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, []string{"http", "redis", "postgres"}, order)

	// повторный вызов ничего не закрывает
	require.NoError(t, c.Close(context.Background()))
	assert.Len(t, order, 3)
}

func TestClose_ErrorsNameResource(t *testing.T) {
	c := NewCloser(0)
	c.Add("kafka", func(context.Context) error { return errors.New("flush failed") })
	c.Add("grpc", func(context.Context) error { return nil })

	err := c.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[kafka] flush failed")
	assert.NotContains(t, err.Error(), "grpc")
}

func TestClose_ForcedAfterTimeout(t *testing.T) {
	var (
		forced  sync.Map
		calls   atomic.Int32
		release = make(chan struct{})
	)
	t.Cleanup(func() { close(release) })

	c := NewCloser(time.Second)
	c.Add("postgres", func(ctx context.Context) error {
		forced.Store("postgres", ctx.Err() == nil)
		return nil
	})
	c.Add("http", func(context.Context) error {
		if calls.Add(1) == 1 {
			<-release
			return nil
		}
		return errors.New("still draining")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted after 0/2 resources")
	assert.Contains(t, err.Error(), "[FORCED http] still draining")

	fresh, ok := forced.Load("postgres")
	require.True(t, ok, "remaining resources are closed in forced mode")
	assert.Equal(t, true, fresh, "forced close gets its own context")
}
