// Package jitter — экспоненциальные задержки между повторами со случайной добавкой,
// чтобы повторы разных клиентов не приходили одновременно.
package jitter

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DefaultFactor — стандартная доля джиттера (до +50% к задержке).
const DefaultFactor = 0.5

var (
	globalRand = rand.New(rand.NewSource(time.Now().UnixNano()))
	randMutex  sync.Mutex
)

// Backoff описывает задержку попытки attempt (с нуля): Base*2^attempt, не больше Max,
// плюс случайная добавка в [0, Factor*задержка].
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

// NewBackoff создаёт Backoff с DefaultFactor.
func NewBackoff(base, max time.Duration) Backoff {
	return Backoff{Base: base, Max: max, Factor: DefaultFactor}
}

// Delay возвращает задержку перед повтором номер attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	randMutex.Lock()
	r := globalRand.Float64()
	randMutex.Unlock()

	return b.delay(attempt, r)
}

// delay — детерминированная часть Delay; r в [0, 1).
func (b Backoff) delay(attempt int, r float64) time.Duration {
	d := b.Base
	for i := 0; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}

	return d + time.Duration(r*b.Factor*float64(d))
}

// Wait ждёт Delay(attempt). Возвращает ошибку ctx, если он отменён раньше.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	return Sleep(ctx, b.Delay(attempt))
}

// Sleep ждёт d или отмены ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
