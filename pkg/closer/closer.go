package closer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultForcedTimeout = 2 * time.Second

// Func — сигнатура функции закрытия ресурса.
type Func func(ctx context.Context) error

type entry struct {
	name string
	fn   Func
}

// Closer закрывает зарегистрированные ресурсы в обратном порядке (LIFO).
// Ошибки подписываются именем ресурса.
type Closer struct {
	mu            sync.Mutex
	once          sync.Once
	entries       []entry
	forcedTimeout time.Duration
}

// NewCloser создает новый экземпляр Closer.
// forcedTimeout — время на принудительное закрытие ресурсов, не успевших закрыться до отмены контекста Close.
func NewCloser(forcedTimeout time.Duration) *Closer {
	if forcedTimeout <= 0 {
		forcedTimeout = defaultForcedTimeout
	}

	return &Closer{forcedTimeout: forcedTimeout}
}

// Add регистрирует ресурс name.
func (c *Closer) Add(name string, f Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry{name: name, fn: f})
}

// Close закрывает ресурсы по одному, начиная с последнего добавленного.
// Если ctx отменяется раньше, оставшиеся ресурсы закрываются параллельно с отдельным таймаутом.
// Повторные вызовы ничего не делают.
func (c *Closer) Close(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		entries := c.entries
		c.mu.Unlock()

		remaining, errs := c.gracefulClose(ctx, entries)
		if len(remaining) == 0 {
			if len(errs) > 0 {
				err = fmt.Errorf("shutdown finished with error(s):\n%s", strings.Join(errs, "\n"))
			}
			return
		}

		errs = append(errs, c.forcedClose(remaining)...)
		err = fmt.Errorf("shutdown interrupted after %d/%d resources:\n%s",
			len(entries)-len(remaining), len(entries), strings.Join(errs, "\n"))
	})

	return err
}

// gracefulClose возвращает ресурсы, до которых не дошла очередь, и ошибки закрытых.
// Ресурс, закрывавшийся в момент отмены ctx, считается незакрытым.
func (c *Closer) gracefulClose(ctx context.Context, entries []entry) ([]entry, []string) {
	var errs []string
	for i := len(entries) - 1; i >= 0; i-- {
		ent := entries[i]
		done := make(chan error, 1)
		go func() {
			done <- ent.fn(ctx)
		}()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, fmt.Sprintf("[%s] %v", ent.name, err))
			}
		case <-ctx.Done():
			return entries[:i+1], errs
		}
	}

	return nil, errs
}

func (c *Closer) forcedClose(entries []entry) []string {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []string
	)

	ctx, cancel := context.WithTimeout(context.Background(), c.forcedTimeout)
	defer cancel()

	for _, ent := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ent.fn(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Sprintf("[FORCED %s] %v", ent.name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errs
}
