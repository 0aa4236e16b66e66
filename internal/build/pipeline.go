package build

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/multierr"
)

// renderParallel processes pages concurrently using a worker pool. Every
// page is attempted; all failures are combined into the returned error.
// Cancelling ctx stops handing out pages and adds ctx.Err() to the result.
func renderParallel(ctx context.Context, pages []source, workers int, fn func(source) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if len(pages) == 0 {
		return nil
	}
	// Don't create more workers than pages.
	if workers > len(pages) {
		workers = len(pages)
	}

	jobs := make(chan source)
	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if err := fn(p); err != nil {
					mu.Lock()
					errs = multierr.Append(errs, fmt.Errorf("processing page %s: %w", p.rel, err))
					mu.Unlock()
				}
			}
		}()
	}

dispatch:
	for _, p := range pages {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- p:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}
