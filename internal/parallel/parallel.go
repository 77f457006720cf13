// Package parallel runs a per-item function over a stream with a pool of
// workers, between a single producer and a single consumer.
package parallel

import (
	"context"
	"io"
	"runtime"
	"sync"

	"github.com/grailbio/base/syncqueue"
	"golang.org/x/sync/errgroup"
)

const DefaultQueueSize = 5000

// Options configures Run.
type Options struct {
	// Workers is the number of goroutines calling work. Zero means
	// runtime.NumCPU().
	Workers int
	// QueueSize bounds both the task queue and the result queue. Zero
	// means DefaultQueueSize.
	QueueSize int
	// Ordered delivers results to the sink in source order. Otherwise
	// results arrive in completion order.
	Ordered bool
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	return o
}

// Stats counts the items that passed through Run.
type Stats struct {
	Tasks   int64 `json:"tasks"`
	Results int64 `json:"results"`
}

type item[T any] struct {
	idx int
	v   T
}

// Run pulls items from source until it returns io.EOF, applies work to each
// one on a worker goroutine and hands every result to sink. source and sink
// are each called from a single goroutine.
//
// The first error returned by source, work or sink, or the cancellation of
// ctx, stops all goroutines; Run then returns that error.
func Run[T, R any](ctx context.Context, opts Options, source func() (T, error), work func(T) (R, error), sink func(R) error) (Stats, error) {
	opts = opts.withDefaults()
	var stats Stats
	g, ctx := errgroup.WithContext(ctx)

	tasks := make(chan item[T], opts.QueueSize)
	g.Go(func() error {
		defer close(tasks)
		for i := 0; ; i++ {
			v, err := source()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case tasks <- item[T]{i, v}:
				stats.Tasks++
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	var err error
	if opts.Ordered {
		err = runOrdered(ctx, g, opts, tasks, work, sink, &stats)
	} else {
		err = runUnordered(ctx, g, opts, tasks, work, sink, &stats)
	}
	return stats, err
}

func runUnordered[T, R any](ctx context.Context, g *errgroup.Group, opts Options, tasks <-chan item[T], work func(T) (R, error), sink func(R) error, stats *Stats) error {
	results := make(chan R, opts.QueueSize)
	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for t := range tasks {
				r, err := work(t.v)
				if err != nil {
					return err
				}
				select {
				case results <- r:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	g.Go(func() error {
		for {
			select {
			case r, ok := <-results:
				if !ok {
					return nil
				}
				if err := sink(r); err != nil {
					return err
				}
				stats.Results++
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	return g.Wait()
}

func runOrdered[T, R any](ctx context.Context, g *errgroup.Group, opts Options, tasks <-chan item[T], work func(T) (R, error), sink func(R) error, stats *Stats) error {
	q := syncqueue.NewOrderedQueue(opts.QueueSize)
	var once sync.Once
	closeQueue := func(err error) {
		once.Do(func() { q.Close(err) })
	}

	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for t := range tasks {
				r, err := work(t.v)
				if err != nil {
					return err
				}
				if err := q.Insert(t.idx, r); err != nil {
					return err
				}
			}
			return nil
		})
	}

	// Next blocks until the queue is closed: cleanly once every worker
	// has finished, or with an error as soon as ctx is cancelled.
	stop := make(chan struct{})
	go func() {
		wg.Wait()
		select {
		case <-ctx.Done():
		default:
			closeQueue(nil)
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			closeQueue(ctx.Err())
		case <-stop:
		}
	}()
	defer close(stop)

	g.Go(func() error {
		for {
			v, ok, err := q.Next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := sink(v.(R)); err != nil {
				return err
			}
			stats.Results++
		}
	})
	return g.Wait()
}
