package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Job represents a unit of work to be executed, such as one classification run
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// PanicError is reported in place of the result of a job that panicked
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

type panicResult struct {
	err error
}

func (r *panicResult) GetError() error {
	return r.err
}

type queued struct {
	seq int
	job Job
}

type finished struct {
	seq    int
	result Result
}

// Pool manages a pool of workers that execute jobs concurrently.
// A failing or panicking job never affects the others.
type Pool struct {
	workers    int
	jobQueue   chan queued
	results    chan finished
	collected  []finished
	collectWg  sync.WaitGroup
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once

	mu  sync.Mutex
	seq int
}

// NewPool creates a new worker pool with the specified number of workers.
// Jobs see a context derived from ctx.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan queued, workers*2),
		results:    make(chan finished, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	p.collectWg.Add(1)
	go func() {
		defer p.collectWg.Done()
		for f := range p.results {
			p.collected = append(p.collected, f)
		}
	}()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case q, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.results <- finished{seq: q.seq, result: p.execute(q.job)}
		}
	}
}

func (p *Pool) execute(job Job) (res Result) {
	defer func() {
		if v := recover(); v != nil {
			res = &panicResult{err: &PanicError{Value: v}}
		}
	}()
	return job.Execute(p.ctx)
}

// Submit submits a job to the pool. It reports false if the pool was shut
// down before the job could be queued.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}

	p.mu.Lock()
	seq := p.seq
	p.seq++
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- queued{seq: seq, job: job}:
		return true
	}
}

// Wait waits for all submitted jobs and returns their results in
// submission order. Call it once, after the last Submit.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	p.collectWg.Wait()
	p.cancelFunc()

	sort.Slice(p.collected, func(i, j int) bool {
		return p.collected[i].seq < p.collected[j].seq
	})
	results := make([]Result, len(p.collected))
	for i, f := range p.collected {
		results[i] = f.result
	}
	return results
}

// Shutdown stops the pool; queued jobs that have not started are dropped
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
	p.collectWg.Wait()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
