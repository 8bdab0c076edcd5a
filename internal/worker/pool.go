package worker

import (
	"sync"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/metrics"
)

type task func()

// Pool runs queued tasks on a fixed set of goroutines; payment notifications
// are dispatched through it so webhook processing never blocks on delivery.
type Pool struct {
	wg   sync.WaitGroup
	mu   sync.Mutex
	done bool
	jobs chan task
}

func NewPool(n int) *Pool {
	p := &Pool{jobs: make(chan task, 1024)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
				metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
			}
		}()
	}
	return p
}

// Submit enqueues a task; after Stop it drops the task instead of panicking
// on the closed channel.
func (p *Pool) Submit(f task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.jobs <- f
	metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
}

func (p *Pool) Stop() {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.done = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
