package services

import (
	"log"
	"sync"
)

const dispatchQueueSize = 256

// dispatcher runs side effects in submission order on a single goroutine.
// Jobs are dropped when the queue is full or after close.
type dispatcher struct {
	jobs chan dispatchJob
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

type dispatchJob struct {
	name string
	run  func()
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		jobs: make(chan dispatchJob, dispatchQueueSize),
		done: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for job := range d.jobs {
		d.runJob(job)
	}
}

func (d *dispatcher) runJob(job dispatchJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: %s panicked: %v", job.name, r)
		}
	}()
	job.run()
}

func (d *dispatcher) submit(name string, run func()) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		log.Printf("dispatch: %s dropped after shutdown", name)
		return
	}
	select {
	case d.jobs <- dispatchJob{name: name, run: run}:
	default:
		log.Printf("dispatch: queue full, dropping %s", name)
	}
}

// close stops accepting jobs and waits for the queued ones to finish.
func (d *dispatcher) close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	<-d.done
}
