package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/markusressel/cool2go/internal/hardware"
	"github.com/markusressel/cool2go/internal/ui"
)

var (
	ErrQueueFull    = errors.New("write queue full")
	ErrQueueClosed  = errors.New("write queue closed")
	ErrWriteTimeout = errors.New("write timed out")
)

type writeJob struct {
	channel string
	percent int
	done    chan error
}

type deviceWorker struct {
	deviceId string
	jobs     chan writeJob
}

// WriteQueue serializes the hardware writes of each device.
// Every device gets its own worker goroutine with a bounded FIFO of pending writes.
type WriteQueue struct {
	channel hardware.Channel
	size    int
	timeout time.Duration

	mu      sync.Mutex
	workers map[string]*deviceWorker
	closed  bool
	wg      sync.WaitGroup
}

func NewWriteQueue(channel hardware.Channel, size int, timeout time.Duration) *WriteQueue {
	if size < 1 {
		size = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &WriteQueue{
		channel: channel,
		size:    size,
		timeout: timeout,
		workers: map[string]*deviceWorker{},
	}
}

// Submit enqueues a write without waiting for it.
// The returned channel receives the result of the write exactly once.
func (q *WriteQueue) Submit(deviceId string, channel string, percent int) (<-chan error, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	worker, ok := q.workers[deviceId]
	if !ok {
		worker = &deviceWorker{
			deviceId: deviceId,
			jobs:     make(chan writeJob, q.size),
		}
		q.workers[deviceId] = worker
		q.wg.Add(1)
		go q.work(worker)
	}

	job := writeJob{
		channel: channel,
		percent: percent,
		done:    make(chan error, 1),
	}
	select {
	case worker.jobs <- job:
		return job.done, nil
	default:
		return nil, ErrQueueFull
	}
}

// Write enqueues a write and waits for its result, at most WriteTimeout.
// A write that times out keeps its worker busy until the hardware call returns.
func (q *WriteQueue) Write(ctx context.Context, deviceId string, channel string, percent int) error {
	done, err := q.Submit(deviceId, channel, percent)
	if err != nil {
		return err
	}

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrWriteTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *WriteQueue) work(worker *deviceWorker) {
	defer q.wg.Done()
	for job := range worker.jobs {
		if q.isClosed() {
			job.done <- ErrQueueClosed
			continue
		}
		job.done <- q.execute(worker.deviceId, job)
	}
}

func (q *WriteQueue) execute(deviceId string, job writeJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ui.Error("Recovered from panic while writing %s/%s: %v", deviceId, job.channel, r)
			err = &hardware.Error{DeviceId: deviceId, Channel: job.channel, Err: errors.New("panic during write")}
		}
	}()

	// not derived from the caller, in-flight writes complete during shutdown
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	return q.channel.SetDuty(ctx, deviceId, job.channel, job.percent)
}

func (q *WriteQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close cancels all pending writes and waits for in-flight writes to complete
func (q *WriteQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, worker := range q.workers {
		close(worker.jobs)
	}
	q.mu.Unlock()

	q.wg.Wait()
}
