package msgworker

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("worker pool stopped")

// Job is a unit of work for one session. Jobs of the same session run on the
// same shard, one at a time, in submission order.
type Job struct {
	SessionID string
	// Kind labels the job in logs and stats.
	Kind    string
	Handler func(ctx context.Context) error
}

type Stats struct {
	NumWorkers  int           `json:"num_workers"`
	QueueSize   int           `json:"queue_size"`
	BusyWorkers int           `json:"busy_workers"`
	Submitted   int64         `json:"submitted"`
	Processed   int64         `json:"processed"`
	Rejected    int64         `json:"rejected"`
	Failed      int64         `json:"failed"`
	Workers     []WorkerStats `json:"workers"`
}

type WorkerStats struct {
	ID          int    `json:"id"`
	Queued      int    `json:"queued"`
	Busy        bool   `json:"busy"`
	Processed   int64  `json:"processed"`
	LastSession string `json:"last_session,omitempty"`
}

type shard struct {
	id        int
	queue     chan Job
	busy      atomic.Bool
	processed atomic.Int64

	mu          sync.Mutex
	lastSession string
}

// Pool runs session jobs on a fixed number of shards. The shard of a job is
// the FNV hash of its session id.
type Pool struct {
	shards    []*shard
	queueSize int
	base      context.Context

	// sendMu keeps Stop from closing a queue under a blocked Submit.
	sendMu   sync.RWMutex
	closed   atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	submitted atomic.Int64
	processed atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
}

func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 8
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	shards := make([]*shard, numWorkers)
	for i := range shards {
		shards[i] = &shard{id: i, queue: make(chan Job, queueSize)}
	}
	return &Pool{
		shards:    shards,
		queueSize: queueSize,
		base:      context.Background(),
		stop:      make(chan struct{}),
	}
}

// Start launches one goroutine per shard. Cancelling ctx stops the pool;
// handlers keep ctx values but not its cancellation, so queued jobs finish.
func (p *Pool) Start(ctx context.Context) {
	p.base = context.WithoutCancel(ctx)
	for _, s := range p.shards {
		p.wg.Add(1)
		go p.run(s)
	}
	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-p.stop:
		}
	}()
	logrus.Infof("[EVENT_POOL] Started with %d workers, queue size: %d", len(p.shards), p.queueSize)
}

// Submit enqueues job, blocking while its shard is full.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	if p.closed.Load() {
		p.rejected.Add(1)
		return ErrPoolStopped
	}
	select {
	case p.shardFor(job.SessionID).queue <- job:
		p.submitted.Add(1)
		return nil
	case <-ctx.Done():
		p.rejected.Add(1)
		return ctx.Err()
	case <-p.stop:
		p.rejected.Add(1)
		return ErrPoolStopped
	}
}

// Stop rejects new jobs, lets the queued ones finish and waits for the shards.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		logrus.Info("[EVENT_POOL] Stopping workers...")
		p.closed.Store(true)
		close(p.stop)

		p.sendMu.Lock()
		for _, s := range p.shards {
			close(s.queue)
		}
		p.sendMu.Unlock()

		p.wg.Wait()
		logrus.Info("[EVENT_POOL] All workers stopped")
	})
}

func (p *Pool) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return p.shards[h.Sum32()%uint32(len(p.shards))]
}

func (p *Pool) run(s *shard) {
	defer p.wg.Done()
	for job := range s.queue {
		p.process(s, job)
	}
}

func (p *Pool) process(s *shard, job Job) {
	s.busy.Store(true)
	s.mu.Lock()
	s.lastSession = job.SessionID
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			logrus.WithField("client_id", job.SessionID).Errorf("[EVENT_POOL] Worker %d panic in %s job: %v", s.id, job.Kind, r)
		}
		s.busy.Store(false)
		s.processed.Add(1)
		p.processed.Add(1)
	}()

	if err := job.Handler(p.base); err != nil {
		p.failed.Add(1)
		logrus.WithError(err).WithField("client_id", job.SessionID).Errorf("[EVENT_POOL] Worker %d %s job failed", s.id, job.Kind)
	}
}

// Stats is a point-in-time view of the pool.
func (p *Pool) Stats() Stats {
	stats := Stats{
		NumWorkers: len(p.shards),
		QueueSize:  p.queueSize,
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Rejected:   p.rejected.Load(),
		Failed:     p.failed.Load(),
		Workers:    make([]WorkerStats, 0, len(p.shards)),
	}
	for _, s := range p.shards {
		busy := s.busy.Load()
		if busy {
			stats.BusyWorkers++
		}
		s.mu.Lock()
		last := s.lastSession
		s.mu.Unlock()
		stats.Workers = append(stats.Workers, WorkerStats{
			ID:          s.id,
			Queued:      len(s.queue),
			Busy:        busy,
			Processed:   s.processed.Load(),
			LastSession: last,
		})
	}
	return stats
}
