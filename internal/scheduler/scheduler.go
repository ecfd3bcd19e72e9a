// Package scheduler is the "external scheduler" spec.md §4.5 describes as
// the caller of Pool.ReleaseAll: a periodic job, independent of the pool
// itself, that sweeps for idle writers. Grounded on the retrieval pack's
// cron.New(cron.WithSeconds()) + registered-job wrapper shape.
package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// ReleaseFunc matches (*writerpool.Pool).ReleaseAll's signature without
// importing the pool package, keeping this package usable against any
// pool-shaped collaborator a caller wants to sweep on a schedule.
type ReleaseFunc func(deadline int64) bool

// NowMicrosFunc supplies the current time, so the sweep's deadline can be
// computed consistently with whatever clock the pool itself uses.
type NowMicrosFunc func() int64

// EvictionJob periodically invokes a release function with a deadline of
// now-minus-ttl, reclaiming writers idle past ttl.
type EvictionJob struct {
	cron *cron.Cron

	release ReleaseFunc
	now     NowMicrosFunc
	ttlUs   int64

	mu      sync.Mutex
	running bool
}

// NewEvictionJob builds a job that calls release(now()-ttl) on the given
// cron schedule (e.g. "@every 1m").
func NewEvictionJob(release ReleaseFunc, now NowMicrosFunc, ttlUs int64, schedule string) (*EvictionJob, error) {
	j := &EvictionJob{
		cron:    cron.New(cron.WithSeconds()),
		release: release,
		now:     now,
		ttlUs:   ttlUs,
	}
	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *EvictionJob) sweep() {
	j.release(j.now() - j.ttlUs)
}

// Start begins running the schedule. Safe to call once; a second call is
// a no-op.
func (j *EvictionJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	j.running = true
	j.cron.Start()
}

// Stop halts the schedule and waits for any in-flight sweep to finish.
func (j *EvictionJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	<-j.cron.Stop().Done()
	j.running = false
}
