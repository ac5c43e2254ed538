// Package store holds the authoritative in-memory collection of the
// technician's jobs. It is the single source of truth for the UI and the
// single reconciliation point for its two writers: incremental patches from
// the lifecycle engine and full-job replacement from the bulk refresh.
package store

import (
	"sort"
	"sync"

	"fieldservice-backend/internal/metrics"
	"fieldservice-backend/internal/model"
)

// Triggers identify the writer responsible for a mutation.
const (
	TriggerAction  = "action"
	TriggerPush    = "push"
	TriggerRefresh = "refresh"
)

// Change describes one committed mutation, delivered to listeners in
// commit order.
type Change struct {
	Key        model.JobKey
	Job        model.Job // post-mutation snapshot
	PrevStatus model.JobStatus
	Trigger    string
	Inserted   bool
}

// Listener observes committed mutations.
type Listener func(Change)

// Store is the observable job map keyed by (kind, jobId). All mutations to
// a given identity are serialized: a mutation arriving while another is
// being committed is queued behind it and its listeners fire strictly
// after. Jobs are never deleted during a session; completed jobs stay
// visible until the next full refresh replaces them.
type Store struct {
	mu        sync.Mutex
	jobs      map[model.JobKey]model.Job
	listeners map[int]Listener
	nextID    int

	// pending holds committed-but-unannounced changes; a single drainer
	// delivers them so listeners always observe commit order.
	pending  []Change
	draining bool

	metrics *metrics.Collector
}

// New creates an empty store.
func New(m *metrics.Collector) *Store {
	return &Store{
		jobs:      make(map[model.JobKey]model.Job),
		listeners: make(map[int]Listener),
		metrics:   m,
	}
}

// Upsert inserts or fully replaces a job by identity, last-write-wins.
// Used for bulk refresh and for newly assigned jobs.
func (s *Store) Upsert(job model.Job, trigger string) {
	s.mu.Lock()
	key := job.Key()
	prev, existed := s.jobs[key]
	if existed && prev == job {
		s.mu.Unlock()
		return
	}
	s.jobs[key] = job
	if s.metrics != nil {
		s.metrics.SetJobsTracked(len(s.jobs))
	}
	s.commitLocked(Change{
		Key:        key,
		Job:        job,
		PrevStatus: prev.Status,
		Trigger:    trigger,
		Inserted:   !existed,
	})
}

// Mutate runs fn against the job's current value under the store's
// serialization. fn reports whether it changed the job; listeners are only
// notified for real changes. Returns false if the identity is unknown or
// fn made no change.
func (s *Store) Mutate(key model.JobKey, trigger string, fn func(*model.Job) bool) bool {
	s.mu.Lock()
	job, ok := s.jobs[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	prev := job.Status
	if !fn(&job) {
		s.mu.Unlock()
		return false
	}
	s.jobs[key] = job
	s.commitLocked(Change{
		Key:        key,
		Job:        job,
		PrevStatus: prev,
		Trigger:    trigger,
	})
	return true
}

// ApplyPatch merges a partial update into the existing entry. Unknown
// identities are a silent no-op: an Assigned event for an unknown job
// arrives via Upsert, not here.
func (s *Store) ApplyPatch(key model.JobKey, patch model.Patch) bool {
	return s.Mutate(key, patch.Trigger, patch.Apply)
}

// Get returns a copy of the job for the given identity.
func (s *Store) Get(key model.JobKey) (model.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[key]
	return job, ok
}

// All returns a snapshot of all jobs, optionally filtered by kind, sorted
// by kind then ID. The snapshot is detached from the live map.
func (s *Store) All(kinds ...model.JobKind) []model.Job {
	s.mu.Lock()
	out := make([]model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if len(kinds) > 0 && !kindMatch(j.Kind, kinds) {
			continue
		}
		out = append(out, j)
	}
	s.mu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].Kind != out[b].Kind {
			return out[a].Kind < out[b].Kind
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Subscribe registers a listener for committed mutations and returns its
// removal function. Listener failures must not block the store, so
// listeners are expected to handle their own errors.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// commitLocked queues a committed change and drains the queue unless
// another goroutine already is. Draining outside the map lock lets
// listeners read the store re-entrantly; the single-drainer rule keeps
// delivery in commit order.
func (s *Store) commitLocked(c Change) {
	s.pending = append(s.pending, c)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		ls := make([]Listener, 0, len(s.listeners))
		for _, l := range s.listeners {
			ls = append(ls, l)
		}
		s.mu.Unlock()
		for _, l := range ls {
			l(next)
		}
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

func kindMatch(k model.JobKind, kinds []model.JobKind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}
