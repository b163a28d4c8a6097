package subscription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/queuesync/queuesync-go/pkg/topic"
)

// JoinFunc issues the server-side join for one topic.
type JoinFunc func(ctx context.Context, t topic.Topic) error

// Registry is the deduplicated set of joined topics. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]topic.Topic
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{topics: make(map[string]topic.Topic)}
}

// Record adds t. It returns false if t was already present.
func (r *Registry) Record(t topic.Topic) bool {
	key := t.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.topics[key]; ok {
		return false
	}
	r.topics[key] = t
	return true
}

// Contains reports whether t has been recorded.
func (r *Registry) Contains(t topic.Topic) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[t.Key()]
	return ok
}

// Len returns the number of recorded topics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}

// Snapshot returns the recorded topics sorted by key.
func (r *Registry) Snapshot() []topic.Topic {
	r.mu.RLock()
	out := make([]topic.Topic, 0, len(r.topics))
	for _, t := range r.topics {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// ReplayResult summarizes a replay run.
type ReplayResult struct {
	// Attempted is the number of topics in the snapshot.
	Attempted int

	// Failed maps topic keys to the join error.
	Failed map[string]error
}

// Succeeded returns the number of topics joined successfully.
func (r ReplayResult) Succeeded() int {
	return r.Attempted - len(r.Failed)
}

// Err joins all failures into one error, or returns nil.
func (r ReplayResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.Failed))
	for k := range r.Failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	errs := make([]error, 0, len(keys))
	for _, k := range keys {
		errs = append(errs, fmt.Errorf("%s: %w", k, r.Failed[k]))
	}
	return errors.Join(errs...)
}

// Replay calls join for every topic in a snapshot, sequentially. Failures
// are collected and do not stop the run. If ctx ends, the remaining topics
// are marked failed with the context error.
func (r *Registry) Replay(ctx context.Context, join JoinFunc) ReplayResult {
	topics := r.Snapshot()
	res := ReplayResult{Attempted: len(topics), Failed: make(map[string]error)}

	for _, t := range topics {
		if err := ctx.Err(); err != nil {
			res.Failed[t.Key()] = err
			continue
		}
		if err := join(ctx, t); err != nil {
			res.Failed[t.Key()] = err
		}
	}
	return res
}
