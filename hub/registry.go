// Copyright 2026 The recipehub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hub

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

// Subscriber is one client connection attached to a job's event stream
type Subscriber struct {
	// ID is the registry assigned subscriber ID
	ID string
	// JobID is the job the subscriber is attached to
	JobID string
	// Sink is the channel used to reach the connection
	Sink Sink
}

// RegistryStats is a point-in-time count of the registry content
type RegistryStats struct {
	// Jobs is the number of jobs with at least one subscriber
	Jobs int `json:"jobs"`
	// Subscribers is the total number of subscribers across all jobs
	Subscribers int `json:"subscribers"`
}

// registryShard is one independently locked partition of the registry
type registryShard struct {
	lock sync.Mutex
	jobs map[string]map[string]Subscriber
}

// Registry maps job IDs to their set of subscribers.
//
// Jobs are spread over shards by hashing the job ID. All operations on one job
// are serialized by that job's shard lock, and an operation never holds more
// than one shard lock.
type Registry struct {
	shards []*registryShard
}

// NewRegistry define a new Registry
func NewRegistry(shardCount int) *Registry {
	if shardCount < 1 {
		shardCount = 1
	}
	shards := make([]*registryShard, shardCount)
	for itr := range shards {
		shards[itr] = &registryShard{jobs: make(map[string]map[string]Subscriber)}
	}
	return &Registry{shards: shards}
}

func (r *Registry) shardFor(jobID string) *registryShard {
	if len(r.shards) == 1 {
		return r.shards[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(jobID))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

// Register add a subscriber to a job, creating the job's set if needed.
//
// A subscriber ID is generated if the subscriber does not carry one.
func (r *Registry) Register(jobID string, sub Subscriber) string {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.JobID = jobID
	shard := r.shardFor(jobID)
	shard.lock.Lock()
	defer shard.lock.Unlock()
	subs, ok := shard.jobs[jobID]
	if !ok {
		subs = make(map[string]Subscriber)
		shard.jobs[jobID] = subs
	}
	subs[sub.ID] = sub
	return sub.ID
}

// Unregister remove a subscriber from a job. The job entry is removed once its
// last subscriber is gone. Returns whether the subscriber was present.
func (r *Registry) Unregister(jobID, subscriberID string) bool {
	shard := r.shardFor(jobID)
	shard.lock.Lock()
	defer shard.lock.Unlock()
	subs, ok := shard.jobs[jobID]
	if !ok {
		return false
	}
	if _, ok := subs[subscriberID]; !ok {
		return false
	}
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(shard.jobs, jobID)
	}
	return true
}

// Snapshot copy of the current subscribers of a job
func (r *Registry) Snapshot(jobID string) []Subscriber {
	shard := r.shardFor(jobID)
	shard.lock.Lock()
	defer shard.lock.Unlock()
	subs, ok := shard.jobs[jobID]
	if !ok {
		return nil
	}
	result := make([]Subscriber, 0, len(subs))
	for _, sub := range subs {
		result = append(result, sub)
	}
	return result
}

// Drop remove a job entry unconditionally, returning the subscribers it held
func (r *Registry) Drop(jobID string) []Subscriber {
	shard := r.shardFor(jobID)
	shard.lock.Lock()
	defer shard.lock.Unlock()
	subs, ok := shard.jobs[jobID]
	if !ok {
		return nil
	}
	delete(shard.jobs, jobID)
	result := make([]Subscriber, 0, len(subs))
	for _, sub := range subs {
		result = append(result, sub)
	}
	return result
}

// Contains whether a job currently has an entry in the registry
func (r *Registry) Contains(jobID string) bool {
	shard := r.shardFor(jobID)
	shard.lock.Lock()
	defer shard.lock.Unlock()
	_, ok := shard.jobs[jobID]
	return ok
}

// Stats count the jobs and subscribers currently registered
func (r *Registry) Stats() RegistryStats {
	var stats RegistryStats
	for _, shard := range r.shards {
		shard.lock.Lock()
		stats.Jobs += len(shard.jobs)
		for _, subs := range shard.jobs {
			stats.Subscribers += len(subs)
		}
		shard.lock.Unlock()
	}
	return stats
}
