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
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// flakySink accepts events until broken, after which every call fails
type flakySink struct {
	*ChannelSink
	broken     atomic.Bool
	closeCalls atomic.Int32
}

func newFlakySink() *flakySink {
	return &flakySink{ChannelSink: NewChannelSink(8, 0)}
}

func (s *flakySink) Deliver(evt Event) error {
	if s.broken.Load() {
		return fmt.Errorf("connection reset by peer")
	}
	return s.ChannelSink.Deliver(evt)
}

func (s *flakySink) Close() error {
	s.closeCalls.Add(1)
	if s.broken.Load() {
		return fmt.Errorf("use of closed network connection")
	}
	return s.ChannelSink.Close()
}

// nextEvent read one event from a sink or fail after timeout
func nextEvent(t *testing.T, sink *ChannelSink) Event {
	select {
	case evt := <-sink.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestHubSubscribe(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	registry := NewRegistry(4)
	uut := GetEventHub(registry, "ut-hub-subscribe")
	ctxt := context.Background()

	job := uuid.NewString()

	// Case 0: subscribe sends connected first
	sink := NewChannelSink(4, 0)
	subID, err := uut.Subscribe(ctxt, job, sink)
	assert.Nil(err)
	assert.NotEmpty(subID)
	{
		evt := nextEvent(t, sink)
		assert.Equal(EventConnected, evt.Name)
		assert.NotEmpty(evt.ID)
		payload, ok := evt.Data.(ConnectedPayload)
		assert.True(ok)
		assert.Equal(job, payload.JobID)
		assert.Equal(subID, payload.SubscriberID)
		assert.False(payload.Timestamp.IsZero())
	}
	assert.Equal(RegistryStats{Jobs: 1, Subscribers: 1}, uut.Stats())

	// Case 1: subscribe with a closed sink fails and registers nothing
	{
		closed := NewChannelSink(4, 0)
		assert.Nil(closed.Close())
		_, err := uut.Subscribe(ctxt, job, closed)
		assert.ErrorIs(err, ErrSinkClosed)
		assert.Equal(RegistryStats{Jobs: 1, Subscribers: 1}, uut.Stats())
	}

	// Case 2: unsubscribe prunes the job, twice is harmless
	{
		uut.Unsubscribe(ctxt, job, subID)
		uut.Unsubscribe(ctxt, job, subID)
		assert.False(registry.Contains(job))
	}
}

func TestHubPublishOrdering(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	registry := NewRegistry(4)
	uut := GetEventHub(registry, "ut-hub-ordering")
	ctxt := context.Background()

	job := uuid.NewString()

	// Case 0: publish without subscribers is a no-op
	assert.Equal(0, uut.Publish(ctxt, job, EventProgress, "nobody"))
	assert.False(registry.Contains(job))

	sink1 := NewChannelSink(32, time.Millisecond*100)
	sink2 := NewChannelSink(32, time.Millisecond*100)
	_, err := uut.Subscribe(ctxt, job, sink1)
	assert.Nil(err)
	_, err = uut.Subscribe(ctxt, job, sink2)
	assert.Nil(err)
	assert.Equal(EventConnected, nextEvent(t, sink1).Name)
	assert.Equal(EventConnected, nextEvent(t, sink2).Name)

	// Case 1: every subscriber sees every publish in call order
	for itr := 0; itr < 20; itr++ {
		assert.Equal(2, uut.Publish(ctxt, job, EventProgress, itr))
	}
	for _, sink := range []*ChannelSink{sink1, sink2} {
		seen := map[string]bool{}
		for itr := 0; itr < 20; itr++ {
			evt := nextEvent(t, sink)
			assert.Equal(EventProgress, evt.Name)
			assert.Equal(itr, evt.Data)
			assert.False(seen[evt.ID])
			seen[evt.ID] = true
		}
	}

	// Case 2: complete closes both and forgets the job
	uut.Complete(ctxt, job)
	for _, sink := range []*ChannelSink{sink1, sink2} {
		select {
		case <-sink.Done():
		default:
			assert.Fail("sink not closed on complete")
		}
	}
	assert.False(registry.Contains(job))
}

func TestHubFanOutIsolation(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	registry := NewRegistry(4)
	uut := GetEventHub(registry, "ut-hub-isolation")
	ctxt := context.Background()

	jobA := uuid.NewString()
	jobB := uuid.NewString()

	healthy1 := NewChannelSink(8, 0)
	healthy2 := NewChannelSink(8, 0)
	broken := newFlakySink()
	other := NewChannelSink(8, 0)

	_, err := uut.Subscribe(ctxt, jobA, healthy1)
	assert.Nil(err)
	brokenID, err := uut.Subscribe(ctxt, jobA, broken)
	assert.Nil(err)
	_, err = uut.Subscribe(ctxt, jobA, healthy2)
	assert.Nil(err)
	_, err = uut.Subscribe(ctxt, jobB, other)
	assert.Nil(err)
	_ = nextEvent(t, healthy1)
	_ = nextEvent(t, healthy2)
	_ = nextEvent(t, broken.ChannelSink)
	_ = nextEvent(t, other)

	// Case 0: one broken subscriber does not stop the others
	broken.broken.Store(true)
	assert.Equal(2, uut.Publish(ctxt, jobA, EventProgress, "p1"))
	assert.Equal("p1", nextEvent(t, healthy1).Data)
	assert.Equal("p1", nextEvent(t, healthy2).Data)
	{
		snapshot := registry.Snapshot(jobA)
		assert.Len(snapshot, 2)
		for _, sub := range snapshot {
			assert.NotEqual(brokenID, sub.ID)
		}
	}
	// The removed subscriber is told to end its stream exactly once
	assert.Equal(int32(1), broken.closeCalls.Load())

	// Case 1: job B untouched by job A traffic
	assert.Empty(other.Drain())
	assert.Len(registry.Snapshot(jobB), 1)

	// Case 2: completing job A leaves job B alone
	uut.Complete(ctxt, jobA)
	assert.False(registry.Contains(jobA))
	assert.True(registry.Contains(jobB))
	select {
	case <-other.Done():
		assert.Fail("job B sink closed by job A completion")
	default:
	}
	assert.Equal(1, uut.Publish(ctxt, jobB, EventProgress, "b1"))
	assert.Equal("b1", nextEvent(t, other).Data)
	uut.Complete(ctxt, jobB)
}

func TestHubCompleteTolerance(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	registry := NewRegistry(1)
	uut := GetEventHub(registry, "ut-hub-complete")
	ctxt := context.Background()

	job := uuid.NewString()

	// Case 0: complete a job nobody listens to
	uut.Complete(ctxt, job)
	assert.False(registry.Contains(job))

	// Case 1: complete with failing close calls still removes the entry
	sinks := []*flakySink{newFlakySink(), newFlakySink(), newFlakySink()}
	for _, sink := range sinks {
		_, err := uut.Subscribe(ctxt, job, sink)
		assert.Nil(err)
		sink.broken.Store(true)
	}
	uut.Complete(ctxt, job)
	assert.False(registry.Contains(job))
	for _, sink := range sinks {
		assert.Equal(int32(1), sink.closeCalls.Load())
	}

	// Case 2: complete twice in a row
	uut.Complete(ctxt, job)
	assert.False(registry.Contains(job))
	for _, sink := range sinks {
		assert.Equal(int32(1), sink.closeCalls.Load())
	}
}

func TestHubSlowSubscriber(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	registry := NewRegistry(4)
	uut := GetEventHub(registry, "ut-hub-slow")
	ctxt := context.Background()

	job := uuid.NewString()

	// Slow subscriber never reads, so its single slot fills with connected
	slow := NewChannelSink(1, time.Millisecond*50)
	fast := NewChannelSink(8, time.Millisecond*50)
	_, err := uut.Subscribe(ctxt, job, slow)
	assert.Nil(err)
	_, err = uut.Subscribe(ctxt, job, fast)
	assert.Nil(err)
	_ = nextEvent(t, fast)

	// Case 0: the slow subscriber times out and is removed, the fast one is served
	start := time.Now()
	assert.Equal(1, uut.Publish(ctxt, job, EventProgress, "p1"))
	assert.Less(time.Since(start), time.Second)
	assert.Equal("p1", nextEvent(t, fast).Data)
	assert.Len(registry.Snapshot(job), 1)

	// Case 1: the removed subscriber's stream is ended, keeping what it already holds
	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		assert.Fail("dropped subscriber's sink not closed")
	}
	remaining := slow.Drain()
	assert.Len(remaining, 1)
	assert.Equal(EventConnected, remaining[0].Name)

	// Case 2: later traffic only reaches the fast subscriber
	assert.Equal(1, uut.Publish(ctxt, job, EventCompleted, "done"))
	uut.Complete(ctxt, job)
	select {
	case <-fast.Done():
	case <-time.After(time.Second):
		assert.Fail("fast subscriber's sink not closed on complete")
	}
	assert.False(registry.Contains(job))
}

func TestHubConcurrentTraffic(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.InfoLevel)
	defer log.SetLevel(log.DebugLevel)

	registry := NewRegistry(8)
	uut := GetEventHub(registry, "ut-hub-concurrent")
	ctxt := context.Background()

	jobs := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}

	wg := sync.WaitGroup{}
	// Subscribers which join, read a little, then leave
	for _, jobID := range jobs {
		for worker := 0; worker < 5; worker++ {
			wg.Add(1)
			go func(jobID string) {
				defer wg.Done()
				for round := 0; round < 20; round++ {
					sink := NewChannelSink(4, 0)
					subID, err := uut.Subscribe(ctxt, jobID, sink)
					assert.Nil(err)
					_ = sink.Drain()
					uut.Unsubscribe(ctxt, jobID, subID)
					assert.Nil(sink.Close())
				}
			}(jobID)
		}
	}
	// Publishers and completers racing with them
	for _, jobID := range jobs {
		wg.Add(1)
		go func(jobID string) {
			defer wg.Done()
			for round := 0; round < 100; round++ {
				uut.Publish(ctxt, jobID, EventProgress, round)
				if round%25 == 0 {
					uut.Complete(ctxt, jobID)
				}
			}
		}(jobID)
	}
	wg.Wait()

	for _, jobID := range jobs {
		assert.False(registry.Contains(jobID))
	}
	assert.Equal(RegistryStats{}, uut.Stats())
}
