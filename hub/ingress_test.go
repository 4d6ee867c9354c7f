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
	"testing"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int {
	return &v
}

func TestIngressRunningThenCompleted(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	registry := NewRegistry(4)
	eventHub := GetEventHub(registry, "ut-ingress-completed")
	uut := GetIngress(eventHub, "ut-ingress-completed")
	ctxt := context.Background()

	sink := NewChannelSink(8, 0)
	_, err := eventHub.Subscribe(ctxt, "j1", sink)
	assert.Nil(err)
	{
		evt := nextEvent(t, sink)
		assert.Equal(EventConnected, evt.Name)
		assert.Equal("j1", evt.Data.(ConnectedPayload).JobID)
	}

	// Case 0: running update only yields progress
	{
		update := ProgressUpdate{Status: "running", Progress: intPtr(40), Step: "downloading"}
		assert.False(uut.Apply(ctxt, "j1", update))
		evt := nextEvent(t, sink)
		assert.Equal(EventProgress, evt.Name)
		assert.Equal(40, *evt.Data.(ProgressUpdate).Progress)
		assert.Empty(sink.Drain())
		assert.True(registry.Contains("j1"))
	}

	// Case 1: completed yields progress, completed, then closure
	{
		update := ProgressUpdate{Status: "completed", Progress: intPtr(100)}
		assert.True(uut.Apply(ctxt, "j1", update))
		assert.Equal(EventProgress, nextEvent(t, sink).Name)
		assert.Equal(EventCompleted, nextEvent(t, sink).Name)
		select {
		case <-sink.Done():
		default:
			assert.Fail("stream not closed after completion")
		}
		assert.False(registry.Contains("j1"))
	}

	// Case 2: duplicate completion is a no-op
	assert.True(uut.Apply(ctxt, "j1", ProgressUpdate{Status: "COMPLETED"}))
	assert.False(registry.Contains("j1"))
}

func TestIngressFailedFanOut(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	registry := NewRegistry(4)
	eventHub := GetEventHub(registry, "ut-ingress-failed")
	uut := GetIngress(eventHub, "ut-ingress-failed")
	ctxt := context.Background()

	sinks := []*ChannelSink{NewChannelSink(8, 0), NewChannelSink(8, 0)}
	for _, sink := range sinks {
		_, err := eventHub.Subscribe(ctxt, "j2", sink)
		assert.Nil(err)
		assert.Equal(EventConnected, nextEvent(t, sink).Name)
	}

	assert.True(uut.Apply(ctxt, "j2", ProgressUpdate{Status: "Failed", Message: "timeout"}))
	for _, sink := range sinks {
		progress := nextEvent(t, sink)
		assert.Equal(EventProgress, progress.Name)
		failed := nextEvent(t, sink)
		assert.Equal(EventFailed, failed.Name)
		assert.Equal("timeout", failed.Data.(ProgressUpdate).Message)
		assert.NotEqual(progress.ID, failed.ID)
		select {
		case <-sink.Done():
		default:
			assert.Fail("stream not closed after failure")
		}
	}
	assert.False(registry.Contains("j2"))
}

func TestIngressUnknownStatus(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	registry := NewRegistry(4)
	eventHub := GetEventHub(registry, "ut-ingress-unknown")
	uut := GetIngress(eventHub, "ut-ingress-unknown")
	ctxt := context.Background()

	sink := NewChannelSink(8, 0)
	_, err := eventHub.Subscribe(ctxt, "j3", sink)
	assert.Nil(err)
	_ = nextEvent(t, sink)

	// Case 0: missing status is progress only
	assert.False(uut.Apply(ctxt, "j3", ProgressUpdate{}))
	assert.Equal(EventProgress, nextEvent(t, sink).Name)

	// Case 1: unrecognized status keeps the job open
	assert.False(uut.Apply(ctxt, "j3", ProgressUpdate{Status: "pending"}))
	assert.Equal(EventProgress, nextEvent(t, sink).Name)
	assert.True(registry.Contains("j3"))

	// Case 2: updates for jobs nobody watches are fine
	assert.True(uut.Apply(ctxt, "ghost", ProgressUpdate{Status: "failed"}))
	assert.False(registry.Contains("ghost"))

	eventHub.Complete(ctxt, "j3")
}
