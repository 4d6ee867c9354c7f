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
	"time"

	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/google/uuid"
)

// EventHub broadcasts job events to the subscribers of each job
type EventHub interface {
	// Subscribe attach a sink to a job. The connected event is delivered to the
	// sink before this returns.
	Subscribe(ctxt context.Context, jobID string, sink Sink) (string, error)
	// Unsubscribe detach a subscriber from a job. No-op if already detached.
	Unsubscribe(ctxt context.Context, jobID, subscriberID string)
	// Publish send an event to every current subscriber of a job, returning the
	// number of subscribers which accepted it
	Publish(ctxt context.Context, jobID, eventName string, payload interface{}) int
	// Complete close the stream of every subscriber of a job and forget the job
	Complete(ctxt context.Context, jobID string)
	// Stats report the current registry occupancy
	Stats() RegistryStats
}

// eventHubImpl implements EventHub
type eventHubImpl struct {
	goutils.Component
	registry *Registry
	now      func() time.Time
}

// GetEventHub define a new EventHub
func GetEventHub(registry *Registry, instance string) EventHub {
	logTags := log.Fields{
		"module":    "hub",
		"component": "event-hub",
		"instance":  instance,
	}
	return &eventHubImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		registry: registry,
		now:      time.Now,
	}
}

func newEvent(name string, payload interface{}) Event {
	return Event{ID: uuid.NewString(), Name: name, Data: payload}
}

// Subscribe attach a sink to a job
func (h *eventHubImpl) Subscribe(ctxt context.Context, jobID string, sink Sink) (string, error) {
	logTags := h.GetLogTagsForContext(ctxt)
	subscriberID := uuid.NewString()

	// The sink is not yet visible to publishers, so connected is guaranteed to
	// be its first event.
	connected := newEvent(EventConnected, ConnectedPayload{
		JobID: jobID, SubscriberID: subscriberID, Timestamp: h.now().UTC(),
	})
	if err := sink.Deliver(connected); err != nil {
		log.WithError(err).WithFields(logTags).Errorf(
			"Failed to send connected event for job %s", jobID,
		)
		return "", fmt.Errorf("subscribe to job %s: %w", jobID, err)
	}

	h.registry.Register(jobID, Subscriber{ID: subscriberID, Sink: sink})
	log.WithFields(logTags).Debugf("Subscriber %s attached to job %s", subscriberID, jobID)
	return subscriberID, nil
}

// Unsubscribe detach a subscriber from a job
func (h *eventHubImpl) Unsubscribe(ctxt context.Context, jobID, subscriberID string) {
	if h.registry.Unregister(jobID, subscriberID) {
		log.WithFields(h.GetLogTagsForContext(ctxt)).Debugf(
			"Subscriber %s detached from job %s", subscriberID, jobID,
		)
	}
}

// Publish send an event to every current subscriber of a job
func (h *eventHubImpl) Publish(
	ctxt context.Context, jobID, eventName string, payload interface{},
) int {
	subs := h.registry.Snapshot(jobID)
	if len(subs) == 0 {
		return 0
	}
	logTags := h.GetLogTagsForContext(ctxt)
	evt := newEvent(eventName, payload)

	deliver := func(sub Subscriber) bool {
		if err := sub.Sink.Deliver(evt); err != nil {
			// Dropped without notice to the client
			log.WithError(err).WithFields(logTags).Warnf(
				"Dropping subscriber %s of job %s after failed %s delivery",
				sub.ID, jobID, eventName,
			)
			h.registry.Unregister(jobID, sub.ID)
			// End the stream so the endpoint stops waiting on it
			_ = sub.Sink.Close()
			return false
		}
		return true
	}

	if len(subs) == 1 {
		if deliver(subs[0]) {
			return 1
		}
		return 0
	}

	// Each subscriber costs at most its own bounded attempt
	delivered := 0
	resultLock := sync.Mutex{}
	wg := sync.WaitGroup{}
	for _, sub := range subs {
		wg.Add(1)
		go func(sub Subscriber) {
			defer wg.Done()
			if deliver(sub) {
				resultLock.Lock()
				delivered++
				resultLock.Unlock()
			}
		}(sub)
	}
	wg.Wait()

	log.WithFields(logTags).Debugf(
		"Sent %s of job %s to %d/%d subscribers", eventName, jobID, delivered, len(subs),
	)
	return delivered
}

// Complete close the stream of every subscriber of a job and forget the job
func (h *eventHubImpl) Complete(ctxt context.Context, jobID string) {
	subs := h.registry.Drop(jobID)
	if len(subs) == 0 {
		return
	}
	logTags := h.GetLogTagsForContext(ctxt)
	for _, sub := range subs {
		if err := sub.Sink.Close(); err != nil {
			log.WithError(err).WithFields(logTags).Debugf(
				"Ignoring close failure of subscriber %s of job %s", sub.ID, jobID,
			)
		}
	}
	log.WithFields(logTags).Debugf("Closed %d subscribers of job %s", len(subs), jobID)
}

// Stats report the current registry occupancy
func (h *eventHubImpl) Stats() RegistryStats {
	return h.registry.Stats()
}
