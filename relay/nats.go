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

package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/alwitt/goutils"
	"github.com/alwitt/recipehub/core"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
)

// defineProgressSubject helper function to define the NATS subject used to relay progress
func defineProgressSubject(topic string) string {
	return fmt.Sprintf("%s.progress", topic)
}

// natsBroadcaster implements ProgressBroadcaster over NATS core pub/sub
type natsBroadcaster struct {
	goutils.Component
	subject  string
	nats     core.NatsClient
	validate *validator.Validate
}

// GetNATSBroadcaster define a NATS backed ProgressBroadcaster
func GetNATSBroadcaster(natsClient core.NatsClient, topic, instance string) ProgressBroadcaster {
	return &natsBroadcaster{
		Component: goutils.Component{
			LogTags: log.Fields{"module": "relay", "component": "nats-broadcaster", "instance": instance},
		},
		subject:  defineProgressSubject(topic),
		nats:     natsClient,
		validate: validator.New(),
	}
}

// Broadcast publish one progress update
func (t *natsBroadcaster) Broadcast(ctxt context.Context, msg RelayedProgress) error {
	logTags := t.GetLogTagsForContext(ctxt)
	payload, err := encode(t.validate, msg)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to serialize %s", msg)
		return err
	}
	if err := t.nats.NATs().Publish(t.subject, payload); err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Failed to send %s on %s", msg, t.subject)
		return err
	}
	log.WithFields(logTags).Debugf("Sent %s on %s", msg, t.subject)
	return nil
}

// ==============================================================================

// natsReceiver implements ProgressReceiver over NATS core pub/sub
type natsReceiver struct {
	goutils.Component
	subject    string
	nats       core.NatsClient
	queueDepth int
	workers    int
	lock       sync.Mutex
	subscribed bool
}

// GetNATSReceiver define a NATS backed ProgressReceiver
func GetNATSReceiver(
	natsClient core.NatsClient, topic string, queueDepth, workers int, instance string,
) ProgressReceiver {
	return &natsReceiver{
		Component: goutils.Component{
			LogTags: log.Fields{"module": "relay", "component": "nats-receiver", "instance": instance},
		},
		subject:    defineProgressSubject(topic),
		nats:       natsClient,
		queueDepth: queueDepth,
		workers:    workers,
	}
}

// Start start receiving progress updates
func (r *natsReceiver) Start(
	ctxt context.Context, wg *sync.WaitGroup, handler ProgressHandler,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.subscribed {
		return fmt.Errorf("already instructed to subscribe to %s", r.subject)
	}

	dispatch, err := newDispatcher(ctxt, "nats-relay", r.queueDepth, r.workers, handler)
	if err != nil {
		return err
	}
	if err := dispatch.start(wg); err != nil {
		return err
	}

	sub, err := r.nats.NATs().Subscribe(r.subject, func(msg *nats.Msg) {
		_ = dispatch.receive(msg.Data)
	})
	if err != nil {
		log.WithError(err).WithFields(r.LogTags).Errorf("Failed to subscribe to %s", r.subject)
		dispatch.stop()
		return err
	}
	r.subscribed = true
	log.WithFields(r.LogTags).Infof("Subscribed to %s", r.subject)

	// Automatically un-subscribe once the context is over
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctxt.Done()
		if err := sub.Unsubscribe(); err != nil {
			log.WithError(err).WithFields(r.LogTags).Errorf(
				"Error occurred when unsubscribing from %s", r.subject,
			)
		}
		dispatch.stop()
		log.WithFields(r.LogTags).Infof("Unsubscribed from %s", r.subject)
	}()
	return nil
}
