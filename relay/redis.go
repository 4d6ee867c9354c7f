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
)

// defineProgressChannel helper function to define the Redis channel used to relay progress
func defineProgressChannel(topic string) string {
	return fmt.Sprintf("%s:progress", topic)
}

// redisBroadcaster implements ProgressBroadcaster over Redis pub/sub
type redisBroadcaster struct {
	goutils.Component
	channel  string
	redis    core.RedisClient
	validate *validator.Validate
}

// GetRedisBroadcaster define a Redis backed ProgressBroadcaster
func GetRedisBroadcaster(redisClient core.RedisClient, topic, instance string) ProgressBroadcaster {
	return &redisBroadcaster{
		Component: goutils.Component{
			LogTags: log.Fields{"module": "relay", "component": "redis-broadcaster", "instance": instance},
		},
		channel:  defineProgressChannel(topic),
		redis:    redisClient,
		validate: validator.New(),
	}
}

// Broadcast publish one progress update
func (t *redisBroadcaster) Broadcast(ctxt context.Context, msg RelayedProgress) error {
	logTags := t.GetLogTagsForContext(ctxt)
	payload, err := encode(t.validate, msg)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to serialize %s", msg)
		return err
	}
	if err := t.redis.Redis().Publish(ctxt, t.channel, payload).Err(); err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Failed to send %s on %s", msg, t.channel)
		return err
	}
	log.WithFields(logTags).Debugf("Sent %s on %s", msg, t.channel)
	return nil
}

// ==============================================================================

// redisReceiver implements ProgressReceiver over Redis pub/sub
type redisReceiver struct {
	goutils.Component
	channel    string
	redis      core.RedisClient
	queueDepth int
	workers    int
	lock       sync.Mutex
	subscribed bool
}

// GetRedisReceiver define a Redis backed ProgressReceiver
func GetRedisReceiver(
	redisClient core.RedisClient, topic string, queueDepth, workers int, instance string,
) ProgressReceiver {
	return &redisReceiver{
		Component: goutils.Component{
			LogTags: log.Fields{"module": "relay", "component": "redis-receiver", "instance": instance},
		},
		channel:    defineProgressChannel(topic),
		redis:      redisClient,
		queueDepth: queueDepth,
		workers:    workers,
	}
}

// Start start receiving progress updates
func (r *redisReceiver) Start(
	ctxt context.Context, wg *sync.WaitGroup, handler ProgressHandler,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.subscribed {
		return fmt.Errorf("already instructed to subscribe to %s", r.channel)
	}

	pubsub := r.redis.Redis().Subscribe(ctxt, r.channel)
	// Wait for confirmation that we are subscribed
	if _, err := pubsub.Receive(ctxt); err != nil {
		log.WithError(err).WithFields(r.LogTags).Errorf("Failed to subscribe to %s", r.channel)
		_ = pubsub.Close()
		return err
	}

	dispatch, err := newDispatcher(ctxt, "redis-relay", r.queueDepth, r.workers, handler)
	if err != nil {
		_ = pubsub.Close()
		return err
	}
	if err := dispatch.start(wg); err != nil {
		_ = pubsub.Close()
		return err
	}
	r.subscribed = true
	log.WithFields(r.LogTags).Infof("Subscribed to %s", r.channel)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer dispatch.stop()
		defer func() {
			if err := pubsub.Close(); err != nil {
				log.WithError(err).WithFields(r.LogTags).Errorf(
					"Error occurred when unsubscribing from %s", r.channel,
				)
			}
			log.WithFields(r.LogTags).Infof("Unsubscribed from %s", r.channel)
		}()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctxt.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				_ = dispatch.receive([]byte(msg.Payload))
			}
		}
	}()
	return nil
}
