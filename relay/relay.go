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
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/alwitt/goutils"
	"github.com/alwitt/recipehub/common"
	"github.com/alwitt/recipehub/hub"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// RelayedProgress is one progress callback relayed between service instances
type RelayedProgress struct {
	// JobID is the job the update is for
	JobID string `json:"job_id" validate:"required"`
	// Update is the progress update as received from the worker
	Update hub.ProgressUpdate `json:"update" validate:"required"`
	// Origin is the instance which received the callback
	Origin string `json:"origin"`
}

// TaskKey updates for one job are applied in order
func (m RelayedProgress) TaskKey() string {
	return m.JobID
}

// String toString for RelayedProgress
func (m RelayedProgress) String() string {
	return fmt.Sprintf("%s@%s:%s", m.JobID, m.Origin, m.Update.Status)
}

// ProgressHandler is the function signature for callback applying a relayed update
type ProgressHandler func(context.Context, RelayedProgress)

// ProgressBroadcaster broadcasts progress updates to every service instance
type ProgressBroadcaster interface {
	// Broadcast broadcast one progress update
	Broadcast(ctxt context.Context, msg RelayedProgress) error
}

// ProgressReceiver receives progress updates broadcast by any service instance
type ProgressReceiver interface {
	// Start start receiving updates until the context ends
	Start(ctxt context.Context, wg *sync.WaitGroup, handler ProgressHandler) error
}

// ==============================================================================

// dispatcher decodes received relay messages and applies them on an event loop
// so the broker read loop never runs hub work
type dispatcher struct {
	goutils.Component
	validate  *validator.Validate
	processor common.TaskProcessor
	handler   ProgressHandler
	ctxt      context.Context
}

// newDispatcher define a dispatcher; workers apply updates of different jobs in parallel
func newDispatcher(
	ctxt context.Context, name string, queueDepth, workers int, handler ProgressHandler,
) (*dispatcher, error) {
	processor, err := common.GetNewTaskDemuxProcessorInstance(ctxt, name, queueDepth, workers)
	if err != nil {
		return nil, err
	}
	d := &dispatcher{
		Component: goutils.Component{
			LogTags: log.Fields{"module": "relay", "component": "dispatcher", "instance": name},
		},
		validate:  validator.New(),
		processor: processor,
		handler:   handler,
		ctxt:      ctxt,
	}
	if err := processor.AddToTaskExecutionMap(
		reflect.TypeOf(RelayedProgress{}), d.apply,
	); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *dispatcher) apply(param interface{}) error {
	msg, ok := param.(RelayedProgress)
	if !ok {
		return fmt.Errorf("unexpected relay task %s", reflect.TypeOf(param))
	}
	d.handler(d.ctxt, msg)
	return nil
}

// start start the event loop
func (d *dispatcher) start(wg *sync.WaitGroup) error {
	return d.processor.StartEventLoop(wg)
}

// stop stop the event loop
func (d *dispatcher) stop() {
	_ = d.processor.StopEventLoop()
}

// receive decode, validate, then queue one raw relay message
func (d *dispatcher) receive(raw []byte) error {
	var msg RelayedProgress
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.WithError(err).WithFields(d.LogTags).Errorf("Failed to read relay message: %s", raw)
		return err
	}
	if err := d.validate.Struct(&msg); err != nil {
		log.WithError(err).WithFields(d.LogTags).Errorf("Failed to validate relay message: %s", raw)
		return err
	}
	log.WithFields(d.LogTags).Debugf("Received %s", msg)
	return d.processor.Submit(d.ctxt, msg)
}

// encode serialize a relay message after validating it
func encode(validate *validator.Validate, msg RelayedProgress) ([]byte, error) {
	if err := validate.Struct(&msg); err != nil {
		return nil, err
	}
	return json.Marshal(&msg)
}
