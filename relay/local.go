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
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// localRelay relay for a single instance deployment; updates are applied inline
type localRelay struct {
	goutils.Component
	validate *validator.Validate
	lock     sync.RWMutex
	handler  ProgressHandler
}

// GetLocalRelay define a relay which applies every broadcast directly
func GetLocalRelay(instance string) (ProgressBroadcaster, ProgressReceiver) {
	r := &localRelay{
		Component: goutils.Component{
			LogTags: log.Fields{"module": "relay", "component": "local", "instance": instance},
		},
		validate: validator.New(),
	}
	return r, r
}

// Broadcast apply the update on this instance
func (r *localRelay) Broadcast(ctxt context.Context, msg RelayedProgress) error {
	if err := r.validate.Struct(&msg); err != nil {
		log.WithError(err).WithFields(r.GetLogTagsForContext(ctxt)).Error("Relay message invalid")
		return err
	}
	r.lock.RLock()
	handler := r.handler
	r.lock.RUnlock()
	if handler == nil {
		return fmt.Errorf("local relay not started")
	}
	handler(ctxt, msg)
	return nil
}

// Start register the handler
func (r *localRelay) Start(ctxt context.Context, wg *sync.WaitGroup, handler ProgressHandler) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.handler != nil {
		return fmt.Errorf("local relay already started")
	}
	r.handler = handler
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctxt.Done()
		r.lock.Lock()
		r.handler = nil
		r.lock.Unlock()
		log.WithFields(r.LogTags).Info("Local relay stopped")
	}()
	return nil
}
