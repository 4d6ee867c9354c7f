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

	"github.com/alwitt/goutils"
	"github.com/apex/log"
)

// Ingress applies progress updates from the extraction worker to an EventHub
type Ingress struct {
	goutils.Component
	hub EventHub
}

// GetIngress define a new Ingress
func GetIngress(hub EventHub, instance string) *Ingress {
	logTags := log.Fields{
		"module":    "hub",
		"component": "progress-ingress",
		"instance":  instance,
	}
	return &Ingress{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		hub: hub,
	}
}

// Apply publish a progress update to the job's subscribers.
//
// Every update is published as a progress event. A completed or failed status
// (case-insensitive) is then published under its own event name and the job's
// streams are closed. Any other status leaves the job open. Returns whether the
// update ended the job.
func (i *Ingress) Apply(ctxt context.Context, jobID string, update ProgressUpdate) bool {
	i.hub.Publish(ctxt, jobID, EventProgress, update)

	terminal := update.terminalEvent()
	if terminal == "" {
		return false
	}

	i.hub.Publish(ctxt, jobID, terminal, update)
	i.hub.Complete(ctxt, jobID)
	log.WithFields(i.GetLogTagsForContext(ctxt)).Infof(
		"Job %s reached terminal status %s", jobID, update.Status,
	)
	return true
}
