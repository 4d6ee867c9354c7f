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
	"strings"
	"time"
)

// Event names pushed to job subscribers
const (
	// EventConnected is sent once on a new subscription before any job event
	EventConnected = "connected"
	// EventProgress is sent for every progress callback received for a job
	EventProgress = "progress"
	// EventCompleted is sent when a job reports the completed status
	EventCompleted = "completed"
	// EventFailed is sent when a job reports the failed status
	EventFailed = "failed"
)

// Job status values which end a job's event stream
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event is one named event pushed to a subscriber
type Event struct {
	// ID is the hub assigned unique event ID
	ID string `json:"id"`
	// Name is the event name
	Name string `json:"event"`
	// Data is the event payload
	Data interface{} `json:"data"`
}

// ConnectedPayload is the payload of the initial connected event
type ConnectedPayload struct {
	// JobID is the job the subscriber attached to
	JobID string `json:"jobId"`
	// SubscriberID is the registry ID of the subscriber
	SubscriberID string `json:"subscriberId"`
	// Timestamp is the server time when the subscription was established
	Timestamp time.Time `json:"timestamp"`
}

// ProgressUpdate is one progress report for a job as sent by the extraction worker
type ProgressUpdate struct {
	// Status is the job status reported by the worker, ex. processing, completed, failed
	Status string `json:"status"`
	// Progress is the job completion percentage
	Progress *int `json:"progress,omitempty" validate:"omitempty,gte=0,lte=100"`
	// Step is a free-text label of the current job step
	Step string `json:"step,omitempty"`
	// Message is an optional detail, usually set on failure
	Message string `json:"message,omitempty"`
}

// terminalEvent returns the terminal event name for the update's status, or
// the empty string if the status does not end the job.
func (u ProgressUpdate) terminalEvent() string {
	switch {
	case strings.EqualFold(u.Status, StatusCompleted):
		return EventCompleted
	case strings.EqualFold(u.Status, StatusFailed):
		return EventFailed
	default:
		return ""
	}
}
