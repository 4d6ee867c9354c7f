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
	"errors"
	"sync"
	"time"
)

// ErrSinkClosed is returned when delivering to a sink which has already been closed
var ErrSinkClosed = errors.New("subscriber sink closed")

// ErrDeliveryTimeout is returned when a sink could not accept an event within the
// delivery bound
var ErrDeliveryTimeout = errors.New("subscriber sink delivery timed out")

// Sink is the channel through which events reach one subscriber connection
type Sink interface {
	// Deliver makes one bounded attempt to hand an event to the subscriber
	Deliver(evt Event) error
	// Close signals end-of-stream to the subscriber. Must be safe to call more than once.
	Close() error
}

// ChannelSink is a Sink backed by a bounded Go channel, read by the goroutine
// serving the subscriber connection
type ChannelSink struct {
	events          chan Event
	done            chan struct{}
	closeOnce       sync.Once
	deliveryTimeout time.Duration
}

// NewChannelSink define a new ChannelSink
//
// A deliveryTimeout of zero makes Deliver fail immediately when the buffer is full.
func NewChannelSink(buffer int, deliveryTimeout time.Duration) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{
		events:          make(chan Event, buffer),
		done:            make(chan struct{}),
		deliveryTimeout: deliveryTimeout,
	}
}

// Deliver queue an event for the subscriber
func (s *ChannelSink) Deliver(evt Event) error {
	// The events channel is never closed, so a send can not panic. Closure is
	// signaled through done instead.
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	if s.deliveryTimeout <= 0 {
		select {
		case s.events <- evt:
			return nil
		case <-s.done:
			return ErrSinkClosed
		default:
			return ErrDeliveryTimeout
		}
	}

	timer := time.NewTimer(s.deliveryTimeout)
	defer timer.Stop()
	select {
	case s.events <- evt:
		return nil
	case <-s.done:
		return ErrSinkClosed
	case <-timer.C:
		return ErrDeliveryTimeout
	}
}

// Close mark the sink as closed
func (s *ChannelSink) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Events the channel of queued events
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// Done the channel which is closed once the sink is closed
func (s *ChannelSink) Done() <-chan struct{} {
	return s.done
}

// Drain return the events still buffered in the sink without blocking
func (s *ChannelSink) Drain() []Event {
	var remaining []Event
	for {
		select {
		case evt := <-s.events:
			remaining = append(remaining, evt)
		default:
			return remaining
		}
	}
}
