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

package apis

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/recipehub/common"
	"github.com/alwitt/recipehub/hub"
	"github.com/apex/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait    = time.Second * 10
	wsCloseMessage = "job finished"
)

// APIRestJobStreamHandler REST handler streaming job progress to subscribers
type APIRestJobStreamHandler struct {
	goutils.RestAPIHandler
	hub               hub.EventHub
	subscriberBuffer  int
	deliveryTimeout   time.Duration
	keepAliveInterval time.Duration
	upgrader          websocket.Upgrader
	baseContext       context.Context
}

// GetAPIRestJobStreamHandler define APIRestJobStreamHandler
func GetAPIRestJobStreamHandler(
	baseContext context.Context,
	eventHub hub.EventHub,
	httpConfig *common.HTTPConfig,
	hubConfig *common.HubConfig,
) (APIRestJobStreamHandler, error) {
	return APIRestJobStreamHandler{
		RestAPIHandler:    defineRestAPIHandler(httpConfig, "job-stream"),
		hub:               eventHub,
		subscriberBuffer:  hubConfig.SubscriberBuffer,
		deliveryTimeout:   time.Duration(hubConfig.DeliveryTimeoutMS) * time.Millisecond,
		keepAliveInterval: time.Duration(hubConfig.KeepAliveInterval) * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Subscribers are browser pages served from other origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		baseContext: baseContext,
	}, nil
}

// subscription one attached subscriber plus its exactly-once release
type subscription struct {
	jobID        string
	subscriberID string
	sink         *hub.ChannelSink
	release      func()
}

// attach subscribe a new sink to a job
func (h APIRestJobStreamHandler) attach(ctxt context.Context, jobID string) (subscription, error) {
	sink := hub.NewChannelSink(h.subscriberBuffer, h.deliveryTimeout)
	subscriberID, err := h.hub.Subscribe(ctxt, jobID, sink)
	if err != nil {
		return subscription{}, err
	}
	once := sync.Once{}
	return subscription{
		jobID:        jobID,
		subscriberID: subscriberID,
		sink:         sink,
		release: func() {
			once.Do(func() {
				h.hub.Unsubscribe(ctxt, jobID, subscriberID)
				_ = sink.Close()
			})
		},
	}, nil
}

// liftDeadlines clear the server's read and write deadlines for a stream. The
// stream stays open until the job ends or the client leaves.
func (h APIRestJobStreamHandler) liftDeadlines(w http.ResponseWriter, logTags log.Fields) {
	ctrl := http.NewResponseController(w)
	if err := ctrl.SetWriteDeadline(time.Time{}); err != nil {
		log.WithError(err).WithFields(logTags).Debug("Unable to clear write deadline")
	}
	if err := ctrl.SetReadDeadline(time.Time{}); err != nil {
		log.WithError(err).WithFields(logTags).Debug("Unable to clear read deadline")
	}
}

// readJobID read and check the job ID path parameter
func readJobID(r *http.Request) (string, bool) {
	jobID, ok := mux.Vars(r)["jobId"]
	if !ok || strings.TrimSpace(jobID) == "" {
		return "", false
	}
	return jobID, true
}

// =======================================================================
// Server-sent events

// StreamJob godoc
// @Summary Subscribe to job progress
// @Description Establish a server-sent event stream of progress events for one job. The
// first event is always "connected". The stream closes after the job's "completed" or "failed"
// event, on client disconnect, or on server shutdown.
// @tags Streaming
// @Produce text/event-stream
// @Param Recipehub-Request-ID header string false "User provided request ID to match against logs"
// @Param jobId path string true "Extraction job ID"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /jobs/{jobId} [get]
func (h APIRestJobStreamHandler) StreamJob(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	streaming := false
	defer func() {
		if streaming {
			return
		}
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	jobID, ok := readJobID(r)
	if !ok {
		msg := "No job ID provided"
		log.WithFields(localLogTags).Errorf("%s", msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}
	localLogTags["job_id"] = jobID

	// Create stream flusher
	writeFlusher, ok := w.(http.Flusher)
	if !ok {
		msg := "Streaming not supported"
		log.WithFields(localLogTags).Errorf("%s", msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, msg)
		return
	}

	sub, err := h.attach(r.Context(), jobID)
	if err != nil {
		msg := "Unable to subscribe to job"
		log.WithError(err).WithFields(localLogTags).Errorf("%s", msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}
	defer sub.release()
	localLogTags["subscriber_id"] = sub.subscriberID

	// Send support headers for SSE first
	streaming = true
	h.liftDeadlines(w, localLogTags)
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	writeFlusher.Flush()

	var keepAlive <-chan time.Time
	if h.keepAliveInterval > 0 {
		ticker := time.NewTicker(h.keepAliveInterval)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	send := func(evt hub.Event) bool {
		written, err := writeSSEEvent(w, evt)
		writeFlusher.Flush()
		if err != nil {
			log.WithError(err).WithFields(localLogTags).Errorf("Failed to transmit %s event", evt.Name)
			return false
		}
		log.WithFields(localLogTags).Debugf("Written %s event %dB", evt.Name, written)
		return true
	}

	for {
		select {
		case <-h.baseContext.Done():
			log.WithFields(localLogTags).Info("Terminating job stream on server stop")
			return
		case <-r.Context().Done():
			log.WithFields(localLogTags).Info("Terminating job stream on request end")
			return
		case evt := <-sub.sink.Events():
			if !send(evt) {
				return
			}
		case <-sub.sink.Done():
			// Hub closed the stream; flush what is still buffered
			for _, evt := range sub.sink.Drain() {
				if !send(evt) {
					return
				}
			}
			log.WithFields(localLogTags).Info("Job stream completed")
			return
		case <-keepAlive:
			if _, err := writeSSEComment(w, "keep-alive"); err != nil {
				log.WithError(err).WithFields(localLogTags).Error("Failed to transmit keep-alive")
				return
			}
			writeFlusher.Flush()
		}
	}
}

// StreamJobHandler Wrapper around StreamJob
func (h APIRestJobStreamHandler) StreamJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.StreamJob(w, r)
	}
}

// =======================================================================
// WebSocket

// StreamJobWS godoc
// @Summary Subscribe to job progress over WebSocket
// @Description Same subscription as the event stream, with each event sent as one JSON text
// message. The server sends a normal close frame after the job's terminal event.
// @tags Streaming
// @Param Recipehub-Request-ID header string false "User provided request ID to match against logs"
// @Param jobId path string true "Extraction job ID"
// @Success 101 {string} string "switching protocols"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Router /jobs/{jobId}/ws [get]
func (h APIRestJobStreamHandler) StreamJobWS(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())

	jobID, ok := readJobID(r)
	if !ok {
		msg := "No job ID provided"
		log.WithFields(localLogTags).Errorf("%s", msg)
		if err := h.WriteRESTResponse(
			w,
			http.StatusBadRequest,
			h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg),
			nil,
		); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
		return
	}
	localLogTags["job_id"] = jobID

	// On failure the upgrader already replied to the client
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).WithFields(localLogTags).Error("WebSocket upgrade failed")
		return
	}

	runtimeCtxt, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client sends nothing; reading is only needed to notice it leaving
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
	defer func() {
		_ = conn.Close()
		<-readerDone
	}()

	closeWith := func(code int, text string) {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text),
			time.Now().Add(wsWriteWait),
		)
	}

	sub, err := h.attach(runtimeCtxt, jobID)
	if err != nil {
		log.WithError(err).WithFields(localLogTags).Error("Unable to subscribe to job")
		closeWith(websocket.CloseInternalServerErr, "unable to subscribe")
		return
	}
	defer sub.release()
	localLogTags["subscriber_id"] = sub.subscriberID

	var keepAlive <-chan time.Time
	if h.keepAliveInterval > 0 {
		ticker := time.NewTicker(h.keepAliveInterval)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	send := func(evt hub.Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(&evt); err != nil {
			log.WithError(err).WithFields(localLogTags).Errorf("Failed to transmit %s event", evt.Name)
			return false
		}
		return true
	}

	for {
		select {
		case <-h.baseContext.Done():
			log.WithFields(localLogTags).Info("Terminating job WebSocket on server stop")
			closeWith(websocket.CloseGoingAway, "server stopping")
			return
		case <-runtimeCtxt.Done():
			log.WithFields(localLogTags).Info("Terminating job WebSocket on client leave")
			return
		case evt := <-sub.sink.Events():
			if !send(evt) {
				return
			}
		case <-sub.sink.Done():
			for _, evt := range sub.sink.Drain() {
				if !send(evt) {
					return
				}
			}
			log.WithFields(localLogTags).Info("Job WebSocket completed")
			closeWith(websocket.CloseNormalClosure, wsCloseMessage)
			return
		case <-keepAlive:
			if err := conn.WriteControl(
				websocket.PingMessage, nil, time.Now().Add(wsWriteWait),
			); err != nil {
				log.WithError(err).WithFields(localLogTags).Error("Failed to send ping")
				return
			}
		}
	}
}

// StreamJobWSHandler Wrapper around StreamJobWS
func (h APIRestJobStreamHandler) StreamJobWSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.StreamJobWS(w, r)
	}
}
