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

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alwitt/recipehub/common"
	"github.com/apex/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestWorkerClient(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	router := mux.NewRouter()
	router.HandleFunc("/base/api/analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderOwnerEmail) == "" {
			http.Error(w, "no owner", http.StatusBadRequest)
			return
		}
		var req common.ExtractionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"job_id":"job-1","status":"queued","message":"started"}`)
	}).Methods(http.MethodPost)
	router.HandleFunc("/base/api/status/{jobId}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderUserKey) != "cook@example.com" {
			http.Error(w, "unknown user", http.StatusForbidden)
			return
		}
		if mux.Vars(r)["jobId"] != "job-1" {
			http.Error(w, "no such job", http.StatusNotFound)
			return
		}
		_, _ = fmt.Fprint(w, `{"job_id":"job-1","status":"processing","progress":55,"video_id":"abc"}`)
	}).Methods(http.MethodGet)
	router.HandleFunc("/base/api/result/{jobId}", func(w http.ResponseWriter, r *http.Request) {
		switch mux.Vars(r)["jobId"] {
		case "job-1":
			_, _ = fmt.Fprint(w, `{"success":true,"elapsedTime":12.5,"inputSegmentsCount":40,
"recipe":{"title":"Kimchi stew","steps":[{"step_number":1,"instruction":"Boil","timestamp":3.5}]},
"video_info":{"video_id":"abc","title":"stew","duration":300,"url":"https://youtu.be/abc"}}`)
		case "job-empty":
			_, _ = fmt.Fprint(w, `{"success":false,"recipe":null}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = fmt.Fprint(w, `{"detail":"boom"}`)
		}
	}).Methods(http.MethodGet)

	server := httptest.NewServer(router)
	defer server.Close()

	uut, err := GetClient(common.WorkerConfig{
		BaseURL: server.URL + "/base/", RequestTimeout: 5, RequestsPerSec: 100,
	})
	assert.Nil(err)

	utCtxt := context.Background()

	// Case 0: start a job
	{
		created, err := uut.Start(utCtxt, "cook@example.com", common.ExtractionRequest{
			URL: "https://youtu.be/abc",
		})
		assert.Nil(err)
		assert.Equal("job-1", created.JobID)
		assert.Equal("queued", created.Status)
	}

	// Case 1: start without an owner is rejected by the worker
	{
		_, err := uut.Start(utCtxt, "", common.ExtractionRequest{URL: "https://youtu.be/abc"})
		assert.NotNil(err)
		var statusErr *StatusError
		assert.True(errors.As(err, &statusErr))
		assert.Equal(http.StatusBadRequest, statusErr.Code)
	}

	// Case 2: poll status
	{
		status, err := uut.Status(utCtxt, "cook@example.com", "job-1")
		assert.Nil(err)
		assert.Equal("job-1", status.JobID)
		assert.Equal("processing", status.Status)
		assert.Equal(55, status.Progress)
		assert.Equal("abc", status.VideoID)
	}

	// Case 3: poll unknown job
	{
		_, err := uut.Status(utCtxt, "cook@example.com", "job-2")
		var statusErr *StatusError
		assert.True(errors.As(err, &statusErr))
		assert.Equal(http.StatusNotFound, statusErr.Code)
	}

	// Case 4: fetch result
	{
		result, err := uut.Result(utCtxt, "cook@example.com", "job-1")
		assert.Nil(err)
		assert.True(result.Success)
		assert.Equal(40, result.InputSegmentsCount)
		assert.NotNil(result.Recipe)
		assert.Equal("Kimchi stew", result.Recipe.Title)
		assert.Len(result.Recipe.Steps, 1)
		assert.NotNil(result.VideoInfo)
		assert.Equal(300, *result.VideoInfo.Duration)
	}

	// Case 5: result without recipe
	{
		result, err := uut.Result(utCtxt, "cook@example.com", "job-empty")
		assert.Nil(err)
		assert.Nil(result.Recipe)
	}

	// Case 6: worker failure
	{
		_, err := uut.Result(utCtxt, "cook@example.com", "job-3")
		var statusErr *StatusError
		assert.True(errors.As(err, &statusErr))
		assert.Equal(http.StatusInternalServerError, statusErr.Code)
		assert.Contains(statusErr.Body, "boom")
	}

	// Case 7: caller context already cancelled
	{
		lclCtxt, lclCancel := context.WithCancel(utCtxt)
		lclCancel()
		_, err := uut.Status(lclCtxt, "cook@example.com", "job-1")
		assert.NotNil(err)
	}
}

func TestWorkerClientConfig(t *testing.T) {
	assert := assert.New(t)

	// Case 0: no scheme
	{
		_, err := GetClient(common.WorkerConfig{BaseURL: "worker:8000", RequestsPerSec: 1})
		assert.NotNil(err)
	}

	// Case 1: no rate
	{
		_, err := GetClient(common.WorkerConfig{BaseURL: "http://worker:8000", RequestsPerSec: 0})
		assert.NotNil(err)
	}

	// Case 2: valid
	{
		_, err := GetClient(common.WorkerConfig{BaseURL: "http://worker:8000", RequestsPerSec: 5})
		assert.Nil(err)
	}
}
