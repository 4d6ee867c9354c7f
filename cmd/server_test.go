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

package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alwitt/recipehub/apis"
	"github.com/alwitt/recipehub/common"
	"github.com/alwitt/recipehub/hub"
	"github.com/alwitt/recipehub/recipes"
	"github.com/alwitt/recipehub/relay"
	"github.com/alwitt/recipehub/storage"
	"github.com/alwitt/recipehub/upload"
	"github.com/alwitt/recipehub/worker"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestServerRoutes(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	httpCfg := &common.HTTPConfig{
		Logging: common.HTTPRequestLogging{RequestIDHeader: "Recipehub-Request-ID"},
	}
	hubCfg := &common.HubConfig{Shards: 2, SubscriberBuffer: 4, DeliveryTimeoutMS: 50}

	eventHub := hub.GetEventHub(hub.NewRegistry(hubCfg.Shards), "ut-cmd")
	ingress := hub.GetIngress(eventHub, "ut-cmd")
	tx, rx := relay.GetLocalRelay("ut-cmd")
	assert.Nil(rx.Start(utCtxt, &wg, func(ctxt context.Context, msg relay.RelayedProgress) {
		ingress.Apply(ctxt, msg.JobID, msg.Update)
	}))

	store := storage.GetMemoryRecipeStore()
	workerClient, err := worker.GetClient(common.WorkerConfig{
		BaseURL: "http://127.0.0.1:1", RequestTimeout: 1, RequestsPerSec: 1,
	})
	assert.Nil(err)
	issuer, err := upload.GetIssuer(utCtxt, common.UploadConfig{
		Bucket:          "media",
		Region:          "us-east-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
		ValiditySec:     60,
	})
	assert.Nil(err)

	handlers := serverHandlers{}
	handlers.stream, err = apis.GetAPIRestJobStreamHandler(utCtxt, eventHub, httpCfg, hubCfg)
	assert.Nil(err)
	handlers.progress, err = apis.GetAPIRestProgressHandler(tx, httpCfg, "ut-cmd")
	assert.Nil(err)
	handlers.recipes, err = apis.GetAPIRestRecipeHandler(
		recipes.GetOrchestrator(workerClient, store), httpCfg,
	)
	assert.Nil(err)
	handlers.upload, err = apis.GetAPIRestUploadHandler(issuer, httpCfg)
	assert.Nil(err)
	handlers.health, err = apis.GetAPIRestHealthHandler(
		map[string]apis.ReadinessCheck{"storage": store.Ready}, httpCfg,
	)
	assert.Nil(err)

	router := defineRouter("/api", handlers)

	call := func(method, path string, headers map[string]string, body []byte) int {
		req, err := http.NewRequest(method, path, bytes.NewReader(body))
		assert.Nil(err)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		respRecorder := httptest.NewRecorder()
		router.ServeHTTP(respRecorder, req)
		return respRecorder.Code
	}

	// Case 0: health
	{
		assert.Equal(http.StatusOK, call("GET", "/api/alive", nil, nil))
		assert.Equal(http.StatusOK, call("GET", "/api/ready", nil, nil))
	}

	// Case 1: progress callback
	{
		assert.Equal(
			http.StatusOK,
			call("POST", "/api/internal/jobs/job-1/progress", nil, []byte(`{"status":"processing"}`)),
		)
	}

	// Case 2: recipe routes
	{
		owner := map[string]string{apis.HeaderOwner: "chef@example.com"}
		assert.Equal(http.StatusBadRequest, call("GET", "/api/recipes", nil, nil))
		assert.Equal(http.StatusOK, call("GET", "/api/recipes", owner, nil))
		assert.Equal(http.StatusNotFound, call("GET", "/api/recipes/12", owner, nil))
		assert.Equal(http.StatusNotFound, call("GET", "/api/recipes/abc", owner, nil))
		assert.Equal(
			http.StatusBadRequest,
			call("POST", "/api/recipes/analyze", owner, []byte(`{"url":""}`)),
		)
	}

	// Case 3: upload
	{
		assert.Equal(
			http.StatusCreated,
			call("POST", "/api/presigned-url", nil, []byte(`{"fileName":"a.png","contentType":"image/png"}`)),
		)
	}

	// Case 4: WebSocket route without an upgrade
	{
		assert.Equal(http.StatusBadRequest, call("GET", "/api/jobs/job-1/ws", nil, nil))
	}

	// Case 5: unknown path
	{
		assert.Equal(http.StatusNotFound, call("GET", "/api/unknown", nil, nil))
	}
}
