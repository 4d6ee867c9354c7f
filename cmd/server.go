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
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alwitt/recipehub/apis"
	"github.com/alwitt/recipehub/common"
	"github.com/alwitt/recipehub/hub"
	"github.com/alwitt/recipehub/recipes"
	"github.com/alwitt/recipehub/relay"
	"github.com/alwitt/recipehub/storage"
	"github.com/alwitt/recipehub/upload"
	"github.com/alwitt/recipehub/worker"
	"github.com/apex/log"
	"github.com/gorilla/mux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
)

// serverHandlers the REST handlers served by one instance
type serverHandlers struct {
	stream   apis.APIRestJobStreamHandler
	progress apis.APIRestProgressHandler
	recipes  apis.APIRestRecipeHandler
	upload   apis.APIRestUploadHandler
	health   apis.APIRestHealthHandler
}

// defineRouter build the route table
func defineRouter(pathPrefix string, handlers serverHandlers) *mux.Router {
	router := mux.NewRouter()
	mainRouter := apis.RegisterPathPrefix(router, pathPrefix, nil)

	// Job progress streams
	jobAPIRouter := apis.RegisterPathPrefix(
		mainRouter, "/jobs/{jobId}", map[string]http.HandlerFunc{
			"get": handlers.stream.StreamJobHandler(),
		},
	)
	_ = apis.RegisterPathPrefix(jobAPIRouter, "/ws", map[string]http.HandlerFunc{
		"get": handlers.stream.StreamJobWSHandler(),
	})

	// Worker callback
	_ = apis.RegisterPathPrefix(
		mainRouter, "/internal/jobs/{jobId}/progress", map[string]http.HandlerFunc{
			"post": handlers.progress.ReportProgressHandler(),
		},
	)

	// Recipe extraction and storage
	recipeAPIRouter := apis.RegisterPathPrefix(
		mainRouter, "/recipes", map[string]http.HandlerFunc{
			"get": handlers.recipes.ListRecipesHandler(),
		},
	)
	_ = apis.RegisterPathPrefix(recipeAPIRouter, "/analyze", map[string]http.HandlerFunc{
		"post": handlers.recipes.StartAnalyzeHandler(),
	})
	_ = apis.RegisterPathPrefix(recipeAPIRouter, "/status/{jobId}", map[string]http.HandlerFunc{
		"get": handlers.recipes.JobStatusHandler(),
	})
	_ = apis.RegisterPathPrefix(recipeAPIRouter, "/result/{jobId}", map[string]http.HandlerFunc{
		"get": handlers.recipes.JobResultHandler(),
	})
	_ = apis.RegisterPathPrefix(recipeAPIRouter, "/{recipeId:[0-9]+}", map[string]http.HandlerFunc{
		"get": handlers.recipes.GetRecipeHandler(),
	})

	_ = apis.RegisterPathPrefix(mainRouter, "/presigned-url", map[string]http.HandlerFunc{
		"post": handlers.upload.IssueUploadURLHandler(),
	})

	// Health check
	_ = apis.RegisterPathPrefix(mainRouter, "/alive", map[string]http.HandlerFunc{
		"get": handlers.health.AliveHandler(),
	})
	_ = apis.RegisterPathPrefix(mainRouter, "/ready", map[string]http.HandlerFunc{
		"get": handlers.health.ReadyHandler(),
	})

	// Add logging
	router.Use(func(next http.Handler) http.Handler {
		return handlers.health.LoggingMiddleware(next.ServeHTTP)
	})

	return router
}

// startStatsReporter periodically log the hub content
func startStatsReporter(
	runtimeContext context.Context,
	wg *sync.WaitGroup,
	eventHub hub.EventHub,
	interval time.Duration,
	instance string,
	logTags log.Fields,
) (common.IntervalTimer, error) {
	timer, err := common.GetIntervalTimerInstance(runtimeContext, wg, fmt.Sprintf("%s-stats", instance))
	if err != nil {
		return nil, err
	}
	return timer, timer.Start(interval, func() error {
		stats := eventHub.Stats()
		log.WithFields(logTags).Infof(
			"Streaming %d subscribers across %d jobs", stats.Subscribers, stats.Jobs,
		)
		return nil
	}, false)
}

// RunServer run the recipehub server
func RunServer(
	runtimeContext context.Context, config *common.SystemConfig, instance string,
) error {
	logTags := log.Fields{
		"module":    "cmd",
		"component": "server",
		"instance":  instance,
	}

	wg := sync.WaitGroup{}
	defer wg.Wait()
	localCtxt, lclCancel := context.WithCancel(runtimeContext)
	defer lclCancel()

	// -------------------------------------------------------------------
	// Progress fan-out

	eventHub := hub.GetEventHub(hub.NewRegistry(config.Hub.Shards), instance)
	ingress := hub.GetIngress(eventHub, instance)

	transport, err := relay.GetTransport(localCtxt, config.Relay, instance)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf(
			"Unable to define %s progress relay", config.Relay.Driver,
		)
		return err
	}
	defer transport.Close(context.Background())

	if err := transport.Receiver.Start(
		localCtxt, &wg, func(ctxt context.Context, msg relay.RelayedProgress) {
			ingress.Apply(ctxt, msg.JobID, msg.Update)
		},
	); err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to start progress relay receiver")
		return err
	}

	if config.Hub.StatsInterval > 0 {
		timer, err := startStatsReporter(
			localCtxt,
			&wg,
			eventHub,
			time.Duration(config.Hub.StatsInterval)*time.Second,
			instance,
			logTags,
		)
		if err != nil {
			log.WithError(err).WithFields(logTags).Error("Unable to start hub stats reporter")
			return err
		}
		defer func() {
			_ = timer.Stop()
		}()
	}

	// -------------------------------------------------------------------
	// Recipe extraction

	store, err := storage.GetRecipeStore(config.Storage)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf(
			"Unable to define %s recipe store", config.Storage.Driver,
		)
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to close recipe store")
		}
	}()

	workerClient, err := worker.GetClient(config.Worker)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to define worker client")
		return err
	}

	issuer, err := upload.GetIssuer(localCtxt, config.Upload)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to define upload URL issuer")
		return err
	}

	// -------------------------------------------------------------------
	// REST handlers

	httpCfg := &config.HTTPSetting
	handlers := serverHandlers{}
	if handlers.stream, err = apis.GetAPIRestJobStreamHandler(
		localCtxt, eventHub, httpCfg, &config.Hub,
	); err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to define job stream handler")
		return err
	}
	if handlers.progress, err = apis.GetAPIRestProgressHandler(
		transport.Broadcaster, httpCfg, instance,
	); err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to define progress handler")
		return err
	}
	if handlers.recipes, err = apis.GetAPIRestRecipeHandler(
		recipes.GetOrchestrator(workerClient, store), httpCfg,
	); err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to define recipe handler")
		return err
	}
	if handlers.upload, err = apis.GetAPIRestUploadHandler(issuer, httpCfg); err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to define upload handler")
		return err
	}
	if handlers.health, err = apis.GetAPIRestHealthHandler(
		map[string]apis.ReadinessCheck{
			"relay":   transport.Ready,
			"storage": store.Ready,
		}, httpCfg,
	); err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to define health handler")
		return err
	}

	// -------------------------------------------------------------------
	// Start the HTTP server

	router := defineRouter(config.Endpoints.PathPrefix, handlers)

	serverCfg := config.HTTPSetting.Server
	serverListen := fmt.Sprintf("%s:%d", serverCfg.ListenOn, serverCfg.Port)
	httpSrv := &http.Server{
		Addr:         serverListen,
		WriteTimeout: time.Duration(serverCfg.WriteTimeout) * time.Second,
		ReadTimeout:  time.Duration(serverCfg.ReadTimeout) * time.Second,
		IdleTimeout:  time.Duration(serverCfg.IdleTimeout) * time.Second,
		Handler:      h2c.NewHandler(router, &http2.Server{}),
	}

	// Cancel runtime context on shutdown
	httpSrv.RegisterOnShutdown(lclCancel)

	g, gCtxt := errgroup.WithContext(localCtxt)
	g.Go(func() error {
		log.WithFields(logTags).Infof("Started HTTP server on http://%s", serverListen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).WithFields(logTags).Error("HTTP Server Failure")
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtxt.Done()
		// Stop the HTTP server
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failure during HTTP shutdown")
			return err
		}
		return nil
	})

	return g.Wait()
}
