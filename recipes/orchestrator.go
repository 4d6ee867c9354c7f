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

package recipes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/recipehub/common"
	"github.com/alwitt/recipehub/storage"
	"github.com/alwitt/recipehub/worker"
	"github.com/apex/log"
)

// ErrEmptyResult the worker finished the job but produced no recipe
var ErrEmptyResult = errors.New("recipe result is empty")

// ErrNoOwner the caller did not identify the recipe owner
var ErrNoOwner = errors.New("owner is required")

// Orchestrator drives extraction jobs on the worker and persists the results
type Orchestrator interface {
	// Start submit a new extraction job
	Start(ctxt context.Context, owner string, req common.ExtractionRequest) (common.JobCreated, error)
	// Status poll the state of a job
	Status(ctxt context.Context, owner string, jobID string) (common.JobStatus, error)
	// Result fetch the job result, convert it and persist it for the owner
	Result(ctxt context.Context, owner string, jobID string) (common.Recipe, error)
	// List list the recipes of an owner
	List(ctxt context.Context, owner string) ([]common.RecipeSummary, error)
	// Get fetch one recipe of an owner
	Get(ctxt context.Context, owner string, recipeID int64) (common.Recipe, error)
}

// orchestratorImpl implements Orchestrator
type orchestratorImpl struct {
	goutils.Component
	worker worker.Client
	store  storage.RecipeStore
	now    func() time.Time
}

// GetOrchestrator define a new job orchestrator
func GetOrchestrator(client worker.Client, store storage.RecipeStore) Orchestrator {
	logTags := log.Fields{"module": "recipes", "component": "orchestrator"}
	return &orchestratorImpl{
		Component: goutils.Component{LogTags: logTags},
		worker:    client,
		store:     store,
		now:       time.Now,
	}
}

func checkOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return ErrNoOwner
	}
	return nil
}

// Start submit a new extraction job
func (o *orchestratorImpl) Start(
	ctxt context.Context, owner string, req common.ExtractionRequest,
) (common.JobCreated, error) {
	if err := checkOwner(owner); err != nil {
		return common.JobCreated{}, err
	}
	return o.worker.Start(ctxt, owner, req)
}

// Status poll the state of a job
func (o *orchestratorImpl) Status(
	ctxt context.Context, owner string, jobID string,
) (common.JobStatus, error) {
	if err := checkOwner(owner); err != nil {
		return common.JobStatus{}, err
	}
	return o.worker.Status(ctxt, owner, jobID)
}

// Result fetch the job result, convert it and persist it for the owner
func (o *orchestratorImpl) Result(
	ctxt context.Context, owner string, jobID string,
) (common.Recipe, error) {
	logTags := o.GetLogTagsForContext(ctxt)
	if err := checkOwner(owner); err != nil {
		return common.Recipe{}, err
	}
	payload, err := o.worker.Result(ctxt, owner, jobID)
	if err != nil {
		return common.Recipe{}, err
	}
	if payload.Recipe == nil {
		log.WithFields(logTags).Errorf("Job '%s' finished without a recipe", jobID)
		return common.Recipe{}, ErrEmptyResult
	}
	saved, err := o.store.Save(ctxt, owner, payload.ToRecipe(owner, o.now()))
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Failed to persist result of job '%s'", jobID)
		return common.Recipe{}, err
	}
	log.WithFields(logTags).Infof(
		"Persisted job '%s' result as recipe %d for '%s'", jobID, saved.ID, owner,
	)
	return saved, nil
}

// List list the recipes of an owner
func (o *orchestratorImpl) List(
	ctxt context.Context, owner string,
) ([]common.RecipeSummary, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	return o.store.FindByOwner(ctxt, owner)
}

// Get fetch one recipe of an owner
func (o *orchestratorImpl) Get(
	ctxt context.Context, owner string, recipeID int64,
) (common.Recipe, error) {
	if err := checkOwner(owner); err != nil {
		return common.Recipe{}, err
	}
	return o.store.Get(ctxt, owner, recipeID)
}
