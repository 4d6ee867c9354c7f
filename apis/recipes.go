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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/alwitt/goutils"
	"github.com/alwitt/recipehub/common"
	"github.com/alwitt/recipehub/recipes"
	"github.com/alwitt/recipehub/storage"
	"github.com/alwitt/recipehub/worker"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// HeaderOwner is the request header carrying the caller identity
const HeaderOwner = "email"

// APIRestRecipeHandler REST handler for recipe extraction jobs and stored recipes
type APIRestRecipeHandler struct {
	goutils.RestAPIHandler
	orchestrator recipes.Orchestrator
	validate     *validator.Validate
}

// GetAPIRestRecipeHandler define APIRestRecipeHandler
func GetAPIRestRecipeHandler(
	orchestrator recipes.Orchestrator, httpConfig *common.HTTPConfig,
) (APIRestRecipeHandler, error) {
	return APIRestRecipeHandler{
		RestAPIHandler: defineRestAPIHandler(httpConfig, "recipes"),
		orchestrator:   orchestrator,
		validate:       validator.New(),
	}, nil
}

// errorResponse map an orchestration error to a REST response
func (h APIRestRecipeHandler) errorResponse(
	r *http.Request, err error, msg string,
) (int, interface{}) {
	var statusErr *worker.StatusError
	var code int
	switch {
	case errors.Is(err, recipes.ErrNoOwner):
		code = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		code = http.StatusNotFound
	case errors.As(err, &statusErr):
		code = http.StatusBadGateway
	default:
		code = http.StatusInternalServerError
	}
	return code, h.GetStdRESTErrorMsg(r.Context(), code, msg, err.Error())
}

// readOwner read the caller identity header
func readOwner(r *http.Request) (string, bool) {
	owner := strings.TrimSpace(r.Header.Get(HeaderOwner))
	return owner, owner != ""
}

// -----------------------------------------------------------------------

// APIRestRespJobCreated response to a new extraction job
type APIRestRespJobCreated struct {
	goutils.RestAPIBaseResponse
	common.JobCreated
}

// StartAnalyze godoc
// @Summary Start recipe extraction
// @Description Submit a cooking video for recipe extraction. Progress can be followed on
// /jobs/{jobId}.
// @tags Recipes
// @Accept json
// @Produce json
// @Param Recipehub-Request-ID header string false "User provided request ID to match against logs"
// @Param email header string true "Caller identity"
// @Param request body common.ExtractionRequest true "Extraction request"
// @Success 200 {object} APIRestRespJobCreated "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Failure 502 {object} goutils.RestAPIBaseResponse "error"
// @Router /recipes/analyze [post]
func (h APIRestRecipeHandler) StartAnalyze(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	owner, ok := readOwner(r)
	if !ok {
		msg := "No caller identity provided"
		log.WithFields(localLogTags).Errorf("%s", msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	var req common.ExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := "Unable to parse request body"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		msg := "Invalid extraction request"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}

	created, err := h.orchestrator.Start(r.Context(), owner, req)
	if err != nil {
		msg := "Unable to start extraction job"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode, respBody = h.errorResponse(r, err, msg)
		return
	}

	respCode = http.StatusOK
	respBody = APIRestRespJobCreated{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()),
		JobCreated:          created,
	}
}

// StartAnalyzeHandler Wrapper around StartAnalyze
func (h APIRestRecipeHandler) StartAnalyzeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.StartAnalyze(w, r)
	}
}

// -----------------------------------------------------------------------

// APIRestRespJobStatus response to a job status poll
type APIRestRespJobStatus struct {
	goutils.RestAPIBaseResponse
	common.JobStatus
}

// JobStatus godoc
// @Summary Poll job status
// @Description Fetch the current status of one extraction job from the worker
// @tags Recipes
// @Produce json
// @Param Recipehub-Request-ID header string false "User provided request ID to match against logs"
// @Param email header string true "Caller identity"
// @Param jobId path string true "Extraction job ID"
// @Success 200 {object} APIRestRespJobStatus "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 502 {object} goutils.RestAPIBaseResponse "error"
// @Router /recipes/status/{jobId} [get]
func (h APIRestRecipeHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	owner, ok := readOwner(r)
	if !ok {
		msg := "No caller identity provided"
		log.WithFields(localLogTags).Errorf("%s", msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}
	jobID, ok := readJobID(r)
	if !ok {
		msg := "No job ID provided"
		log.WithFields(localLogTags).Errorf("%s", msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	status, err := h.orchestrator.Status(r.Context(), owner, jobID)
	if err != nil {
		msg := "Unable to read job status"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode, respBody = h.errorResponse(r, err, msg)
		return
	}

	respCode = http.StatusOK
	respBody = APIRestRespJobStatus{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()),
		JobStatus:           status,
	}
}

// JobStatusHandler Wrapper around JobStatus
func (h APIRestRecipeHandler) JobStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.JobStatus(w, r)
	}
}

// -----------------------------------------------------------------------

// APIRestRespRecipe response carrying one recipe
type APIRestRespRecipe struct {
	goutils.RestAPIBaseResponse
	common.Recipe
}

// JobResult godoc
// @Summary Fetch and store job result
// @Description Fetch the result of a finished extraction job, store it as a recipe of the
// caller, and return the stored recipe
// @tags Recipes
// @Produce json
// @Param Recipehub-Request-ID header string false "User provided request ID to match against logs"
// @Param email header string true "Caller identity"
// @Param jobId path string true "Extraction job ID"
// @Success 200 {object} APIRestRespRecipe "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Failure 502 {object} goutils.RestAPIBaseResponse "error"
// @Router /recipes/result/{jobId} [get]
func (h APIRestRecipeHandler) JobResult(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	owner, ok := readOwner(r)
	if !ok {
		msg := "No caller identity provided"
		log.WithFields(localLogTags).Errorf("%s", msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}
	jobID, ok := readJobID(r)
	if !ok {
		msg := "No job ID provided"
		log.WithFields(localLogTags).Errorf("%s", msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	recipe, err := h.orchestrator.Result(r.Context(), owner, jobID)
	if err != nil {
		msg := "Unable to read job result"
		if errors.Is(err, recipes.ErrEmptyResult) {
			msg = "Recipe result is empty"
		}
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode, respBody = h.errorResponse(r, err, msg)
		return
	}

	respCode = http.StatusOK
	respBody = APIRestRespRecipe{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()),
		Recipe:              recipe,
	}
}

// JobResultHandler Wrapper around JobResult
func (h APIRestRecipeHandler) JobResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.JobResult(w, r)
	}
}

// -----------------------------------------------------------------------

// APIRestRespRecipeList response listing recipes
type APIRestRespRecipeList struct {
	goutils.RestAPIBaseResponse
	Recipes []common.RecipeSummary `json:"recipes"`
}

// ListRecipes godoc
// @Summary List stored recipes
// @Description List the recipes of the caller, newest first
// @tags Recipes
// @Produce json
// @Param Recipehub-Request-ID header string false "User provided request ID to match against logs"
// @Param email header string true "Caller identity"
// @Success 200 {object} APIRestRespRecipeList "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /recipes [get]
func (h APIRestRecipeHandler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	owner, ok := readOwner(r)
	if !ok {
		msg := "No caller identity provided"
		log.WithFields(localLogTags).Errorf("%s", msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	summaries, err := h.orchestrator.List(r.Context(), owner)
	if err != nil {
		msg := "Unable to list recipes"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode, respBody = h.errorResponse(r, err, msg)
		return
	}

	respCode = http.StatusOK
	respBody = APIRestRespRecipeList{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()),
		Recipes:             summaries,
	}
}

// ListRecipesHandler Wrapper around ListRecipes
func (h APIRestRecipeHandler) ListRecipesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ListRecipes(w, r)
	}
}

// -----------------------------------------------------------------------

// GetRecipe godoc
// @Summary Fetch a stored recipe
// @Description Fetch one recipe of the caller
// @tags Recipes
// @Produce json
// @Param Recipehub-Request-ID header string false "User provided request ID to match against logs"
// @Param email header string true "Caller identity"
// @Param recipeId path integer true "Recipe ID"
// @Success 200 {object} APIRestRespRecipe "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /recipes/{recipeId} [get]
func (h APIRestRecipeHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	owner, ok := readOwner(r)
	if !ok {
		msg := "No caller identity provided"
		log.WithFields(localLogTags).Errorf("%s", msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}
	recipeID, err := strconv.ParseInt(mux.Vars(r)["recipeId"], 10, 64)
	if err != nil {
		msg := "Invalid recipe ID"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}

	recipe, err := h.orchestrator.Get(r.Context(), owner, recipeID)
	if err != nil {
		msg := "Unable to read recipe"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode, respBody = h.errorResponse(r, err, msg)
		return
	}

	respCode = http.StatusOK
	respBody = APIRestRespRecipe{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()),
		Recipe:              recipe,
	}
}

// GetRecipeHandler Wrapper around GetRecipe
func (h APIRestRecipeHandler) GetRecipeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.GetRecipe(w, r)
	}
}
