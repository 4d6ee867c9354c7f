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
	"fmt"
	"net/http"

	"github.com/alwitt/goutils"
	"github.com/alwitt/recipehub/common"
	"github.com/alwitt/recipehub/hub"
	"github.com/alwitt/recipehub/relay"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// APIRestProgressHandler REST handler receiving job progress callbacks from the worker
type APIRestProgressHandler struct {
	goutils.RestAPIHandler
	broadcaster relay.ProgressBroadcaster
	instance    string
	validate    *validator.Validate
}

// GetAPIRestProgressHandler define APIRestProgressHandler
func GetAPIRestProgressHandler(
	broadcaster relay.ProgressBroadcaster, httpConfig *common.HTTPConfig, instance string,
) (APIRestProgressHandler, error) {
	return APIRestProgressHandler{
		RestAPIHandler: defineRestAPIHandler(httpConfig, "progress-ingest"),
		broadcaster:    broadcaster,
		instance:       instance,
		validate:       validator.New(),
	}, nil
}

// ReportProgress godoc
// @Summary Report job progress
// @Description Worker callback reporting the progress of one job. A "completed" or "failed"
// status also ends the job's event streams.
// @tags Internal
// @Accept json
// @Param Recipehub-Request-ID header string false "User provided request ID to match against logs"
// @Param jobId path string true "Extraction job ID"
// @Param update body hub.ProgressUpdate true "Progress update"
// @Success 200 "applied"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /internal/jobs/{jobId}/progress [post]
func (h APIRestProgressHandler) ReportProgress(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if respBody == nil {
			w.WriteHeader(respCode)
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

	var update hub.ProgressUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		msg := "Unable to parse request body"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}
	if err := h.validate.Struct(&update); err != nil {
		msg := "Invalid progress update"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}

	msg := relay.RelayedProgress{JobID: jobID, Update: update, Origin: h.instance}
	if err := h.broadcaster.Broadcast(r.Context(), msg); err != nil {
		errMsg := fmt.Sprintf("Failed to apply progress %s", msg)
		log.WithError(err).WithFields(localLogTags).Error(errMsg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(
			r.Context(), http.StatusInternalServerError, errMsg, err.Error(),
		)
		return
	}
	log.WithFields(localLogTags).Debugf("Accepted progress %s", msg)
	respCode = http.StatusOK
}

// ReportProgressHandler Wrapper around ReportProgress
func (h APIRestProgressHandler) ReportProgressHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ReportProgress(w, r)
	}
}
